package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

const meterName = "github.com/Additional-Code/shopfloor"

// Metrics holds the domain counters. A nil *Metrics records nothing.
type Metrics struct {
	reservations     metric.Int64Counter
	ledgerMovements  metric.Float64Counter
	stageTransitions metric.Int64Counter
	trackingChanges  metric.Int64Counter
	ordersCompleted  metric.Int64Counter
	workersSynced    metric.Int64Counter
}

// MetricsModule provides the domain counters. It depends on the Manager so the
// global meter provider is configured first.
var MetricsModule = fx.Provide(NewMetrics)

// NewMetrics registers the domain instruments on the global meter provider.
func NewMetrics(_ *Manager) (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	if m.reservations, err = meter.Int64Counter("shopfloor.material.reservations",
		metric.WithDescription("Material reservation attempts by outcome")); err != nil {
		return nil, err
	}
	if m.ledgerMovements, err = meter.Float64Counter("shopfloor.material.ledger_movements",
		metric.WithDescription("Quantity moved on the material ledger by movement type")); err != nil {
		return nil, err
	}
	if m.stageTransitions, err = meter.Int64Counter("shopfloor.order.stage_transitions",
		metric.WithDescription("Order stage machine transitions by target stage")); err != nil {
		return nil, err
	}
	if m.trackingChanges, err = meter.Int64Counter("shopfloor.tracking.status_changes",
		metric.WithDescription("Tracking row status changes by new status")); err != nil {
		return nil, err
	}
	if m.ordersCompleted, err = meter.Int64Counter("shopfloor.orders.completed",
		metric.WithDescription("Orders flipped to completed")); err != nil {
		return nil, err
	}
	if m.workersSynced, err = meter.Int64Counter("shopfloor.workers.synced",
		metric.WithDescription("Workers imported from the biometric source")); err != nil {
		return nil, err
	}
	return m, nil
}

// Reservation counts a reservation attempt with its outcome (reserved, insufficient_stock, ...).
func (m *Metrics) Reservation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.reservations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// LedgerMovement records quantity moved on the ledger.
func (m *Metrics) LedgerMovement(ctx context.Context, movement string, qty float64) {
	if m == nil {
		return
	}
	m.ledgerMovements.Add(ctx, qty, metric.WithAttributes(attribute.String("movement", movement)))
}

// StageTransition counts an order entering a stage.
func (m *Metrics) StageTransition(ctx context.Context, to string) {
	if m == nil {
		return
	}
	m.stageTransitions.Add(ctx, 1, metric.WithAttributes(attribute.String("stage", to)))
}

// TrackingChange counts a tracking row entering a status.
func (m *Metrics) TrackingChange(ctx context.Context, status string) {
	if m == nil {
		return
	}
	m.trackingChanges.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// OrderCompleted counts an order completion and the path that completed it.
func (m *Metrics) OrderCompleted(ctx context.Context, via string) {
	if m == nil {
		return
	}
	m.ordersCompleted.Add(ctx, 1, metric.WithAttributes(attribute.String("via", via)))
}

// WorkersSynced counts imported workers.
func (m *Metrics) WorkersSynced(ctx context.Context, n int) {
	if m == nil {
		return
	}
	m.workersSynced.Add(ctx, int64(n))
}
