package smartproduction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	"github.com/Additional-Code/shopfloor/internal/observability"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
	inventoryrepo "github.com/Additional-Code/shopfloor/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
	productionrepo "github.com/Additional-Code/shopfloor/internal/repository/production"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/smartproduction")

// Orders loads and updates orders and their sales.
type Orders interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
	Update(ctx context.Context, order *entity.Order, columns ...string) error
	SaleExists(ctx context.Context, orderID int64) (bool, error)
	CreateSale(ctx context.Context, sale *entity.Sale) error
}

// Trackings reads the stage catalog and the order's tracking rows.
type Trackings interface {
	ActiveStages(ctx context.Context) ([]entity.ProductionStage, error)
	ListTrackings(ctx context.Context, orderID int64) ([]entity.OrderProductionTracking, error)
	CreateTrackings(ctx context.Context, rows []entity.OrderProductionTracking) error
	FindTrackingByStage(ctx context.Context, orderID int64, stageName string) (*entity.OrderProductionTracking, error)
	UpdateTracking(ctx context.Context, t *entity.OrderProductionTracking, fromStatus string) error
}

// Products reads product templates.
type Products interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
	BillOfMaterials(ctx context.Context, productID int64) ([]entity.ProductMaterial, error)
	StageEstimates(ctx context.Context, productID int64) (map[int64]entity.ProductStageEstimate, error)
}

// Workers finds and tasks qualified workers.
type Workers interface {
	FindQualified(ctx context.Context, specialty string) ([]entity.Worker, error)
	CreateTask(ctx context.Context, task *entity.WorkerTask) error
	CompleteTasks(ctx context.Context, orderID int64, stage string, at time.Time) (int, error)
}

// Ledger consumes materials.
type Ledger interface {
	GetMaterial(ctx context.Context, id int64) (*entity.Material, error)
	Decrement(ctx context.Context, materialID int64, qty decimal.Decimal) (bool, error)
	LogTransaction(ctx context.Context, tx *entity.InventoryTransaction) error
}

// Service drives an order through the configured stage sequence.
type Service struct {
	orders     Orders
	trackings  Trackings
	products   Products
	workers    Workers
	ledger     Ledger
	tx         database.Transactor
	publisher  messaging.Publisher
	cache      cache.Store
	metrics    *observability.Metrics
	logger     *zap.Logger
	seq        stage.Sequence
	startStage stage.Name
	now        func() time.Time
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Orders     Orders
	Trackings  Trackings
	Products   Products
	Workers    Workers
	Ledger     Ledger
	Transactor database.Transactor
	Publisher  messaging.Publisher    `optional:"true"`
	Cache      cache.Store            `optional:"true"`
	Metrics    *observability.Metrics `optional:"true"`
	Sequence   stage.Sequence
	Config     config.Config
	Logger     *zap.Logger
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	start := stage.Name(p.Config.Production.StartStage)
	if !p.Sequence.Contains(start) {
		start = stage.Design
	}
	return &Service{
		orders:     p.Orders,
		trackings:  p.Trackings,
		products:   p.Products,
		workers:    p.Workers,
		ledger:     p.Ledger,
		tx:         p.Transactor,
		publisher:  p.Publisher,
		cache:      p.Cache,
		metrics:    p.Metrics,
		logger:     logger,
		seq:        p.Sequence,
		startStage: start,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ConsumedLine is a material deducted when production starts.
type ConsumedLine struct {
	MaterialID int64           `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// Shortage is a material that could not be deducted.
type Shortage struct {
	MaterialID int64           `json:"material_id"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
	Reason     string          `json:"reason"`
}

// StartResult reports what StartSmartProduction did.
type StartResult struct {
	OrderID          int64           `json:"order_id"`
	Stage            string          `json:"stage"`
	EstimatedHours   decimal.Decimal `json:"estimated_hours"`
	AssignedWorkerID *int64          `json:"assigned_worker_id,omitempty"`
	TrackingRows     int             `json:"tracking_rows"`
	Consumed         []ConsumedLine  `json:"consumed"`
	Shortages        []Shortage      `json:"shortages"`
}

// StartSmartProduction estimates the order, moves it to the start stage,
// assigns a worker, seeds tracking rows and deducts its materials. Material
// shortages are reported, not fatal.
func (s *Service) StartSmartProduction(ctx context.Context, orderID int64) (*StartResult, error) {
	ctx, span := serviceTracer.Start(ctx, "SmartProductionService.StartSmartProduction", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	result := &StartResult{OrderID: orderID, Stage: s.startStage.String(), Consumed: []ConsumedLine{}, Shortages: []Shortage{}}
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		order, err := s.loadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status == entity.OrderStatusCompleted || order.Status == entity.OrderStatusCancelled {
			return errorbank.Unprocessable("order is closed", errorbank.WithModel("order", orderID), errorbank.WithDetail("status", order.Status))
		}
		if current := stage.Name(order.ProductionStage); current != "" && current != s.seq.First() {
			return errorbank.Conflict("production already started for order",
				errorbank.WithModel("order", orderID), errorbank.WithDetail("stage", order.ProductionStage))
		}
		if _, err := s.products.GetByID(ctx, order.ProductID); err != nil {
			if errors.Is(err, productrepo.ErrNotFound) {
				return errorbank.NotFound("product not found", errorbank.WithModel("product", order.ProductID))
			}
			return err
		}

		stages, err := s.trackings.ActiveStages(ctx)
		if err != nil {
			return err
		}
		overrides, err := s.products.StageEstimates(ctx, order.ProductID)
		if err != nil {
			return err
		}
		hours := make(map[int64]decimal.Decimal, len(stages))
		total := decimal.Zero
		for _, st := range stages {
			h := st.EstimatedHours
			if o, ok := overrides[st.ID]; ok {
				h = o.EstimatedHours
			}
			hours[st.ID] = h
			total = total.Add(h)
		}

		now := s.now()
		workerID, err := s.assignWorker(ctx, order.ID, s.startStage, now)
		if err != nil {
			return err
		}

		existing, err := s.trackings.ListTrackings(ctx, order.ID)
		if err != nil {
			return err
		}
		if len(existing) == 0 {
			rows := make([]entity.OrderProductionTracking, 0, len(stages))
			for _, st := range stages {
				row := entity.OrderProductionTracking{
					OrderID:        order.ID,
					StageID:        st.ID,
					StageName:      st.Name,
					Status:         entity.TrackingPending,
					EstimatedHours: hours[st.ID],
					ActualHours:    decimal.Zero,
					CreatedAt:      now,
					UpdatedAt:      now,
				}
				if stage.Name(st.Name) == s.startStage {
					row.Status = entity.TrackingInProgress
					row.StartedAt = &now
					row.WorkerID = workerID
				}
				rows = append(rows, row)
			}
			if err := s.trackings.CreateTrackings(ctx, rows); err != nil {
				return err
			}
			result.TrackingRows = len(rows)
		}

		if err := s.consumeMaterials(ctx, order, result); err != nil {
			return err
		}

		order.EstimatedHours = total
		order.ProductionStage = s.startStage.String()
		order.Status = entity.OrderStatusInProgress
		if order.QualityStatus == "" {
			order.QualityStatus = entity.QualityStatusPending
		}
		if order.DeliveryStatus == "" {
			order.DeliveryStatus = entity.DeliveryStatusPending
		}
		if workerID != nil {
			order.AssignedWorkerID = workerID
		}
		if err := s.orders.Update(ctx, order,
			"estimated_hours", "production_stage", "status", "quality_status", "delivery_status", "assigned_worker_id"); err != nil {
			return err
		}

		result.EstimatedHours = total
		result.AssignedWorkerID = workerID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "start smart production failed")
		s.logger.Error("start smart production failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil, err
	}

	s.forgetOrder(ctx, orderID)
	s.metrics.StageTransition(ctx, s.startStage.String())
	fields := []zap.Field{
		zap.Int64("order_id", orderID),
		zap.String("stage", result.Stage),
		zap.String("estimated_hours", result.EstimatedHours.String()),
		zap.Int("shortages", len(result.Shortages)),
	}
	if len(result.Shortages) > 0 {
		s.logger.Warn("smart production started with material shortages", fields...)
	} else {
		s.logger.Info("smart production started", fields...)
	}
	return result, nil
}

func (s *Service) consumeMaterials(ctx context.Context, order *entity.Order, result *StartResult) error {
	lines, err := s.products.BillOfMaterials(ctx, order.ProductID)
	if err != nil {
		return err
	}
	for _, line := range lines {
		required := line.Quantity.Mul(order.Quantity)
		material, err := s.ledger.GetMaterial(ctx, line.MaterialID)
		if errors.Is(err, inventoryrepo.ErrNotFound) {
			result.Shortages = append(result.Shortages, Shortage{MaterialID: line.MaterialID, Required: required, Available: decimal.Zero, Reason: entity.ShortageMaterialNotFound})
			continue
		}
		if err != nil {
			return err
		}
		if !material.IsActive {
			result.Shortages = append(result.Shortages, Shortage{MaterialID: line.MaterialID, Required: required, Available: material.Quantity, Reason: entity.ShortageMaterialInactive})
			continue
		}
		ok, err := s.ledger.Decrement(ctx, line.MaterialID, required)
		if err != nil {
			return err
		}
		if !ok {
			result.Shortages = append(result.Shortages, Shortage{MaterialID: line.MaterialID, Required: required, Available: material.Quantity, Reason: entity.ShortageInsufficientStock})
			continue
		}
		oid := order.ID
		if err := s.ledger.LogTransaction(ctx, &entity.InventoryTransaction{
			MaterialID: line.MaterialID,
			OrderID:    &oid,
			Type:       entity.TransactionConsumption,
			Quantity:   required,
			Notes:      fmt.Sprintf("consumed by order %d", order.ID),
			CreatedAt:  s.now(),
		}); err != nil {
			return err
		}
		f, _ := required.Float64()
		s.metrics.LedgerMovement(ctx, entity.TransactionConsumption, f)
		result.Consumed = append(result.Consumed, ConsumedLine{MaterialID: line.MaterialID, Quantity: required})
	}
	return nil
}

// StageAdvancedEvent is published after an order changes stage.
type StageAdvancedEvent struct {
	OrderID int64     `json:"order_id"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	At      time.Time `json:"at"`
}

// OrderCompletedEvent is published when an order reaches the final stage.
type OrderCompletedEvent struct {
	OrderID   int64           `json:"order_id"`
	TotalCost decimal.Decimal `json:"total_cost"`
	At        time.Time       `json:"at"`
}

// MoveToNextStage advances the order one stage. It returns false without
// writing anything when the order is already at the final stage.
func (s *Service) MoveToNextStage(ctx context.Context, orderID int64, completedHours *decimal.Decimal) (bool, error) {
	ctx, span := serviceTracer.Start(ctx, "SmartProductionService.MoveToNextStage", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	if completedHours != nil && completedHours.IsNegative() {
		return false, errorbank.Validation("invalid completed hours", map[string]string{"completed_hours": "completed_hours must not be negative"})
	}

	var (
		advanced bool
		from, to stage.Name
		order    *entity.Order
		now      = s.now()
	)
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		order, err = s.loadOrder(ctx, orderID)
		if err != nil {
			return err
		}
		from = stage.Name(order.ProductionStage)
		if from == "" {
			from = s.seq.First()
		}
		if !s.seq.Contains(from) {
			return errorbank.Unprocessable("order is in an unknown stage",
				errorbank.WithModel("order", orderID), errorbank.WithDetail("stage", order.ProductionStage))
		}
		next, ok := s.seq.Next(from)
		if !ok {
			return nil
		}
		to = next

		if err := s.closeStage(ctx, order.ID, from, completedHours, now); err != nil {
			return err
		}
		if _, err := s.workers.CompleteTasks(ctx, order.ID, from.String(), now); err != nil {
			return err
		}

		order.ProductionStage = to.String()
		if from == s.seq.First() && order.Status == entity.OrderStatusPending {
			order.Status = entity.OrderStatusInProgress
		}
		if fn := s.effectFor(to); fn != nil {
			if err := fn(ctx, s, order, now); err != nil {
				return err
			}
		}

		workerID, err := s.assignWorker(ctx, order.ID, to, now)
		if err != nil {
			return err
		}
		if workerID != nil {
			order.AssignedWorkerID = workerID
		}
		if err := s.openStage(ctx, order.ID, to, workerID, now); err != nil {
			return err
		}

		if err := s.orders.Update(ctx, order,
			"production_stage", "status", "quality_status", "delivery_status", "completed_date", "assigned_worker_id"); err != nil {
			return err
		}
		advanced = true
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "stage transition failed")
		s.logger.Error("stage transition failed", zap.Int64("order_id", orderID), zap.Error(err))
		return false, err
	}
	if !advanced {
		s.logger.Info("order already at final stage", zap.Int64("order_id", orderID), zap.String("stage", from.String()))
		return false, nil
	}

	s.forgetOrder(ctx, orderID)
	s.metrics.StageTransition(ctx, to.String())
	s.logger.Info("order stage advanced", zap.Int64("order_id", orderID), zap.String("from", from.String()), zap.String("to", to.String()))

	key := fmt.Sprintf("order-%d", orderID)
	s.publish(ctx, messaging.EventOrderStageAdvanced, key, StageAdvancedEvent{OrderID: orderID, From: from.String(), To: to.String(), At: now})
	if order.Status == entity.OrderStatusCompleted {
		s.metrics.OrderCompleted(ctx, "stage_machine")
		s.publish(ctx, messaging.EventOrderCompleted, key, OrderCompletedEvent{OrderID: orderID, TotalCost: order.TotalCost, At: now})
	}
	return true, nil
}

// closeStage completes the tracking row of the stage being left, if any.
func (s *Service) closeStage(ctx context.Context, orderID int64, n stage.Name, hours *decimal.Decimal, at time.Time) error {
	row, err := s.trackings.FindTrackingByStage(ctx, orderID, n.String())
	if errors.Is(err, productionrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if row.Status == entity.TrackingCompleted {
		return nil
	}
	prev := row.Status
	switch {
	case hours != nil:
		row.ActualHours = *hours
	case row.StartedAt != nil:
		row.ActualHours = decimal.NewFromFloat(at.Sub(*row.StartedAt).Hours()).Round(2)
	}
	if row.StartedAt == nil {
		row.StartedAt = &at
	}
	row.CompletedAt = &at
	row.Status = entity.TrackingCompleted
	if err := s.trackings.UpdateTracking(ctx, row, prev); err != nil {
		if errors.Is(err, productionrepo.ErrNotFound) {
			return errorbank.Conflict("tracking row changed concurrently", errorbank.WithModel("order_production_tracking", row.ID))
		}
		return err
	}
	s.metrics.TrackingChange(ctx, entity.TrackingCompleted)
	return nil
}

// openStage starts the tracking row of the stage being entered, if pending.
func (s *Service) openStage(ctx context.Context, orderID int64, n stage.Name, workerID *int64, at time.Time) error {
	row, err := s.trackings.FindTrackingByStage(ctx, orderID, n.String())
	if errors.Is(err, productionrepo.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if row.Status != entity.TrackingPending {
		return nil
	}
	row.Status = entity.TrackingInProgress
	row.StartedAt = &at
	if workerID != nil {
		row.WorkerID = workerID
	}
	if err := s.trackings.UpdateTracking(ctx, row, entity.TrackingPending); err != nil {
		if errors.Is(err, productionrepo.ErrNotFound) {
			return errorbank.Conflict("tracking row changed concurrently", errorbank.WithModel("order_production_tracking", row.ID))
		}
		return err
	}
	s.metrics.TrackingChange(ctx, entity.TrackingInProgress)
	return nil
}

// assignWorker tasks the least loaded active worker whose specialty is the
// stage. It returns nil when nobody qualifies.
func (s *Service) assignWorker(ctx context.Context, orderID int64, n stage.Name, at time.Time) (*int64, error) {
	candidates, err := s.workers.FindQualified(ctx, n.String())
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		s.logger.Debug("no qualified worker for stage", zap.Int64("order_id", orderID), zap.String("stage", n.String()))
		return nil, nil
	}
	w := candidates[0]
	if err := s.workers.CreateTask(ctx, &entity.WorkerTask{
		WorkerID:  w.ID,
		OrderID:   orderID,
		Stage:     n.String(),
		Status:    entity.TaskInProgress,
		StartedAt: &at,
		CreatedAt: at,
	}); err != nil {
		return nil, err
	}
	id := w.ID
	return &id, nil
}

func (s *Service) loadOrder(ctx context.Context, orderID int64) (*entity.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if errors.Is(err, orderrepo.ErrNotFound) {
		return nil, errorbank.NotFound("order not found", errorbank.WithModel("order", orderID))
	}
	return order, err
}

func (s *Service) publish(ctx context.Context, eventType, key string, payload any) {
	if s.publisher == nil {
		return
	}
	if err := messaging.PublishEvent(ctx, s.publisher, eventType, key, payload); err != nil {
		s.logger.Error("publish event failed", zap.String("event", eventType), zap.String("key", key), zap.Error(err))
	}
}

func (s *Service) forgetOrder(ctx context.Context, orderID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.OrderKey(orderID)); err != nil {
		s.logger.Warn("orders cache invalidation failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
}
