package production

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/production")

// ErrNotFound is returned when a stage, tracking row or station is missing.
var ErrNotFound = errors.New("production record not found")

// Repository covers the stage catalog, tracking rows and stations.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a production repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// ActiveStages lists active catalog stages in production order.
func (r *Repository) ActiveStages(ctx context.Context) ([]entity.ProductionStage, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.ActiveStages")
	defer span.End()

	var stages []entity.ProductionStage
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&stages).
		Where("is_active = ?", true).
		Order("order_index ASC", "id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select stages failed")
	}
	return stages, nil
}

// GetStage loads one catalog stage.
func (r *Repository) GetStage(ctx context.Context, id int64) (*entity.ProductionStage, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.GetStage", trace.WithAttributes(attribute.Int64("stage.id", id)))
	defer span.End()

	s := new(entity.ProductionStage)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(s).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select stage failed")
	}
	return s, nil
}

// CreateTrackings inserts tracking rows in one statement.
func (r *Repository) CreateTrackings(ctx context.Context, rows []entity.OrderProductionTracking) error {
	if len(rows) == 0 {
		return nil
	}
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.CreateTrackings", trace.WithAttributes(
		attribute.Int64("order.id", rows[0].OrderID),
		attribute.Int("rows", len(rows)),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(&rows)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert tracking rows failed")
	}
	return nil
}

// GetTracking loads one tracking row.
func (r *Repository) GetTracking(ctx context.Context, id int64) (*entity.OrderProductionTracking, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.GetTracking", trace.WithAttributes(attribute.Int64("tracking.id", id)))
	defer span.End()

	t := new(entity.OrderProductionTracking)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(t).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select tracking failed")
	}
	return t, nil
}

// FindTrackingByStage returns the order's tracking row for a stage name.
func (r *Repository) FindTrackingByStage(ctx context.Context, orderID int64, stageName string) (*entity.OrderProductionTracking, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.FindTrackingByStage", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("stage", stageName),
	))
	defer span.End()

	t := new(entity.OrderProductionTracking)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(t).
		Where("order_id = ?", orderID).
		Where("stage_name = ?", stageName).
		Limit(1)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select tracking failed")
	}
	return t, nil
}

// ListTrackings returns an order's tracking rows.
func (r *Repository) ListTrackings(ctx context.Context, orderID int64) ([]entity.OrderProductionTracking, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.ListTrackings", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var rows []entity.OrderProductionTracking
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&rows).Where("order_id = ?", orderID).Order("id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select tracking rows failed")
	}
	return rows, nil
}

// CountOpenTrackings counts an order's rows that are not completed.
func (r *Repository) CountOpenTrackings(ctx context.Context, orderID int64) (int, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.CountOpenTrackings", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	q := r.conns.ReaderFor(ctx).NewSelect().Model((*entity.OrderProductionTracking)(nil)).
		Where("order_id = ?", orderID).
		Where("status <> ?", entity.TrackingCompleted)
	n, err := q.Count(ctx)
	if err != nil {
		return 0, repository.Fail(span, err, q, "count tracking rows failed")
	}
	return n, nil
}

// UpdateTracking moves a tracking row from one status to the next. It fails
// with ErrNotFound when the row is no longer in the expected status.
func (r *Repository) UpdateTracking(ctx context.Context, t *entity.OrderProductionTracking, fromStatus string) error {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.UpdateTracking", trace.WithAttributes(attribute.Int64("tracking.id", t.ID)))
	defer span.End()

	t.UpdatedAt = time.Now().UTC()
	q := r.conns.WriterFor(ctx).NewUpdate().Model(t).
		Column("worker_id", "station_id", "status", "actual_hours", "started_at", "completed_at", "updated_at").
		WherePK().
		Where("status = ?", fromStatus)
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "update tracking failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetStation loads one station.
func (r *Repository) GetStation(ctx context.Context, id int64) (*entity.Station, error) {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.GetStation", trace.WithAttributes(attribute.Int64("station.id", id)))
	defer span.End()

	s := new(entity.Station)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(s).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select station failed")
	}
	return s, nil
}

// SetStationStatus marks a station busy or available.
func (r *Repository) SetStationStatus(ctx context.Context, id int64, status string) error {
	ctx, span := repoTracer.Start(ctx, "ProductionRepository.SetStationStatus", trace.WithAttributes(
		attribute.Int64("station.id", id),
		attribute.String("status", status),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewUpdate().Model((*entity.Station)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id)
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "update station failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
