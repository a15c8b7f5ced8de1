package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/inventory")

// ErrNotFound is returned when a material or reservation is missing.
var ErrNotFound = errors.New("inventory record not found")

// Repository covers the material ledger, reservations and the movement log.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires an inventory repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// GetMaterial loads one ledger row.
func (r *Repository) GetMaterial(ctx context.Context, id int64) (*entity.Material, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.GetMaterial", trace.WithAttributes(attribute.Int64("material.id", id)))
	defer span.End()

	m := new(entity.Material)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(m).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select material failed")
	}
	return m, nil
}

// ListMaterials loads ledger rows by id.
func (r *Repository) ListMaterials(ctx context.Context, ids []int64) ([]entity.Material, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.ListMaterials")
	defer span.End()

	var materials []entity.Material
	if len(ids) == 0 {
		return materials, nil
	}
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&materials).Where("id IN (?)", bun.In(ids)).Order("id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select materials failed")
	}
	return materials, nil
}

// Decrement takes qty off the ledger only if enough is on hand. It reports
// false, leaving the row untouched, when the material is short or inactive.
func (r *Repository) Decrement(ctx context.Context, materialID int64, qty decimal.Decimal) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.Decrement", trace.WithAttributes(
		attribute.Int64("material.id", materialID),
		attribute.String("quantity", qty.String()),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewUpdate().
		Model((*entity.Material)(nil)).
		Set("quantity = quantity - ?", qty).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", materialID).
		Where("is_active = ?", true).
		Where("quantity >= ?", qty)
	res, err := q.Exec(ctx)
	if err != nil {
		return false, repository.Fail(span, err, q, "decrement material failed")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, repository.Fail(span, err, q, "decrement material failed")
	}
	return n == 1, nil
}

// Increment returns qty to the ledger.
func (r *Repository) Increment(ctx context.Context, materialID int64, qty decimal.Decimal) error {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.Increment", trace.WithAttributes(
		attribute.Int64("material.id", materialID),
		attribute.String("quantity", qty.String()),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewUpdate().
		Model((*entity.Material)(nil)).
		Set("quantity = quantity + ?", qty).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", materialID)
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "increment material failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateReservation inserts a reservation row.
func (r *Repository) CreateReservation(ctx context.Context, res *entity.MaterialReservation) error {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.CreateReservation", trace.WithAttributes(
		attribute.Int64("order.id", res.OrderID),
		attribute.Int64("material.id", res.MaterialID),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(res)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert reservation failed")
	}
	return nil
}

// FindReservation returns the reservation in the given status for (order, material, stage).
func (r *Repository) FindReservation(ctx context.Context, orderID, materialID, stageID int64, status string) (*entity.MaterialReservation, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.FindReservation")
	defer span.End()

	res := new(entity.MaterialReservation)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(res).
		Where("order_id = ?", orderID).
		Where("material_id = ?", materialID).
		Where("stage_id = ?", stageID).
		Where("status = ?", status).
		Order("id ASC").
		Limit(1)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select reservation failed")
	}
	return res, nil
}

// ReservationFilter narrows ListReservations. Zero values match everything.
type ReservationFilter struct {
	StageID *int64
	Status  string
}

// ListReservations returns reservations for an order.
func (r *Repository) ListReservations(ctx context.Context, orderID int64, filter ReservationFilter) ([]entity.MaterialReservation, error) {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.ListReservations", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	var out []entity.MaterialReservation
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&out).Where("order_id = ?", orderID)
	if filter.StageID != nil {
		q = q.Where("stage_id = ?", *filter.StageID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	q = q.Order("id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select reservations failed")
	}
	return out, nil
}

// UpdateReservation settles a reservation. Only rows still reserved are touched,
// so a used or released row is never rewritten.
func (r *Repository) UpdateReservation(ctx context.Context, res *entity.MaterialReservation) error {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.UpdateReservation", trace.WithAttributes(attribute.Int64("reservation.id", res.ID)))
	defer span.End()

	res.UpdatedAt = time.Now().UTC()
	q := r.conns.WriterFor(ctx).NewUpdate().Model(res).
		Column("quantity_used", "quantity_returned", "status", "updated_at").
		WherePK().
		Where("status = ?", entity.ReservationReserved)
	result, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "update reservation failed")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LogTransaction appends a ledger movement.
func (r *Repository) LogTransaction(ctx context.Context, tx *entity.InventoryTransaction) error {
	ctx, span := repoTracer.Start(ctx, "InventoryRepository.LogTransaction", trace.WithAttributes(
		attribute.Int64("material.id", tx.MaterialID),
		attribute.String("type", tx.Type),
	))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(tx)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert inventory transaction failed")
	}
	return nil
}
