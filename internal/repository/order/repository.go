package order

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/order")

// ErrNotFound is returned when an order is missing.
var ErrNotFound = errors.New("order not found")

// Repository encapsulates read/write access for orders and their sales.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(order)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert order failed")
	}
	return nil
}

// GetByID fetches an order by primary key using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(order).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select order failed")
	}
	return order, nil
}

// Update writes the given columns of the order and bumps updated_at.
func (r *Repository) Update(ctx context.Context, order *entity.Order, columns ...string) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Update", trace.WithAttributes(attribute.Int64("order.id", order.ID)))
	defer span.End()

	order.UpdatedAt = time.Now().UTC()
	q := r.conns.WriterFor(ctx).NewUpdate().Model(order).WherePK()
	if len(columns) > 0 {
		q = q.Column(append(columns, "updated_at")...)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return repository.Fail(span, err, q, "update order failed")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateSale books a sale row for a completed order.
func (r *Repository) CreateSale(ctx context.Context, sale *entity.Sale) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.CreateSale", trace.WithAttributes(attribute.Int64("order.id", sale.OrderID)))
	defer span.End()

	q := r.conns.WriterFor(ctx).NewInsert().Model(sale)
	if _, err := q.Exec(ctx); err != nil {
		return repository.Fail(span, err, q, "insert sale failed")
	}
	return nil
}

// SaleExists reports whether a sale was already booked for the order.
func (r *Repository) SaleExists(ctx context.Context, orderID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.SaleExists", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	q := r.conns.ReaderFor(ctx).NewSelect().Model((*entity.Sale)(nil)).Where("order_id = ?", orderID)
	exists, err := q.Exists(ctx)
	if err != nil {
		return false, repository.Fail(span, err, q, "select sale failed")
	}
	return exists, nil
}
