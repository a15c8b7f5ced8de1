package product

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/shopfloor/internal/database"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/shopfloor/repository/product")

// ErrNotFound is returned when a product is missing.
var ErrNotFound = errors.New("product not found")

// Repository reads product templates, their bill of materials and stage estimates.
type Repository struct {
	conns *database.Connections
}

// NewRepository wires a product repository.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{conns: conns}
}

// GetByID loads a product template.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Product, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.GetByID", trace.WithAttributes(attribute.Int64("product.id", id)))
	defer span.End()

	p := new(entity.Product)
	q := r.conns.ReaderFor(ctx).NewSelect().Model(p).Where("id = ?", id)
	err := q.Scan(ctx)
	if repository.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, repository.Fail(span, err, q, "select product failed")
	}
	return p, nil
}

// BillOfMaterials returns the per-unit material lines of a product.
func (r *Repository) BillOfMaterials(ctx context.Context, productID int64) ([]entity.ProductMaterial, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.BillOfMaterials", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	var lines []entity.ProductMaterial
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&lines).Where("product_id = ?", productID).Order("id ASC")
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select bill of materials failed")
	}
	return lines, nil
}

// StageEstimates returns product-specific hour overrides keyed by stage id.
func (r *Repository) StageEstimates(ctx context.Context, productID int64) (map[int64]entity.ProductStageEstimate, error) {
	ctx, span := repoTracer.Start(ctx, "ProductRepository.StageEstimates", trace.WithAttributes(attribute.Int64("product.id", productID)))
	defer span.End()

	var rows []entity.ProductStageEstimate
	q := r.conns.ReaderFor(ctx).NewSelect().Model(&rows).Where("product_id = ?", productID)
	if err := q.Scan(ctx); err != nil {
		return nil, repository.Fail(span, err, q, "select stage estimates failed")
	}
	out := make(map[int64]entity.ProductStageEstimate, len(rows))
	for _, row := range rows {
		out[row.StageID] = row
	}
	return out, nil
}
