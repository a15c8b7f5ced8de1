package order

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
	repo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/shopfloor/service/order")

// Store persists orders.
type Store interface {
	Create(ctx context.Context, order *entity.Order) error
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// Products prices new orders.
type Products interface {
	GetByID(ctx context.Context, id int64) (*entity.Product, error)
}

// Service encapsulates business logic around orders.
type Service struct {
	repo      Store
	products  Products
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Publisher
	messaging messagingConfig
	initial   stage.Name
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository Store
	Products   Products
	Cache      cache.Store
	Config     config.Config
	Sequence   stage.Sequence
	Logger     *zap.Logger
	Publisher  messaging.Publisher `optional:"true"`
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	initial := stage.Pending
	if p.Sequence.Len() > 0 {
		initial = p.Sequence.First()
	}
	return &Service{
		repo:      p.Repository,
		products:  p.Products,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{enabled: p.Config.Messaging.Enabled},
		initial:   initial,
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorbank.NotFound("order not found", errorbank.WithModel("order", id))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return nil, err
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}
	return order, nil
}

// Create validates and prices a new order, persists it and announces it.
func (s *Service) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	if !order.Quantity.IsPositive() {
		return errorbank.Validation("invalid order", map[string]string{"quantity": "quantity must be greater than 0"})
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.Int64("product.id", order.ProductID)))
	defer span.End()

	product, err := s.products.GetByID(ctx, order.ProductID)
	if errors.Is(err, productrepo.ErrNotFound) {
		return errorbank.Validation("invalid order", map[string]string{"product_id": "product does not exist"})
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now
	if order.Number == "" {
		order.Number = newOrderNumber(now)
	}
	if order.TotalCost.IsZero() {
		order.TotalCost = product.BasePrice.Mul(order.Quantity)
	}
	if order.EstimatedHours.IsZero() {
		order.EstimatedHours = product.EstimatedHours
	}
	order.Status = entity.OrderStatusPending
	order.ProductionStage = s.initial.String()
	order.QualityStatus = entity.QualityStatusPending
	order.DeliveryStatus = entity.DeliveryStatusPending

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return err
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}
	s.logger.Info("order created",
		zap.Int64("order_id", order.ID), zap.String("number", order.Number), zap.String("total_cost", order.TotalCost.String()))

	s.publishOrderCreated(ctx, order)
	return nil
}

func newOrderNumber(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return fmt.Sprintf("ORD-%s-%s", at.Format("20060102"), suffix)
}

func (s *Service) publishOrderCreated(ctx context.Context, order *entity.Order) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := OrderCreatedEvent{
		ID:        order.ID,
		Number:    order.Number,
		ProductID: order.ProductID,
		Quantity:  order.Quantity,
		Status:    order.Status,
		CreatedAt: order.CreatedAt,
	}
	if err := messaging.PublishEvent(ctx, s.publisher, messaging.EventOrderCreated, fmt.Sprintf("order-%d", order.ID), event); err != nil {
		s.logger.Error("publish order created", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	var order entity.Order
	if err := cache.GetJSON(ctx, s.cache, cache.OrderKey(id), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return nil
	}
	return cache.SetJSON(ctx, s.cache, cache.OrderKey(order.ID), order, s.cacheTTL)
}

// OrderCreatedEvent is emitted when a new order is persisted.
type OrderCreatedEvent struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	ProductID int64           `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
