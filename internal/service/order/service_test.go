package order

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/shopfloor/internal/cache"
	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/entity"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	"github.com/Additional-Code/shopfloor/internal/production/stage"
	repo "github.com/Additional-Code/shopfloor/internal/repository/order"
	productrepo "github.com/Additional-Code/shopfloor/internal/repository/product"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

type memOrders struct {
	rows  map[int64]entity.Order
	reads int
}

func (m *memOrders) Create(_ context.Context, o *entity.Order) error {
	o.ID = int64(len(m.rows) + 1)
	m.rows[o.ID] = *o
	return nil
}

func (m *memOrders) GetByID(_ context.Context, id int64) (*entity.Order, error) {
	m.reads++
	o, ok := m.rows[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &o, nil
}

type products map[int64]entity.Product

func (p products) GetByID(_ context.Context, id int64) (*entity.Product, error) {
	prod, ok := p[id]
	if !ok {
		return nil, productrepo.ErrNotFound
	}
	return &prod, nil
}

type memCache map[string][]byte

func (c memCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c[key]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return v, nil
}

func (c memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c[key] = value
	return nil
}

func (c memCache) Delete(_ context.Context, key string) error {
	delete(c, key)
	return nil
}

type outbox struct{ messages []messaging.Message }

func (o *outbox) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	o.messages = append(o.messages, messaging.Message{Key: key, Value: value, Headers: headers})
	return nil
}

func newService(store *memOrders, c cache.Store, pub messaging.Publisher) *Service {
	cfg := config.Config{}
	cfg.Messaging.Enabled = true
	return NewService(Params{
		Repository: store,
		Products:   products{3: {ID: 3, Name: "coat", BasePrice: decimal.RequireFromString("120.50"), EstimatedHours: decimal.NewFromInt(12)}},
		Cache:      c,
		Config:     cfg,
		Sequence:   stage.MustSequence(config.DefaultStages...),
		Publisher:  pub,
	})
}

func TestCreatePricesAndPublishes(t *testing.T) {
	store := &memOrders{rows: map[int64]entity.Order{}}
	box := &outbox{}
	svc := newService(store, memCache{}, box)

	order := &entity.Order{ClientID: 1, ProductID: 3, Quantity: decimal.NewFromInt(2)}
	require.NoError(t, svc.Create(context.Background(), order))

	assert.Equal(t, int64(1), order.ID)
	assert.True(t, strings.HasPrefix(order.Number, "ORD-"), order.Number)
	assert.Equal(t, "241", order.TotalCost.String())
	assert.Equal(t, entity.OrderStatusPending, order.Status)
	assert.Equal(t, "pending", order.ProductionStage)

	require.Len(t, box.messages, 1)
	msg := box.messages[0]
	assert.Equal(t, messaging.EventOrderCreated, msg.EventType())
	var payload OrderCreatedEvent
	_, err := msg.Decode(&payload)
	require.NoError(t, err)
	assert.Equal(t, int64(3), payload.ProductID)
	assert.True(t, decimal.NewFromInt(2).Equal(payload.Quantity))
}

func TestCreateValidation(t *testing.T) {
	svc := newService(&memOrders{rows: map[int64]entity.Order{}}, memCache{}, nil)

	err := svc.Create(context.Background(), &entity.Order{ProductID: 3})
	require.Error(t, err)
	assert.Equal(t, errorbank.KindValidation, errorbank.From(err).Kind())

	err = svc.Create(context.Background(), &entity.Order{ProductID: 404, Quantity: decimal.NewFromInt(1)})
	require.Error(t, err)
	fields, _ := errorbank.From(err).Details()["errors"].(map[string]string)
	assert.Contains(t, fields, "product_id")

	assert.Equal(t, errorbank.KindBadRequest, errorbank.From(svc.Create(context.Background(), nil)).Kind())
}

func TestGetUsesCache(t *testing.T) {
	store := &memOrders{rows: map[int64]entity.Order{}}
	svc := newService(store, memCache{}, nil)
	ctx := context.Background()

	order := &entity.Order{ProductID: 3, Quantity: decimal.NewFromInt(1)}
	require.NoError(t, svc.Create(ctx, order))

	got, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.Number, got.Number)
	assert.Zero(t, store.reads)

	_, err = svc.Get(ctx, 99)
	require.Error(t, err)
	assert.Equal(t, errorbank.KindNotFound, errorbank.From(err).Kind())
	assert.Equal(t, 1, store.reads)
}
