package order

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Additional-Code/shopfloor/internal/config"
	"github.com/Additional-Code/shopfloor/internal/messaging"
	ordersvc "github.com/Additional-Code/shopfloor/internal/service/order"
	"github.com/Additional-Code/shopfloor/internal/service/smartproduction"
	"github.com/Additional-Code/shopfloor/pkg/errorbank"
)

type starter struct {
	calls []int64
	err   error
}

func (s *starter) StartSmartProduction(_ context.Context, orderID int64) (*smartproduction.StartResult, error) {
	s.calls = append(s.calls, orderID)
	if s.err != nil {
		return nil, s.err
	}
	return &smartproduction.StartResult{OrderID: orderID, Stage: "design"}, nil
}

func createdMessage(t *testing.T, id int64) messaging.Message {
	t.Helper()
	event, err := messaging.NewEvent(messaging.EventOrderCreated, "order", ordersvc.OrderCreatedEvent{ID: id, Number: "ORD-1"})
	require.NoError(t, err)
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return messaging.Message{Value: value}
}

func TestOrderCreatedAutoStartsProduction(t *testing.T) {
	s := &starter{}
	cfg := config.Config{Production: config.Production{AutoStartOnCreate: true}}
	reg := NewOrderCreatedHandler(zap.NewNop(), cfg, s)
	assert.Equal(t, messaging.EventOrderCreated, reg.EventType)

	require.NoError(t, reg.Handler(context.Background(), createdMessage(t, 42)))
	assert.Equal(t, []int64{42}, s.calls)
}

func TestOrderCreatedWithoutAutoStart(t *testing.T) {
	s := &starter{}
	reg := NewOrderCreatedHandler(zap.NewNop(), config.Config{}, s)

	require.NoError(t, reg.Handler(context.Background(), createdMessage(t, 42)))
	assert.Empty(t, s.calls)
}

func TestOrderCreatedSkipsAlreadyStarted(t *testing.T) {
	s := &starter{err: errorbank.Conflict("production already started")}
	cfg := config.Config{Production: config.Production{AutoStartOnCreate: true}}
	reg := NewOrderCreatedHandler(zap.NewNop(), cfg, s)

	require.NoError(t, reg.Handler(context.Background(), createdMessage(t, 7)))

	s.err = errorbank.Storage("connection reset")
	assert.Error(t, reg.Handler(context.Background(), createdMessage(t, 7)))
}

func TestOrderCreatedRejectsGarbage(t *testing.T) {
	reg := NewOrderCreatedHandler(zap.NewNop(), config.Config{}, &starter{})
	assert.Error(t, reg.Handler(context.Background(), messaging.Message{Value: []byte("not json")}))
}
