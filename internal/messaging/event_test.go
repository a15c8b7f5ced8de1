package messaging

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	key     []byte
	value   []byte
	headers map[string]string
}

func (c *capture) Publish(_ context.Context, key, value []byte, headers map[string]string) error {
	c.key, c.value, c.headers = key, value, headers
	return nil
}

func TestPublishEventRoundTrip(t *testing.T) {
	var out capture
	type payload struct {
		OrderID int64  `json:"order_id"`
		Stage   string `json:"stage"`
	}

	err := PublishEvent(context.Background(), &out, EventOrderStageAdvanced, "order-7", payload{OrderID: 7, Stage: "cutting"})
	require.NoError(t, err)
	assert.Equal(t, "order-7", string(out.key))
	assert.Equal(t, EventOrderStageAdvanced, out.headers[HeaderEventType])
	assert.NotEmpty(t, out.headers[HeaderEventID])

	msg := Message{Value: out.value, Headers: out.headers}
	var got payload
	event, err := msg.Decode(&got)
	require.NoError(t, err)
	assert.Equal(t, out.headers[HeaderEventID], event.ID)
	assert.Equal(t, payload{OrderID: 7, Stage: "cutting"}, got)
}

func TestMessageEventTypeFallsBackToEnvelope(t *testing.T) {
	msg := Message{Value: []byte(`{"type":"order.created","data":{}}`)}
	assert.Equal(t, EventOrderCreated, msg.EventType())

	assert.Empty(t, Message{Value: []byte("not json")}.EventType())
}

func TestMemoryClientDeliversInOrder(t *testing.T) {
	client := NewMemoryClient("shopfloor.events", 4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, PublishEvent(ctx, client, EventOrderCreated, "order-1", map[string]int{"id": 1}))
	require.NoError(t, PublishEvent(ctx, client, EventOrderCompleted, "order-1", map[string]int{"id": 1}))

	var got []string
	err := client.Consume(ctx, func(_ context.Context, msg Message) error {
		got = append(got, msg.EventType())
		if len(got) == 2 {
			cancel()
		}
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{EventOrderCreated, EventOrderCompleted}, got)
	assert.Equal(t, "shopfloor.events", client.Topic())
}

func TestMemoryClientPublishHonoursContext(t *testing.T) {
	client := NewMemoryClient("t", 1, nil)
	require.NoError(t, client.Publish(context.Background(), nil, []byte("a"), nil))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, client.Publish(ctx, nil, []byte("b"), nil), context.Canceled)
}

func TestHandleWithRetryRecoversFromTransientFailure(t *testing.T) {
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		if calls < 3 {
			return errors.New("database busy")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), handler, Message{Offset: 9}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	calls := 0
	boom := errors.New("bad payload")
	handler := func(context.Context, Message) error {
		calls++
		return boom
	}

	err := handleWithRetry(context.Background(), handler, Message{}, 2, time.Millisecond)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	handler := func(context.Context, Message) error {
		calls++
		cancel()
		return errors.New("failed")
	}

	err := handleWithRetry(ctx, handler, Message{}, 5, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
