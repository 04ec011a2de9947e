package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"shop-service/internal/orders"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	topic      string
	key, value []byte
}

type fakeProducer struct {
	sent []message
	err  error
}

func (f *fakeProducer) ProduceMessage(_ context.Context, topic string, key, value []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, message{topic: topic, key: key, value: value})
	return nil
}

func TestPublisher_RoutesByType(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewPublisher(fp)
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, pub.Publish(context.Background(), orders.Event{
		Type: orders.EventOrderPlaced, OrderID: 42, OrderNumber: "202503011000001234",
		Status: orders.StatusPending, PayAmount: decimal.RequireFromString("310.00"), OccurredAt: at,
		Items: []orders.EventItem{{ProductID: 7, Quantity: 3}},
	}))
	require.NoError(t, pub.Publish(context.Background(), orders.Event{
		Type: orders.EventOrderStatusChanged, OrderID: 42, PreviousStatus: orders.StatusPending,
		Status: orders.StatusCancelled, OccurredAt: at,
	}))

	require.Len(t, fp.sent, 2)
	assert.Equal(t, TopicOrderPlaced, fp.sent[0].topic)
	assert.Equal(t, TopicOrderStatusChanged, fp.sent[1].topic)
	assert.Equal(t, "42", string(fp.sent[0].key))

	var got orders.Event
	require.NoError(t, json.Unmarshal(fp.sent[0].value, &got))
	assert.Equal(t, "202503011000001234", got.OrderNumber)
	assert.True(t, got.PayAmount.Equal(decimal.NewFromInt(310)))
	assert.Equal(t, []orders.EventItem{{ProductID: 7, Quantity: 3}}, got.Items)
}

func TestPublisher_Errors(t *testing.T) {
	boom := errors.New("broker unreachable")
	pub := NewPublisher(&fakeProducer{err: boom})

	err := pub.Publish(context.Background(), orders.Event{Type: orders.EventOrderPlaced})
	assert.ErrorIs(t, err, boom)

	err = pub.Publish(context.Background(), orders.Event{Type: "order.refunded"})
	assert.ErrorContains(t, err, "no topic")
}
