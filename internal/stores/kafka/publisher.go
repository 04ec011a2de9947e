package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"shop-service/internal/orders"
)

type producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte) error
}

// Publisher sends order events to Kafka, keyed by order id so that every
// event of one order lands on the same partition in order.
type Publisher struct {
	p producer
}

func NewPublisher(p producer) *Publisher {
	return &Publisher{p: p}
}

func (pub *Publisher) Publish(ctx context.Context, e orders.Event) error {
	topic, err := topicFor(e.Type)
	if err != nil {
		return err
	}
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshalling %s event: %w", e.Type, err)
	}
	return pub.p.ProduceMessage(ctx, topic, []byte(strconv.FormatInt(e.OrderID, 10)), value)
}

func topicFor(t orders.EventType) (string, error) {
	switch t {
	case orders.EventOrderPlaced:
		return TopicOrderPlaced, nil
	case orders.EventOrderStatusChanged:
		return TopicOrderStatusChanged, nil
	}
	return "", fmt.Errorf("no topic for event type %q", t)
}
