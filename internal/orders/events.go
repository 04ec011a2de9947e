package orders

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventOrderPlaced        EventType = "order.placed"
	EventOrderStatusChanged EventType = "order.status_changed"
)

type Event struct {
	Type           EventType       `json:"type"`
	OrderID        int64           `json:"order_id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	PreviousStatus Status          `json:"previous_status,omitempty"`
	Status         Status          `json:"status"`
	PayAmount      decimal.Decimal `json:"pay_amount"`
	Items          []EventItem     `json:"items"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

type EventItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Publisher delivers order events after the transaction that produced them commits.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }

func newEvent(t EventType, o Order, previous Status, at time.Time) Event {
	items := make([]EventItem, len(o.Lines))
	for i, l := range o.Lines {
		items[i] = EventItem{ProductID: l.ProductID, Quantity: l.Quantity}
	}
	return Event{
		Type:           t,
		OrderID:        o.ID,
		OrderNumber:    o.OrderNumber,
		UserID:         o.UserID,
		PreviousStatus: previous,
		Status:         o.Status,
		PayAmount:      o.PayAmount,
		Items:          items,
		OccurredAt:     at,
	}
}
