package orders

import (
	"time"

	"shop-service/internal/catalog"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Order is a committed purchase. Everything except the status and its
// timestamps is fixed once the order leaves pending.
type Order struct {
	ID             int64           `json:"id"`
	OrderNumber    string          `json:"order_number"`
	UserID         string          `json:"user_id"`
	AddressID      int64           `json:"address_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FreightAmount  decimal.Decimal `json:"freight_amount"`
	PayAmount      decimal.Decimal `json:"pay_amount"`
	Status         Status          `json:"status"`
	PaymentMethod  string          `json:"payment_method"`
	Remark         string          `json:"remark,omitempty"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	ShippedAt      *time.Time      `json:"shipped_at,omitempty"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Lines          []OrderLine     `json:"items"`
}

// OrderLine snapshots the product as it was when the order was placed.
type OrderLine struct {
	ID           int64           `json:"id"`
	OrderID      int64           `json:"order_id"`
	ProductID    int64           `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductImage string          `json:"product_image,omitempty"`
	ProductSpec  string          `json:"product_spec,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// LineItem is one requested (product, quantity, specs) tuple.
type LineItem struct {
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Specs     map[string]string `json:"specs,omitempty"`
}

type PlaceOrderRequest struct {
	AddressID     int64
	Items         []LineItem
	PaymentMethod string
	Remark        string
}

// ListFilter narrows Orders. A zero Status matches every status.
type ListFilter struct {
	Status Status
	Page   catalog.Page
}
