package cart

import (
	"time"

	"github.com/shopspring/decimal"
)

// Line is a pending purchase, unique per (UserID, ProductID).
type Line struct {
	UserID    string            `json:"user_id"`
	ProductID int64             `json:"product_id"`
	Quantity  int               `json:"quantity"`
	Specs     map[string]string `json:"specs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// DetailedLine is a Line joined with the live product it refers to.
type DetailedLine struct {
	Line
	Name  string          `json:"name"`
	Image string          `json:"image"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type CartResponse struct {
	Items []DetailedLine `json:"items"`
}

type NewLine struct {
	ProductID int64             `json:"product_id" validate:"required,gt=0"`
	Quantity  int               `json:"quantity" validate:"required,gte=1"`
	Specs     map[string]string `json:"specs" validate:"max=20"`
}
