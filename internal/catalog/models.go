package catalog

import (
	"context"
	"math"
	"time"

	"shop-service/internal/apperr"

	"github.com/shopspring/decimal"
)

// ErrProductNotFound is returned by Store lookups for unknown or inactive products.
var ErrProductNotFound = apperr.New("product_not_found", apperr.KindNotFound, "product does not exist")

// Product is the live catalog row. Price is authoritative at order time.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	Sales     int             `json:"sales"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
}

// Page selects a 1-based page of results.
type Page struct {
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize clamps p to sane bounds and returns the row offset and limit.
func (p Page) Normalize() (offset, limit int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	// Past this page the offset would overflow; every such page is empty anyway.
	if last := math.MaxInt / p.PageSize; p.Page > last {
		p.Page = last
	}
	return (p.Page - 1) * p.PageSize, p.PageSize
}

// Store is the read side of the catalog.
type Store interface {
	Product(ctx context.Context, id int64) (Product, error)
	Products(ctx context.Context, p Page) ([]Product, error)
}
