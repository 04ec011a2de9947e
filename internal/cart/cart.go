package cart

import (
	"context"
	"errors"
	"fmt"

	"shop-service/internal/apperr"
	"shop-service/internal/catalog"
)

var (
	ErrInvalidQuantity   = apperr.New("invalid_quantity", apperr.KindInvalidInput, "quantity must be at least 1")
	ErrInsufficientStock = apperr.New("insufficient_stock", apperr.KindConflict, "not enough stock for the requested quantity")
	ErrLineNotFound      = apperr.New("cart_item_not_found", apperr.KindNotFound, "cart item does not exist")
)

// Store persists cart lines.
type Store interface {
	// AddLine inserts the line or adds its quantity to an existing one. The
	// resulting quantity must not exceed limit, else ErrInsufficientStock.
	AddLine(ctx context.Context, l Line, limit int) (Line, error)
	Lines(ctx context.Context, userID string) ([]Line, error)
	RemoveLine(ctx context.Context, userID string, productID int64) error
}

type Conf struct {
	store   Store
	catalog catalog.Store
}

func NewConf(store Store, cat catalog.Store) (*Conf, error) {
	if store == nil || cat == nil {
		return nil, errors.New("cart store and catalog are required")
	}
	return &Conf{store: store, catalog: cat}, nil
}

// AddToCart validates the product and stock, then merges the line into the user's cart.
func (c *Conf) AddToCart(ctx context.Context, userID string, nl NewLine) (Line, error) {
	if nl.Quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}
	p, err := c.catalog.Product(ctx, nl.ProductID)
	if err != nil {
		return Line{}, fmt.Errorf("product %d: %w", nl.ProductID, err)
	}
	if nl.Quantity > p.Stock {
		return Line{}, fmt.Errorf("requested %d, available %d: %w", nl.Quantity, p.Stock, ErrInsufficientStock)
	}
	l, err := c.store.AddLine(ctx, Line{
		UserID:    userID,
		ProductID: nl.ProductID,
		Quantity:  nl.Quantity,
		Specs:     nl.Specs,
	}, p.Stock)
	if err != nil {
		return Line{}, fmt.Errorf("adding product %d to cart: %w", nl.ProductID, err)
	}
	return l, nil
}

// GetActiveCartItems returns the user's lines joined with live product data.
// Lines whose product has since been removed from the catalog are skipped.
func (c *Conf) GetActiveCartItems(ctx context.Context, userID string) (*CartResponse, error) {
	lines, err := c.store.Lines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart lines: %w", err)
	}
	items := make([]DetailedLine, 0, len(lines))
	for _, l := range lines {
		p, err := c.catalog.Product(ctx, l.ProductID)
		if errors.Is(err, catalog.ErrProductNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("product %d: %w", l.ProductID, err)
		}
		items = append(items, DetailedLine{
			Line:  l,
			Name:  p.Name,
			Image: p.Image,
			Price: p.Price,
			Stock: p.Stock,
		})
	}
	return &CartResponse{Items: items}, nil
}

func (c *Conf) RemoveFromCart(ctx context.Context, userID string, productID int64) error {
	if err := c.store.RemoveLine(ctx, userID, productID); err != nil {
		return fmt.Errorf("removing product %d from cart: %w", productID, err)
	}
	return nil
}
