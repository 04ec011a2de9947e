package orders

import (
	"context"

	"shop-service/internal/catalog"
)

// Store is the persistence contract of the order engine. Every mutation goes
// through WithTx so that a failed fn leaves nothing behind.
type Store interface {
	// WithTx runs fn in one isolated transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	// Order returns the order with its lines, or ErrOrderNotFound.
	Order(ctx context.Context, id int64) (Order, error)
	// Orders lists a user's orders newest first.
	Orders(ctx context.Context, userID string, f ListFilter) ([]Order, error)
}

// Tx is the set of writes available inside a transaction.
type Tx interface {
	// LockProducts reads and locks the given products in ascending id order.
	// Ids that do not exist are absent from the result.
	LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	// ReserveStock moves qty from stock to sales, failing with
	// ErrInsufficientStock when stock is below qty.
	ReserveStock(ctx context.Context, productID int64, qty int) error
	// RestoreStock moves qty from sales back to stock, clamping sales at zero.
	// It reports false when the product no longer exists.
	RestoreStock(ctx context.Context, productID int64, qty int) (bool, error)
	// InsertOrder persists o and its lines, assigning their ids. A duplicate
	// order number fails with ErrOrderNumberConflict.
	InsertOrder(ctx context.Context, o *Order) error
	RemoveCartLines(ctx context.Context, userID string, productIDs []int64) error
	// LockOrder reads and locks an order with its lines, or ErrOrderNotFound.
	LockOrder(ctx context.Context, id int64) (Order, error)
	// UpdateOrderStatus writes the status, timestamp fields and UpdatedAt of o.
	UpdateOrderStatus(ctx context.Context, o Order) error
	AddLoyaltyPoints(ctx context.Context, userID string, points int64) error
}
