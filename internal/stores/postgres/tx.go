package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"shop-service/internal/catalog"
	"shop-service/internal/orders"
)

// orderTx implements orders.Tx on an open transaction. Rows are always locked
// in ascending id order so that concurrent orders cannot deadlock each other.
type orderTx struct {
	tx *sql.Tx
}

func (t *orderTx) LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]catalog.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		out[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return out, nil
}

func (t *orderTx) ReserveStock(ctx context.Context, productID int64, qty int) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - $1, sales = sales + $1, updated_at = NOW()
		WHERE id = $2 AND stock >= $1`, qty, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return orders.ErrInsufficientStock
	}
	return nil
}

func (t *orderTx) RestoreStock(ctx context.Context, productID int64, qty int) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + $1, sales = GREATEST(sales - $1, 0), updated_at = NOW()
		WHERE id = $2`, qty, productID)
	if err != nil {
		return false, fmt.Errorf("failed to restore stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (t *orderTx) InsertOrder(ctx context.Context, o *orders.Order) error {
	err := t.tx.QueryRowContext(ctx, `
		INSERT INTO orders (order_number, user_id, address_id, total_amount, discount_amount,
			freight_amount, pay_amount, status, payment_method, remark, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		o.OrderNumber, o.UserID, o.AddressID, o.TotalAmount, o.DiscountAmount,
		o.FreightAmount, o.PayAmount, string(o.Status), o.PaymentMethod, o.Remark, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", classify(err))
	}

	for i := range o.Lines {
		l := &o.Lines[i]
		l.OrderID = o.ID
		err := t.tx.QueryRowContext(ctx, `
			INSERT INTO order_lines (order_id, product_id, product_name, product_image, product_spec,
				price, quantity, subtotal)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			l.OrderID, l.ProductID, l.ProductName, l.ProductImage, l.ProductSpec, l.Price, l.Quantity, l.Subtotal,
		).Scan(&l.ID)
		if err != nil {
			return fmt.Errorf("failed to insert order line: %w", err)
		}
	}
	return nil
}

func (t *orderTx) RemoveCartLines(ctx context.Context, userID string, productIDs []int64) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = ANY($2)`, userID, productIDs)
	if err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}
	return nil
}

func (t *orderTx) LockOrder(ctx context.Context, id int64) (orders.Order, error) {
	return loadOrder(ctx, t.tx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
}

func (t *orderTx) UpdateOrderStatus(ctx context.Context, o orders.Order) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $1, paid_at = $2, shipped_at = $3, completed_at = $4, updated_at = $5
		WHERE id = $6`,
		string(o.Status), o.PaidAt, o.ShippedAt, o.CompletedAt, o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return orders.ErrOrderNotFound
	}
	return nil
}

func (t *orderTx) AddLoyaltyPoints(ctx context.Context, userID string, points int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO loyalty_points (user_id, points)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET points = loyalty_points.points + EXCLUDED.points, updated_at = NOW()`, userID, points)
	if err != nil {
		return fmt.Errorf("failed to add loyalty points: %w", err)
	}
	return nil
}
