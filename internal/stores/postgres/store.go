package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/orders"
)

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	return &Store{db: db}, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &orderTx{tx: tx})
	})
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", classify(err))
	}

	// Keep Postgres from waiting on a lock longer than the caller will.
	if deadline, ok := ctx.Deadline(); ok {
		ms := max(time.Until(deadline).Milliseconds(), 1)
		for _, setting := range []string{"lock_timeout", "statement_timeout"} {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL %s = %d", setting, ms)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("failed to set %s: %w", setting, classify(err))
			}
		}
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("failed to rollback transaction: %v, original error: %w", rbErr, classify(err))
		}
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", classify(err))
	}
	return nil
}

const productColumns = `id, name, image, price, stock, sales, is_active, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(row scanner) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(&p.ID, &p.Name, &p.Image, &p.Price, &p.Stock, &p.Sales, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (s *Store) Product(ctx context.Context, id int64) (catalog.Product, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active`, id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return catalog.Product{}, fmt.Errorf("failed to query product: %w", err)
	}
	return p, nil
}

func (s *Store) Products(ctx context.Context, pg catalog.Page) ([]catalog.Product, error) {
	offset, limit := pg.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE is_active
		ORDER BY id
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	list := []catalog.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}
	return list, nil
}

// PutProduct inserts p, or replaces the row with p's id when it is set.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	var row *sql.Row
	if p.ID == 0 {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO products (name, image, price, stock, sales, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at`,
			p.Name, p.Image, p.Price, p.Stock, p.Sales, p.IsActive)
	} else {
		row = s.db.QueryRowContext(ctx, `
			INSERT INTO products (id, name, image, price, stock, sales, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, image = EXCLUDED.image, price = EXCLUDED.price,
			    stock = EXCLUDED.stock, sales = EXCLUDED.sales, is_active = EXCLUDED.is_active,
			    updated_at = NOW()
			RETURNING id, created_at`,
			p.ID, p.Name, p.Image, p.Price, p.Stock, p.Sales, p.IsActive)
	}
	if err := row.Scan(&p.ID, &p.CreatedAt); err != nil {
		return catalog.Product{}, fmt.Errorf("failed to save product: %w", err)
	}
	return p, nil
}

// DeleteProduct removes the product and, through the foreign key, any cart
// lines pointing at it. Order lines keep their snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

func (s *Store) AddLine(ctx context.Context, l cart.Line, limit int) (cart.Line, error) {
	specs, err := encodeSpecs(l.Specs)
	if err != nil {
		return cart.Line{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var raw []byte
		err := tx.QueryRowContext(ctx, `
			INSERT INTO cart_items (user_id, product_id, quantity, specs)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id, product_id) DO UPDATE
			SET quantity = cart_items.quantity + EXCLUDED.quantity,
			    specs = COALESCE(EXCLUDED.specs, cart_items.specs),
			    updated_at = NOW()
			RETURNING quantity, specs, created_at`,
			l.UserID, l.ProductID, l.Quantity, specs).Scan(&l.Quantity, &raw, &l.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to upsert cart item: %w", err)
		}
		if l.Quantity > limit {
			return fmt.Errorf("cart would hold %d, available %d: %w", l.Quantity, limit, cart.ErrInsufficientStock)
		}
		l.Specs, err = decodeSpecs(raw)
		return err
	})
	if err != nil {
		return cart.Line{}, err
	}
	return l, nil
}

func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, product_id, quantity, specs, created_at
		FROM cart_items
		WHERE user_id = $1
		ORDER BY product_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	defer rows.Close()

	var lines []cart.Line
	for rows.Next() {
		var (
			l   cart.Line
			raw []byte
		)
		if err := rows.Scan(&l.UserID, &l.ProductID, &l.Quantity, &raw, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		if l.Specs, err = decodeSpecs(raw); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}
	return lines, nil
}

func (s *Store) RemoveLine(ctx context.Context, userID string, productID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to delete cart item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

func (s *Store) Order(ctx context.Context, id int64) (orders.Order, error) {
	return loadOrder(ctx, s.db, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (s *Store) Orders(ctx context.Context, userID string, f orders.ListFilter) ([]orders.Order, error) {
	offset, limit := f.Page.Normalize()
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`, userID, string(f.Status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	list := []orders.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		list = append(list, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	if err := attachLines(ctx, s.db, list); err != nil {
		return nil, err
	}
	return list, nil
}

func (s *Store) LoyaltyPoints(ctx context.Context, userID string) (int64, error) {
	var points int64
	err := s.db.QueryRowContext(ctx, `SELECT points FROM loyalty_points WHERE user_id = $1`, userID).Scan(&points)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query loyalty points: %w", err)
	}
	return points, nil
}

const orderColumns = `id, order_number, user_id, address_id, total_amount, discount_amount,
	freight_amount, pay_amount, status, payment_method, remark, paid_at, shipped_at,
	completed_at, created_at, updated_at`

func scanOrder(row scanner) (orders.Order, error) {
	var (
		o                          orders.Order
		paid, shipped, completedAt sql.NullTime
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.AddressID, &o.TotalAmount, &o.DiscountAmount,
		&o.FreightAmount, &o.PayAmount, &o.Status, &o.PaymentMethod, &o.Remark, &paid, &shipped,
		&completedAt, &o.CreatedAt, &o.UpdatedAt)
	o.PaidAt = timePtr(paid)
	o.ShippedAt = timePtr(shipped)
	o.CompletedAt = timePtr(completedAt)
	return o, err
}

func loadOrder(ctx context.Context, q querier, query string, id int64) (orders.Order, error) {
	o, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	if err != nil {
		return orders.Order{}, fmt.Errorf("failed to query order: %w", err)
	}
	list := []orders.Order{o}
	if err := attachLines(ctx, q, list); err != nil {
		return orders.Order{}, err
	}
	return list[0], nil
}

// attachLines loads the lines of every order in list with one query.
func attachLines(ctx context.Context, q querier, list []orders.Order) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]int64, len(list))
	index := make(map[int64]int, len(list))
	for i, o := range list {
		ids[i] = o.ID
		index[o.ID] = i
		list[i].Lines = []orders.OrderLine{}
	}

	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, product_name, product_image, product_spec, price, quantity, subtotal
		FROM order_lines
		WHERE order_id = ANY($1)
		ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("failed to query order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l orders.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.ProductImage,
			&l.ProductSpec, &l.Price, &l.Quantity, &l.Subtotal); err != nil {
			return fmt.Errorf("failed to scan order line: %w", err)
		}
		i := index[l.OrderID]
		list[i].Lines = append(list[i].Lines, l)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating order lines: %w", err)
	}
	return nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func encodeSpecs(specs map[string]string) (any, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(specs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode specs: %w", err)
	}
	return string(b), nil
}

func decodeSpecs(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var specs map[string]string
	if err := json.Unmarshal(raw, &specs); err != nil {
		return nil, fmt.Errorf("failed to decode specs: %w", err)
	}
	return specs, nil
}
