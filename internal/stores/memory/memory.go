// Package memory is an in-process implementation of the catalog, cart and
// order stores. Transactions are serialised and applied to a working copy
// that replaces the committed state only when the transaction succeeds.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/orders"
)

type cartKey struct {
	userID    string
	productID int64
}

type state struct {
	products     map[int64]catalog.Product
	cartLines    map[cartKey]cart.Line
	orders       map[int64]orders.Order
	orderNumbers map[string]int64
	points       map[string]int64

	nextProductID int64
	nextOrderID   int64
	nextLineID    int64
}

func (s *state) clone() *state {
	c := *s
	c.products = maps.Clone(s.products)
	c.cartLines = maps.Clone(s.cartLines)
	c.orders = maps.Clone(s.orders)
	c.orderNumbers = maps.Clone(s.orderNumbers)
	c.points = maps.Clone(s.points)
	return &c
}

type Store struct {
	sem  chan struct{}
	data *state
	now  func() time.Time
}

func New() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		data: &state{
			products:     make(map[int64]catalog.Product),
			cartLines:    make(map[cartKey]cart.Line),
			orders:       make(map[int64]orders.Order),
			orderNumbers: make(map[string]int64),
			points:       make(map[string]int64),
		},
		now: time.Now,
	}
}

// acquire never starts work for a context that is already done, even when
// the store is free.
func (s *Store) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("waiting for store: %w", err)
	}
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for store: %w", ctx.Err())
	}
}

func (s *Store) release() { <-s.sem }

// WithTx runs fn against a private copy of the state and publishes the copy
// only if fn succeeds before ctx expires.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx orders.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	work := s.data.clone()
	if err := fn(ctx, &tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction aborted: %w", err)
	}
	s.data = work
	return nil
}

// PutProduct inserts or replaces a product, assigning an id when p.ID is zero.
func (s *Store) PutProduct(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	if err := s.acquire(ctx); err != nil {
		return catalog.Product{}, err
	}
	defer s.release()

	if p.ID == 0 {
		s.data.nextProductID++
		p.ID = s.data.nextProductID
	} else if p.ID > s.data.nextProductID {
		s.data.nextProductID = p.ID
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.data.products[p.ID] = p
	return p, nil
}

func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()
	delete(s.data.products, id)
	return nil
}

func (s *Store) Product(ctx context.Context, id int64) (catalog.Product, error) {
	if err := s.acquire(ctx); err != nil {
		return catalog.Product{}, err
	}
	defer s.release()

	p, ok := s.data.products[id]
	if !ok || !p.IsActive {
		return catalog.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (s *Store) Products(ctx context.Context, pg catalog.Page) ([]catalog.Product, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var list []catalog.Product
	for _, p := range s.data.products {
		if p.IsActive {
			list = append(list, p)
		}
	}
	slices.SortFunc(list, func(a, b catalog.Product) int { return compareInt64(a.ID, b.ID) })
	offset, limit := pg.Normalize()
	return window(list, offset, limit), nil
}

func (s *Store) AddLine(ctx context.Context, l cart.Line, limit int) (cart.Line, error) {
	if err := s.acquire(ctx); err != nil {
		return cart.Line{}, err
	}
	defer s.release()

	k := cartKey{userID: l.UserID, productID: l.ProductID}
	if existing, ok := s.data.cartLines[k]; ok {
		existing.Quantity += l.Quantity
		if l.Specs != nil {
			existing.Specs = l.Specs
		}
		l = existing
	} else {
		l.CreatedAt = s.now()
	}
	if l.Quantity > limit {
		return cart.Line{}, fmt.Errorf("cart would hold %d, available %d: %w", l.Quantity, limit, cart.ErrInsufficientStock)
	}
	s.data.cartLines[k] = l
	return l, nil
}

func (s *Store) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var lines []cart.Line
	for k, l := range s.data.cartLines {
		if k.userID == userID {
			lines = append(lines, l)
		}
	}
	slices.SortFunc(lines, func(a, b cart.Line) int { return compareInt64(a.ProductID, b.ProductID) })
	return lines, nil
}

func (s *Store) RemoveLine(ctx context.Context, userID string, productID int64) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	k := cartKey{userID: userID, productID: productID}
	if _, ok := s.data.cartLines[k]; !ok {
		return cart.ErrLineNotFound
	}
	delete(s.data.cartLines, k)
	return nil
}

func (s *Store) Order(ctx context.Context, id int64) (orders.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return orders.Order{}, err
	}
	defer s.release()

	o, ok := s.data.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (s *Store) Orders(ctx context.Context, userID string, f orders.ListFilter) ([]orders.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	var list []orders.Order
	for _, o := range s.data.orders {
		if o.UserID != userID || (f.Status != "" && o.Status != f.Status) {
			continue
		}
		list = append(list, copyOrder(o))
	}
	slices.SortFunc(list, func(a, b orders.Order) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return compareInt64(b.ID, a.ID)
	})
	offset, limit := f.Page.Normalize()
	return window(list, offset, limit), nil
}

// LoyaltyPoints returns the points credited to userID so far.
func (s *Store) LoyaltyPoints(ctx context.Context, userID string) (int64, error) {
	if err := s.acquire(ctx); err != nil {
		return 0, err
	}
	defer s.release()
	return s.data.points[userID], nil
}

type tx struct {
	st *state
}

func (t *tx) LockProducts(_ context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *tx) ReserveStock(_ context.Context, productID int64, qty int) error {
	p, ok := t.st.products[productID]
	if !ok {
		return orders.ErrProductNotFound
	}
	if p.Stock < qty {
		return orders.ErrInsufficientStock
	}
	p.Stock -= qty
	p.Sales += qty
	t.st.products[productID] = p
	return nil
}

func (t *tx) RestoreStock(_ context.Context, productID int64, qty int) (bool, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return false, nil
	}
	p.Stock += qty
	p.Sales = max(p.Sales-qty, 0)
	t.st.products[productID] = p
	return true, nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, dup := t.st.orderNumbers[o.OrderNumber]; dup {
		return fmt.Errorf("order number %s: %w", o.OrderNumber, orders.ErrOrderNumberConflict)
	}
	t.st.nextOrderID++
	o.ID = t.st.nextOrderID
	for i := range o.Lines {
		t.st.nextLineID++
		o.Lines[i].ID = t.st.nextLineID
		o.Lines[i].OrderID = o.ID
	}
	t.st.orders[o.ID] = copyOrder(*o)
	t.st.orderNumbers[o.OrderNumber] = o.ID
	return nil
}

func (t *tx) RemoveCartLines(_ context.Context, userID string, productIDs []int64) error {
	for _, id := range productIDs {
		delete(t.st.cartLines, cartKey{userID: userID, productID: id})
	}
	return nil
}

func (t *tx) LockOrder(_ context.Context, id int64) (orders.Order, error) {
	o, ok := t.st.orders[id]
	if !ok {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *tx) UpdateOrderStatus(_ context.Context, o orders.Order) error {
	cur, ok := t.st.orders[o.ID]
	if !ok {
		return orders.ErrOrderNotFound
	}
	cur.Status = o.Status
	cur.PaidAt = o.PaidAt
	cur.ShippedAt = o.ShippedAt
	cur.CompletedAt = o.CompletedAt
	cur.UpdatedAt = o.UpdatedAt
	t.st.orders[o.ID] = cur
	return nil
}

func (t *tx) AddLoyaltyPoints(_ context.Context, userID string, points int64) error {
	t.st.points[userID] += points
	return nil
}

func copyOrder(o orders.Order) orders.Order {
	o.Lines = slices.Clone(o.Lines)
	return o
}

func window[T any](list []T, offset, limit int) []T {
	if offset < 0 || offset >= len(list) {
		return []T{}
	}
	return list[offset:min(offset+limit, len(list))]
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
