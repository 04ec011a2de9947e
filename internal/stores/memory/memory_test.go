package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/orders"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, s *Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := s.PutProduct(context.Background(), catalog.Product{
			Name: "p", Price: decimal.NewFromInt(1), Stock: 10, IsActive: true,
		})
		require.NoError(t, err)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := New()
	seed(t, s, 1)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		require.NoError(t, tx.ReserveStock(ctx, 1, 4))
		o := &orders.Order{OrderNumber: "n1", UserID: "u", Status: orders.StatusPending}
		require.NoError(t, tx.InsertOrder(ctx, o))
		require.NoError(t, tx.AddLoyaltyPoints(ctx, "u", 5))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, err := s.Product(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
	_, err = s.Order(ctx, 1)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
	pts, err := s.LoyaltyPoints(ctx, "u")
	require.NoError(t, err)
	assert.Zero(t, pts)
}

func TestWithTx_CancelledContextDiscardsWork(t *testing.T) {
	s := New()
	seed(t, s, 1)
	ctx, cancel := context.WithCancel(context.Background())

	err := s.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		require.NoError(t, tx.ReserveStock(ctx, 1, 1))
		cancel()
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)

	p, err := s.Product(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)
}

func TestWithTx_CancelledContextNeverStarts(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for i := 0; i < 100; i++ {
		started := false
		err := s.WithTx(ctx, func(context.Context, orders.Tx) error {
			started = true
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.False(t, started, "attempt %d ran inside a cancelled context", i)
	}
}

func TestWithTx_WaitsForStoreUntilDeadline(t *testing.T) {
	s := New()
	held := make(chan struct{})
	release := make(chan struct{})
	finished := make(chan error, 1)
	go func() {
		finished <- s.WithTx(context.Background(), func(context.Context, orders.Tx) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	started := false
	err := s.WithTx(ctx, func(context.Context, orders.Tx) error {
		started = true
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, started)

	close(release)
	require.NoError(t, <-finished)
}

func TestOrders_PageBeyondRangeIsEmpty(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
		return tx.InsertOrder(ctx, &orders.Order{OrderNumber: "n1", UserID: "u"})
	}))

	list, err := s.Orders(ctx, "u", orders.ListFilter{Page: catalog.Page{Page: math.MaxInt, PageSize: 10}})
	require.NoError(t, err)
	assert.Empty(t, list)

	products, err := s.Products(ctx, catalog.Page{Page: math.MaxInt, PageSize: 1})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestReserveStock_RefusesOversell(t *testing.T) {
	s := New()
	seed(t, s, 1)

	err := s.WithTx(context.Background(), func(ctx context.Context, tx orders.Tx) error {
		return tx.ReserveStock(ctx, 1, 11)
	})
	assert.ErrorIs(t, err, orders.ErrInsufficientStock)
}

func TestInsertOrder_RejectsDuplicateNumber(t *testing.T) {
	s := New()
	ctx := context.Background()
	insert := func() error {
		return s.WithTx(ctx, func(ctx context.Context, tx orders.Tx) error {
			return tx.InsertOrder(ctx, &orders.Order{OrderNumber: "same", UserID: "u"})
		})
	}
	require.NoError(t, insert())
	assert.ErrorIs(t, insert(), orders.ErrOrderNumberConflict)
}

func TestProducts_HidesInactiveAndPaginates(t *testing.T) {
	s := New()
	seed(t, s, 5)
	ctx := context.Background()
	_, err := s.PutProduct(ctx, catalog.Product{ID: 3, Name: "off", Price: decimal.NewFromInt(1)})
	require.NoError(t, err)

	_, err = s.Product(ctx, 3)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	page, err := s.Products(ctx, catalog.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(4), page[0].ID)
	assert.Equal(t, int64(5), page[1].ID)

	empty, err := s.Products(ctx, catalog.Page{Page: 9, PageSize: 2})
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAddLine_MergesUpToLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	l, err := s.AddLine(ctx, cart.Line{UserID: "u", ProductID: 1, Quantity: 2}, 5)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Quantity)

	l, err = s.AddLine(ctx, cart.Line{UserID: "u", ProductID: 1, Quantity: 3, Specs: map[string]string{"size": "M"}}, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, l.Quantity)
	assert.Equal(t, "M", l.Specs["size"])

	_, err = s.AddLine(ctx, cart.Line{UserID: "u", ProductID: 1, Quantity: 1}, 5)
	assert.ErrorIs(t, err, cart.ErrInsufficientStock)

	lines, err := s.Lines(ctx, "u")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)

	require.NoError(t, s.RemoveLine(ctx, "u", 1))
	assert.ErrorIs(t, s.RemoveLine(ctx, "u", 1), cart.ErrLineNotFound)
}
