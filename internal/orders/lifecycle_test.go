package orders_test

import (
	"context"
	"errors"
	"testing"

	"shop-service/internal/apperr"
	"shop-service/internal/orders"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCancel_RestoresStockAndSales(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 3)))
	require.NoError(t, err)

	cancelled, err := f.engine.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)

	live := f.live(t, p.ID)
	assert.Equal(t, 5, live.Stock)
	assert.Equal(t, 0, live.Sales)

	_, err = f.engine.Pay(ctx, alice, o.ID, "")
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	_, err = f.engine.Cancel(ctx, alice, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	assert.Equal(t, 5, f.live(t, p.ID).Stock, "a second cancel must not restore twice")
}

func TestCancel_DuplicateLinesRestoreEach(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 2), item(p.ID, 3)))
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, f.live(t, p.ID).Stock)
}

func TestCancel_SalesNeverGoNegative(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 3)))
	require.NoError(t, err)

	reset := f.live(t, p.ID)
	reset.Sales = 1
	_, err = f.store.PutProduct(ctx, reset)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)
	live := f.live(t, p.ID)
	assert.Equal(t, 0, live.Sales)
	assert.Equal(t, 5, live.Stock)
}

func TestCancel_SkipsDeletedProducts(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	kept := f.product(t, "kept", "10", 5)
	gone := f.product(t, "gone", "10", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(kept.ID, 1), item(gone.ID, 1)))
	require.NoError(t, err)
	require.NoError(t, f.store.DeleteProduct(ctx, gone.ID))

	cancelled, err := f.engine.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, cancelled.Status)
	assert.Equal(t, 5, f.live(t, kept.ID).Stock)
}

func TestCancel_ForeignOrderIsNotFound(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 1)))
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, bob, o.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	got, err := f.engine.Order(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, 4, f.live(t, p.ID).Stock)
}

func TestLifecycle_HappyPathCreditsPoints(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "33.33", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 3)))
	require.NoError(t, err)
	require.Equal(t, "99.99", o.PayAmount.String())

	paid, err := f.engine.Pay(ctx, alice, o.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, paid.Status)
	require.NotNil(t, paid.PaidAt)

	_, err = f.engine.Confirm(ctx, alice, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition, "paid orders must ship before completion")
	_, err = f.engine.Cancel(ctx, alice, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)

	shipped, err := f.engine.Ship(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedAt)

	_, err = f.engine.Confirm(ctx, bob, o.ID)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)

	done, err := f.engine.Confirm(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCompleted, done.Status)
	require.NotNil(t, done.CompletedAt)
	assert.True(t, done.CompletedAt.After(*done.PaidAt))

	points, err := f.store.LoyaltyPoints(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(99), points)

	assert.Equal(t, []orders.EventType{
		orders.EventOrderPlaced,
		orders.EventOrderStatusChanged,
		orders.EventOrderStatusChanged,
		orders.EventOrderStatusChanged,
	}, f.events.types())
	last := f.events.events[3]
	assert.Equal(t, orders.StatusShipped, last.PreviousStatus)
	assert.Equal(t, orders.StatusCompleted, last.Status)

	_, err = f.engine.Confirm(ctx, alice, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	points, err = f.store.LoyaltyPoints(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, int64(99), points)
}

func TestShip_RequiresPaid(t *testing.T) {
	f := newFixture(t, orders.Options{})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 1)))
	require.NoError(t, err)

	_, err = f.engine.Ship(ctx, o.ID)
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	_, err = f.engine.Ship(ctx, o.ID+1)
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
}

type rejectingVerifier struct {
	calls int
}

func (v *rejectingVerifier) VerifyPayment(context.Context, orders.Order, string) error {
	v.calls++
	return orders.ErrPaymentNotVerified
}

func TestPay_RejectedPaymentLeavesOrderPending(t *testing.T) {
	v := &rejectingVerifier{}
	f := newFixture(t, orders.Options{Payments: v})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 1)))
	require.NoError(t, err)

	_, err = f.engine.Pay(ctx, alice, o.ID, "pi_bogus")
	require.ErrorIs(t, err, orders.ErrPaymentNotVerified)
	assert.Equal(t, apperr.KindPaymentRequired, apperr.KindOf(err))
	assert.Equal(t, 1, v.calls)

	got, err := f.engine.Order(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Nil(t, got.PaidAt)
}

// flakyVerifier reports the gateway unavailable on its first call.
type flakyVerifier struct{ calls int }

var errGatewayDown = apperr.NewRetryable("payment_gateway_unavailable", apperr.KindUnavailable, "gateway down")

func (v *flakyVerifier) VerifyPayment(context.Context, orders.Order, string) error {
	v.calls++
	if v.calls == 1 {
		return errGatewayDown
	}
	return nil
}

func TestPay_RetryVerifiesAgain(t *testing.T) {
	v := &flakyVerifier{}
	f := newFixture(t, orders.Options{Payments: v})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 1)))
	require.NoError(t, err)

	_, err = f.engine.Pay(ctx, alice, o.ID, "pi_123")
	require.ErrorIs(t, err, errGatewayDown)
	assert.True(t, apperr.IsRetryable(err))

	paid, err := f.engine.Pay(ctx, alice, o.ID, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, paid.Status)
	assert.Equal(t, 2, v.calls)
}

func TestPay_VerifierNotCalledForWrongStatus(t *testing.T) {
	v := &rejectingVerifier{}
	f := newFixture(t, orders.Options{Payments: v})
	ctx := context.Background()
	p := f.product(t, "kettle", "100", 5)

	o, err := f.engine.PlaceOrder(ctx, alice, place(item(p.ID, 1)))
	require.NoError(t, err)
	_, err = f.engine.Cancel(ctx, alice, o.ID)
	require.NoError(t, err)

	_, err = f.engine.Pay(ctx, alice, o.ID, "pi_123")
	require.ErrorIs(t, err, orders.ErrInvalidTransition)
	_, err = f.engine.Pay(ctx, bob, o.ID, "pi_123")
	require.ErrorIs(t, err, orders.ErrOrderNotFound)
	assert.Zero(t, v.calls)
}

func TestTransition_ErrorsCarryCodes(t *testing.T) {
	f := newFixture(t, orders.Options{})
	_, err := f.engine.Cancel(context.Background(), alice, 42)

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "order_not_found", ae.Code)
	assert.False(t, ae.Retryable)
}
