package orders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"
)

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusShipped},
	StatusShipped: {StatusCompleted},
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusShipped, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether s -> next is an edge of the order lifecycle.
func (s Status) CanTransitionTo(next Status) bool {
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Cancel moves a pending order to cancelled and gives its stock back.
// Lines whose product has been deleted since are skipped.
func (c *Conf) Cancel(ctx context.Context, userID string, id int64) (Order, error) {
	return c.transition(ctx, userID, id, StatusCancelled, func(ctx context.Context, tx Tx, o *Order, _ time.Time) error {
		for _, l := range o.Lines {
			restored, err := tx.RestoreStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("restoring %d of product %d: %w", l.Quantity, l.ProductID, err)
			}
			if !restored {
				slog.Warn("product gone, stock not restored", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
					slog.Int64(logkey.OrderID, o.ID), slog.Int64(logkey.ProductID, l.ProductID), slog.Int("Quantity", l.Quantity))
			}
		}
		return nil
	})
}

// Pay marks a pending order paid once the configured PaymentVerifier accepts
// reference. Verification runs before the transaction is opened so no row
// lock is held during a gateway call; transition re-checks owner and status
// under the lock. A retried Pay verifies again, which is expected: the
// verifier only reads the payment.
func (c *Conf) Pay(ctx context.Context, userID string, id int64, reference string) (Order, error) {
	cur, err := c.Order(ctx, userID, id)
	if err != nil {
		return Order{}, err
	}
	if !cur.Status.CanTransitionTo(StatusPaid) {
		return Order{}, fmt.Errorf("order %d is %s: %w", id, cur.Status, ErrInvalidTransition)
	}
	if err := c.opts.Payments.VerifyPayment(ctx, cur, reference); err != nil {
		return Order{}, fmt.Errorf("order %d: %w", id, err)
	}
	return c.transition(ctx, userID, id, StatusPaid, func(_ context.Context, _ Tx, o *Order, now time.Time) error {
		o.PaidAt = &now
		return nil
	})
}

// Ship marks a paid order shipped. It is an administrative action and is not
// scoped to the order's owner.
func (c *Conf) Ship(ctx context.Context, id int64) (Order, error) {
	return c.transition(ctx, "", id, StatusShipped, func(_ context.Context, _ Tx, o *Order, now time.Time) error {
		o.ShippedAt = &now
		return nil
	})
}

// Confirm completes a shipped order and credits the owner's loyalty points.
func (c *Conf) Confirm(ctx context.Context, userID string, id int64) (Order, error) {
	return c.transition(ctx, userID, id, StatusCompleted, func(ctx context.Context, tx Tx, o *Order, now time.Time) error {
		o.CompletedAt = &now
		if pts := LoyaltyPoints(o.PayAmount); pts > 0 {
			if err := tx.AddLoyaltyPoints(ctx, o.UserID, pts); err != nil {
				return fmt.Errorf("crediting %d points: %w", pts, err)
			}
		}
		return nil
	})
}

// transition locks the order, checks ownership (unless userID is empty) and
// the lifecycle edge, applies the side effects and writes the new status, all
// in one transaction.
func (c *Conf) transition(ctx context.Context, userID string, id int64, to Status,
	apply func(ctx context.Context, tx Tx, o *Order, now time.Time) error) (Order, error) {
	var (
		o    Order
		from Status
	)
	err := c.withTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.LockOrder(ctx, id)
		if err != nil {
			return fmt.Errorf("order %d: %w", id, err)
		}
		if userID != "" && cur.UserID != userID {
			return fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
		}
		if !cur.Status.CanTransitionTo(to) {
			return fmt.Errorf("order %d is %s, cannot become %s: %w", id, cur.Status, to, ErrInvalidTransition)
		}

		from = cur.Status
		now := c.opts.Now()
		cur.Status = to
		cur.UpdatedAt = now
		if err := apply(ctx, tx, &cur, now); err != nil {
			return err
		}
		if err := tx.UpdateOrderStatus(ctx, cur); err != nil {
			return fmt.Errorf("updating order %d: %w", id, err)
		}
		o = cur
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	slog.Info("order status changed", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
		slog.Int64(logkey.OrderID, o.ID), slog.String("From", string(from)), slog.String("To", string(to)))
	c.publish(ctx, newEvent(EventOrderStatusChanged, o, from, o.UpdatedAt))
	return o, nil
}
