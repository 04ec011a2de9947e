package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/catalog"
	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"

	"github.com/shopspring/decimal"
)

const (
	defaultTxTimeout = 5 * time.Second
	publishTimeout   = 5 * time.Second
	maxSpecEntries   = 20
)

type Options struct {
	Pricing   Pricing
	TxTimeout time.Duration
	Payments  PaymentVerifier
	Events    Publisher

	// Now and OrderNumber are replaceable for tests.
	Now         func() time.Time
	OrderNumber func(time.Time) string
}

// Conf is the order engine: placement and every lifecycle transition.
type Conf struct {
	store Store
	opts  Options
}

func NewConf(store Store, opts Options) (*Conf, error) {
	if store == nil {
		return nil, errors.New("order store is nil")
	}
	if opts.Pricing == (Pricing{}) {
		opts.Pricing = DefaultPricing()
	}
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = defaultTxTimeout
	}
	if opts.Payments == nil {
		opts.Payments = TrustedVerifier{}
	}
	if opts.Events == nil {
		opts.Events = nopPublisher{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.OrderNumber == nil {
		opts.OrderNumber = NewOrderNumber
	}
	return &Conf{store: store, opts: opts}, nil
}

// PlaceOrder validates req against the live catalog, prices it, reserves
// stock, stores the order with its line snapshots and clears the matching
// cart lines. Either all of it commits or none of it does.
//
// Repeated product ids are reserved independently, each checked against the
// stock left after the earlier items of the same request.
func (c *Conf) PlaceOrder(ctx context.Context, userID string, req PlaceOrderRequest) (Order, error) {
	if len(req.Items) == 0 {
		return Order{}, ErrEmptyOrder
	}
	specs := make([]string, len(req.Items))
	for i, it := range req.Items {
		if it.Quantity <= 0 {
			return Order{}, fmt.Errorf("item %d has quantity %d: %w", i, it.Quantity, ErrInvalidQuantity)
		}
		s, err := encodeSpecs(it.Specs)
		if err != nil {
			return Order{}, fmt.Errorf("item %d: %w", i, err)
		}
		specs[i] = s
	}
	productIDs := distinctProductIDs(req.Items)

	var o Order
	err := c.withTx(ctx, func(ctx context.Context, tx Tx) error {
		products, err := tx.LockProducts(ctx, productIDs)
		if err != nil {
			return fmt.Errorf("locking products: %w", err)
		}

		claimed := make(map[int64]int, len(products))
		lines := make([]OrderLine, 0, len(req.Items))
		for i, it := range req.Items {
			p, ok := products[it.ProductID]
			if !ok || !p.IsActive {
				return fmt.Errorf("product %d: %w", it.ProductID, ErrProductNotFound)
			}
			if available := p.Stock - claimed[p.ID]; available < it.Quantity {
				return fmt.Errorf("product %d requested %d, available %d: %w", p.ID, it.Quantity, available, ErrInsufficientStock)
			}
			claimed[p.ID] += it.Quantity
			lines = append(lines, snapshotLine(p, it.Quantity, specs[i]))
		}

		now := c.opts.Now()
		q := c.opts.Pricing.Quote(lines)
		o = Order{
			OrderNumber:    c.opts.OrderNumber(now),
			UserID:         userID,
			AddressID:      req.AddressID,
			TotalAmount:    q.Total,
			DiscountAmount: q.Discount,
			FreightAmount:  q.Freight,
			PayAmount:      q.Pay,
			Status:         StatusPending,
			PaymentMethod:  req.PaymentMethod,
			Remark:         req.Remark,
			CreatedAt:      now,
			UpdatedAt:      now,
			Lines:          lines,
		}
		if err := tx.InsertOrder(ctx, &o); err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for _, l := range o.Lines {
			if err := tx.ReserveStock(ctx, l.ProductID, l.Quantity); err != nil {
				return fmt.Errorf("reserving %d of product %d: %w", l.Quantity, l.ProductID, err)
			}
		}

		if err := tx.RemoveCartLines(ctx, userID, productIDs); err != nil {
			return fmt.Errorf("clearing cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	slog.Info("order placed", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
		slog.Int64(logkey.OrderID, o.ID), slog.String("OrderNumber", o.OrderNumber),
		slog.String(logkey.UserID, userID), slog.String("PayAmount", o.PayAmount.StringFixed(2)))
	c.publish(ctx, newEvent(EventOrderPlaced, o, "", o.CreatedAt))
	return o, nil
}

// Order returns one of userID's orders. Orders owned by someone else are
// reported as ErrOrderNotFound.
func (c *Conf) Order(ctx context.Context, userID string, id int64) (Order, error) {
	o, err := c.store.Order(ctx, id)
	if err != nil {
		return Order{}, fmt.Errorf("order %d: %w", id, err)
	}
	if o.UserID != userID {
		return Order{}, fmt.Errorf("order %d: %w", id, ErrOrderNotFound)
	}
	return o, nil
}

// Orders lists userID's orders, newest first.
func (c *Conf) Orders(ctx context.Context, userID string, f ListFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("status %q: %w", f.Status, ErrInvalidStatus)
	}
	list, err := c.store.Orders(ctx, userID, f)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return list, nil
}

// withTx bounds fn by the configured transaction timeout. A transaction
// that runs out of time is reported as the retryable apperr.ErrTimeout.
func (c *Conf) withTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	txCtx, cancel := context.WithTimeout(ctx, c.opts.TxTimeout)
	defer cancel()

	err := c.store.WithTx(txCtx, fn)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && txCtx.Err() != nil && !errors.Is(err, apperr.ErrTimeout) {
		return fmt.Errorf("%w: %w", apperr.ErrTimeout, err)
	}
	return err
}

// publish delivers e without letting a broker failure undo a committed order.
func (c *Conf) publish(ctx context.Context, e Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := c.opts.Events.Publish(ctx, e); err != nil {
		slog.Error("failed to publish order event", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
			slog.String("Event", string(e.Type)), slog.Int64(logkey.OrderID, e.OrderID), slog.String(logkey.ERROR, err.Error()))
	}
}

func snapshotLine(p catalog.Product, qty int, spec string) OrderLine {
	return OrderLine{
		ProductID:    p.ID,
		ProductName:  p.Name,
		ProductImage: p.Image,
		ProductSpec:  spec,
		Price:        p.Price,
		Quantity:     qty,
		Subtotal:     p.Price.Mul(decimal.NewFromInt(int64(qty))),
	}
}

func encodeSpecs(specs map[string]string) (string, error) {
	if len(specs) == 0 {
		return "", nil
	}
	if len(specs) > maxSpecEntries {
		return "", fmt.Errorf("%d spec entries: %w", len(specs), ErrInvalidSpecs)
	}
	b, err := json.Marshal(specs)
	if err != nil {
		return "", fmt.Errorf("encoding specs: %w", err)
	}
	return string(b), nil
}

func distinctProductIDs(items []LineItem) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
