// Package payments verifies payment claims against Stripe.
package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"shop-service/internal/apperr"
	"shop-service/internal/orders"
	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// MetadataOrderNumber is the PaymentIntent metadata key that must carry the
// order number the intent was created for.
const MetadataOrderNumber = "order_number"

var ErrGatewayUnavailable = apperr.NewRetryable("payment_gateway_unavailable", apperr.KindUnavailable,
	"the payment provider could not be reached, please retry")

type intentGetter interface {
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeVerifier accepts a payment reference only when it names a succeeded
// PaymentIntent for exactly the order's pay amount and currency.
type StripeVerifier struct {
	intents  intentGetter
	currency string
}

func NewStripeVerifier(secretKey, currency string) *StripeVerifier {
	sc := &client.API{}
	sc.Init(secretKey, nil)
	return newStripeVerifier(sc.PaymentIntents, currency)
}

func newStripeVerifier(intents intentGetter, currency string) *StripeVerifier {
	return &StripeVerifier{intents: intents, currency: strings.ToLower(currency)}
}

func (v *StripeVerifier) VerifyPayment(ctx context.Context, o orders.Order, reference string) error {
	traceId := ctxmanage.GetTraceId(ctx)
	if reference == "" {
		return fmt.Errorf("missing payment reference: %w", orders.ErrPaymentNotVerified)
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := v.intents.Get(reference, params)
	if err != nil {
		var se *stripe.Error
		if errors.As(err, &se) && se.HTTPStatusCode >= http.StatusBadRequest && se.HTTPStatusCode < http.StatusInternalServerError {
			slog.Warn("payment intent rejected by stripe", slog.String(logkey.TraceID, traceId),
				slog.Int64(logkey.OrderID, o.ID), slog.String("Reference", reference), slog.String(logkey.ERROR, err.Error()))
			return fmt.Errorf("payment intent %s: %w", reference, orders.ErrPaymentNotVerified)
		}
		return fmt.Errorf("fetching payment intent %s: %w: %w", reference, ErrGatewayUnavailable, err)
	}

	if reason := v.mismatch(o, pi); reason != "" {
		slog.Warn("payment intent does not match order", slog.String(logkey.TraceID, traceId),
			slog.Int64(logkey.OrderID, o.ID), slog.String("Reference", reference), slog.String("Reason", reason))
		return fmt.Errorf("payment intent %s: %s: %w", reference, reason, orders.ErrPaymentNotVerified)
	}
	return nil
}

func (v *StripeVerifier) mismatch(o orders.Order, pi *stripe.PaymentIntent) string {
	minor := o.PayAmount.Shift(2)
	switch {
	case pi.Status != stripe.PaymentIntentStatusSucceeded:
		return fmt.Sprintf("status is %s", pi.Status)
	case string(pi.Currency) != v.currency:
		return fmt.Sprintf("currency is %s", pi.Currency)
	case !minor.IsInteger() || pi.Amount != minor.IntPart():
		return fmt.Sprintf("amount is %d", pi.Amount)
	case pi.Metadata[MetadataOrderNumber] != o.OrderNumber:
		return "order number does not match"
	}
	return ""
}
