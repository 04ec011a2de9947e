package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"shop-service/internal/orders"
	"shop-service/internal/stores/cache"
	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

const maxIdempotencyKeyLen = 128

// Idempotency remembers the response of a completed POST /orders so that a
// client retrying with the same Idempotency-Key gets it back unchanged.
type Idempotency interface {
	GenerateKey(operation, key string) string
	Begin(ctx context.Context, key string) (cached []byte, started bool, err error)
	Complete(ctx context.Context, key string, response []byte) error
	Abort(ctx context.Context, key string) error
}

type orderItemRequest struct {
	ProductID int64             `json:"product_id" validate:"required,gt=0"`
	Quantity  int               `json:"quantity"`
	Specs     map[string]string `json:"specs"`
}

type placeOrderRequest struct {
	AddressID     int64              `json:"address_id" validate:"required,gt=0"`
	Items         []orderItemRequest `json:"items" validate:"dive"`
	PaymentMethod string             `json:"payment_method" validate:"max=32"`
	Remark        string             `json:"remark" validate:"max=500"`
}

func (r placeOrderRequest) toDomain() orders.PlaceOrderRequest {
	items := make([]orders.LineItem, len(r.Items))
	for i, it := range r.Items {
		items[i] = orders.LineItem{ProductID: it.ProductID, Quantity: it.Quantity, Specs: it.Specs}
	}
	return orders.PlaceOrderRequest{
		AddressID:     r.AddressID,
		Items:         items,
		PaymentMethod: r.PaymentMethod,
		Remark:        r.Remark,
	}
}

type payRequest struct {
	PaymentReference string `json:"payment_reference" validate:"max=255"`
}

func (h *Handler) PlaceOrder(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		badRequest(c, "invalid_request", http.StatusText(http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, "invalid_request", validationMessage(err))
		return
	}

	ctx := c.Request.Context()
	idemKey, handled := h.beginIdempotent(c, uid)
	if handled {
		return
	}

	var o orders.Order
	err := h.withRetry(ctx, func(ctx context.Context) error {
		var err error
		o, err = h.o.PlaceOrder(ctx, uid, req.toDomain())
		return err
	})
	if err != nil {
		h.abortIdempotent(ctx, idemKey)
		respondError(c, err)
		return
	}

	body, err := json.Marshal(o)
	if err != nil {
		h.abortIdempotent(ctx, idemKey)
		respondError(c, err)
		return
	}
	if idemKey != "" {
		if err := h.idem.Complete(context.WithoutCancel(ctx), idemKey, body); err != nil {
			slog.Error("failed to store idempotent response", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// beginIdempotent claims the request's Idempotency-Key. handled is true when
// the response has already been written.
func (h *Handler) beginIdempotent(c *gin.Context, uid string) (key string, handled bool) {
	header := c.GetHeader("Idempotency-Key")
	if header == "" || h.idem == nil {
		return "", false
	}
	if len(header) > maxIdempotencyKeyLen {
		badRequest(c, "invalid_idempotency_key", "Idempotency-Key is too long")
		return "", true
	}

	traceId := ctxmanage.GetTraceIdOfRequest(c)
	key = h.idem.GenerateKey("place-order", uid+":"+header)
	cached, started, err := h.idem.Begin(c.Request.Context(), key)
	switch {
	case errors.Is(err, cache.ErrInProgress):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":   "idempotency_in_progress",
			"message": "a request with this Idempotency-Key is still being processed",
		})
		return "", true
	case err != nil:
		slog.Warn("idempotency store unavailable, continuing without it",
			slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		return "", false
	case !started:
		slog.Info("replaying idempotent response", slog.String(logkey.TraceID, traceId), slog.String(logkey.UserID, uid))
		c.Header("Idempotent-Replayed", "true")
		c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
		return "", true
	}
	return key, false
}

func (h *Handler) abortIdempotent(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := h.idem.Abort(context.WithoutCancel(ctx), key); err != nil {
		slog.Error("failed to release idempotency key", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)), slog.String(logkey.ERROR, err.Error()))
	}
}

func (h *Handler) ListOrders(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	page, ok := pageFromQuery(c)
	if !ok {
		return
	}
	list, err := h.o.Orders(c.Request.Context(), uid, orders.ListFilter{
		Status: orders.Status(c.Query("status")),
		Page:   page,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

func (h *Handler) GetOrder(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.o.Order(c.Request.Context(), uid, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) CancelOrder(c *gin.Context) {
	h.transition(c, h.o.Cancel)
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	h.transition(c, h.o.Confirm)
}

func (h *Handler) ShipOrder(c *gin.Context) {
	h.transition(c, func(ctx context.Context, _ string, id int64) (orders.Order, error) {
		return h.o.Ship(ctx, id)
	})
}

func (h *Handler) PayOrder(c *gin.Context) {
	var body payRequest
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid_request", http.StatusText(http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(body); err != nil {
		badRequest(c, "invalid_request", validationMessage(err))
		return
	}
	h.transition(c, func(ctx context.Context, uid string, id int64) (orders.Order, error) {
		return h.o.Pay(ctx, uid, id, body.PaymentReference)
	})
}

func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, userID string, id int64) (orders.Order, error)) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		return
	}

	var o orders.Order
	err := h.withRetry(c.Request.Context(), func(ctx context.Context) error {
		var err error
		o, err = fn(ctx, uid, id)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
