package orders

import (
	"shop-service/internal/apperr"
	"shop-service/internal/catalog"
)

var (
	ErrProductNotFound = catalog.ErrProductNotFound
	ErrOrderNotFound   = apperr.New("order_not_found", apperr.KindNotFound, "order does not exist")

	ErrInsufficientStock   = apperr.New("insufficient_stock", apperr.KindConflict, "not enough stock to fulfil the order")
	ErrInvalidTransition   = apperr.New("invalid_transition", apperr.KindConflict, "the order status does not allow this operation")
	ErrOrderNumberConflict = apperr.NewRetryable("order_number_conflict", apperr.KindUnavailable, "could not allocate an order number, please retry")

	ErrEmptyOrder      = apperr.New("empty_order", apperr.KindInvalidInput, "an order needs at least one item")
	ErrInvalidQuantity = apperr.New("invalid_quantity", apperr.KindInvalidInput, "item quantity must be at least 1")
	ErrInvalidSpecs    = apperr.New("invalid_specs", apperr.KindInvalidInput, "too many spec entries on an item")
	ErrInvalidStatus   = apperr.New("invalid_status", apperr.KindInvalidInput, "unknown order status")

	ErrPaymentNotVerified = apperr.New("payment_not_verified", apperr.KindPaymentRequired, "the payment could not be verified")
)
