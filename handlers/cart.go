package handlers

import (
	"log/slog"
	"net/http"

	"shop-service/internal/cart"
	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"

	"github.com/gin-gonic/gin"
)

func (h *Handler) GetCart(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	resp, err := h.cart.GetActiveCartItems(c.Request.Context(), uid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) AddToCart(c *gin.Context) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	uid, ok := userID(c)
	if !ok {
		return
	}

	var nl cart.NewLine
	if err := c.ShouldBindJSON(&nl); err != nil {
		slog.Error("json validation error", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		badRequest(c, "invalid_request", http.StatusText(http.StatusBadRequest))
		return
	}
	if err := h.validate.Struct(nl); err != nil {
		badRequest(c, "invalid_request", validationMessage(err))
		return
	}

	line, err := h.cart.AddToCart(c.Request.Context(), uid, nl)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	productID, ok := idParam(c, "product_id")
	if !ok {
		return
	}
	if err := h.cart.RemoveFromCart(c.Request.Context(), uid, productID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "removed"})
}
