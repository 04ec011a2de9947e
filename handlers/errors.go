package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/apperr"
	"shop-service/internal/auth"
	"shop-service/pkg/ctxmanage"
	"shop-service/pkg/logkey"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"
)

func statusOf(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindPaymentRequired:
		return http.StatusPaymentRequired
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": code, "message": msg}. Errors without
// a code are logged in full and reported as a bare internal error.
func respondError(c *gin.Context, err error) {
	traceId := ctxmanage.GetTraceIdOfRequest(c)
	ae, ok := apperr.From(err)
	if !ok {
		slog.Error("request failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": http.StatusText(http.StatusInternalServerError),
		})
		return
	}

	status := statusOf(ae.Kind)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", slog.String(logkey.TraceID, traceId), slog.String(logkey.ERROR, err.Error()))
	} else {
		slog.Info("request rejected", slog.String(logkey.TraceID, traceId), slog.String("Code", ae.Code), slog.String(logkey.ERROR, err.Error()))
	}
	c.AbortWithStatusJSON(status, gin.H{"error": ae.Code, "message": ae.Message})
}

func badRequest(c *gin.Context, code, message string) {
	slog.Info("bad request", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)),
		slog.String("Code", code), slog.String("Message", message))
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code, "message": message})
}

// validationMessage turns the first validator failure into a client-facing message.
func validationMessage(err error) string {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) || len(vErrs) == 0 {
		return http.StatusText(http.StatusBadRequest)
	}
	vErr := vErrs[0]
	switch vErr.Tag() {
	case "required":
		return vErr.Field() + " value missing"
	case "gt", "gte", "min":
		return vErr.Field() + " value is less than " + vErr.Param()
	case "max":
		return vErr.Field() + " exceeds " + vErr.Param()
	}
	return vErr.Field() + " is invalid"
}

// userID returns the subject of the authenticated caller.
func userID(c *gin.Context) (string, bool) {
	claims, ok := c.Request.Context().Value(auth.ClaimsKey).(auth.Claims)
	if !ok {
		slog.Error("claims not found", slog.String(logkey.TraceID, ctxmanage.GetTraceIdOfRequest(c)))
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": http.StatusText(http.StatusUnauthorized)})
		return "", false
	}
	return claims.Subject, true
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid_id", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// withRetry runs fn, retrying with exponential backoff while it fails with a
// retryable error.
func (h *Handler) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(h.retries, retry.WithJitterPercent(20, retry.NewExponential(20*time.Millisecond)))
	attempt := 0
	return retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && apperr.IsRetryable(err) {
			slog.Warn("retrying", slog.String(logkey.TraceID, ctxmanage.GetTraceId(ctx)),
				slog.Int("Attempt", attempt), slog.String(logkey.ERROR, err.Error()))
			return retry.RetryableError(err)
		}
		return err
	})
}
