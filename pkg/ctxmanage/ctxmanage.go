package ctxmanage

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey int

// TraceIdKey is the context key the Logger middleware stores the request trace id under.
const TraceIdKey ctxKey = 1

// GetTraceIdOfRequest returns the trace id attached to the request, or
// "Unknown" when the request did not pass through the Logger middleware.
func GetTraceIdOfRequest(c *gin.Context) string {
	return GetTraceId(c.Request.Context())
}

// GetTraceId is GetTraceIdOfRequest for code that only holds a context.
func GetTraceId(ctx context.Context) string {
	traceId, ok := ctx.Value(TraceIdKey).(string)
	if !ok {
		return "Unknown"
	}
	return traceId
}

// WithTraceId returns a copy of ctx carrying traceId.
func WithTraceId(ctx context.Context, traceId string) context.Context {
	return context.WithValue(ctx, TraceIdKey, traceId)
}
