package util

import (
	"context"
)

type contextKey string

const (
	CTXKeyRequestID contextKey = "request_id"
)

// RequestIDFromContext returns the ID of the (HTTP) request and whether it is present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(CTXKeyRequestID)
	if val == nil {
		return "", false
	}

	id, ok := val.(string)
	return id, ok
}

// WithRequestID returns a copy of ctx carrying the given request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CTXKeyRequestID, id)
}
