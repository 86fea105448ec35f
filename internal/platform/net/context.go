// Package net provides utilities for working with request contexts
package net

import (
	"context"

	"vocabot/internal/platform/logger"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const keyAdmin ctxKey = "admin"

// WithRequest stores reqID where both chi and the request logger can find it
func WithRequest(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		return ctx
	}
	ctx = context.WithValue(ctx, chimw.RequestIDKey, reqID)
	return logger.WithRequest(ctx, reqID)
}

// WithAdmin marks ctx as authenticated by the admin token
func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyAdmin, true)
}

// RequestID returns the request id on the context if present
func RequestID(ctx context.Context) string { return chimw.GetReqID(ctx) }

// IsAdmin reports whether the admin guard accepted this request
func IsAdmin(ctx context.Context) bool {
	v, _ := ctx.Value(keyAdmin).(bool)
	return v
}
