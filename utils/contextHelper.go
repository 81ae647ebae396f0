package utils

import (
	"context"

	"github.com/frete360/frete_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeyUsername      = appctx.ContextKeyUsername
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

// Username of the operator performing the request. Authentication lives in front
// of this service, which forwards the resolved name in the X-User header.
func GetUsernameFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUsername)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetUsernameInContext(ctx context.Context, username string) context.Context {
	return appctx.Set(ctx, ContextKeyUsername, username)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

// CorrelationIdOrNew returns the request correlation id, or a fresh one for
// background callers (cli tools, tests).
func CorrelationIdOrNew(ctx context.Context) string {
	if cid, ok := GetCorrelationIdFromContext(ctx); ok && cid != "" {
		return cid
	}
	return uuid.NewString()
}

func UsernameOrSystem(ctx context.Context) string {
	if name, ok := GetUsernameFromContext(ctx); ok && name != "" {
		return name
	}
	return "sistema"
}
