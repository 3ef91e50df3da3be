package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/dq_backend/appctx"
	"github.com/google/uuid"
)

var (
	ContextKeySubject       = appctx.ContextKeySubject
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
	ContextKeyTrigger       = appctx.ContextKeyTrigger
)

// Triggers recorded on run history.
const (
	TriggerAPI    = "api"
	TriggerPubSub = "pubsub"
	TriggerCLI    = "cli"
)

func GetSubjectFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySubject)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

// GetTriggerFromContext defaults to TriggerAPI.
func GetTriggerFromContext(ctx context.Context) string {
	if v, ok := appctx.GetString(ctx, ContextKeyTrigger); ok && v != "" {
		return v
	}
	return TriggerAPI
}

func SetSubjectInContext(ctx context.Context, subject string) context.Context {
	return appctx.Set(ctx, ContextKeySubject, subject)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}

func SetTriggerInContext(ctx context.Context, trigger string) context.Context {
	return appctx.Set(ctx, ContextKeyTrigger, trigger)
}

// EnsureCorrelationId returns ctx carrying a correlation id, minting one
// when none is present.
func EnsureCorrelationId(ctx context.Context) (context.Context, string) {
	if id, ok := GetCorrelationIdFromContext(ctx); ok && id != "" {
		return ctx, id
	}
	id := uuid.NewString()
	return SetCorrelationIdInContext(ctx, id), id
}
