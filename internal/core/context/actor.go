// Package context provides request-scoped values extraction.
package context

import (
	"context"
)

// ActorContext identifies who is performing the request.
// It is injected by the surrounding platform (auth is out of scope here);
// this core only threads it through for audit stamps and logging.
type ActorContext struct {
	ActorID    string
	BusinessID string
	Name       string
}

type actorContextKey struct{}

// WithActor adds ActorContext to context.
func WithActor(ctx context.Context, actor *ActorContext) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// GetActor returns ActorContext from context.
func GetActor(ctx context.Context) *ActorContext {
	if v, ok := ctx.Value(actorContextKey{}).(*ActorContext); ok {
		return v
	}
	return nil
}

// GetActorID returns actor ID from context or empty string.
func GetActorID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.ActorID
	}
	return ""
}

// GetBusinessID returns business ID from context or empty string.
func GetBusinessID(ctx context.Context) string {
	if a := GetActor(ctx); a != nil {
		return a.BusinessID
	}
	return ""
}
