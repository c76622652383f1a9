// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them without
// importing net/http. Tests inject a fixed time with WithTime so computed
// transaction statuses are deterministic.
package requestcontext

import (
	"context"
	"time"

	"acctgate/pkg/domain"
)

type (
	actorKey       struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithActor records the authenticated acting address for this request.
func WithActor(ctx context.Context, actor domain.Address) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// Actor returns the acting address, or the zero address when none is set.
func Actor(ctx context.Context) domain.Address {
	actor, ok := ctx.Value(actorKey{}).(domain.Address)
	if !ok {
		return domain.ZeroAddress
	}
	return actor
}

// WithRequestID records the correlation ID for this request.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the correlation ID, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, ok := ctx.Value(requestIDKey{}).(string)
	if !ok {
		return ""
	}
	return id
}

// WithTime pins the request's notion of "now". Used by tests and by
// middleware that wants one consistent timestamp per request.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to wall-clock time.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
