// Package requestcontext carries per-operation values (actor, run ID, clock)
// through a context without tying services to any transport.
//
// Services read:
//
//	actor := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Workers and tests pin values:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithRunID(ctx, "sweep-42")
package requestcontext

import (
	"context"
	"time"
)

type (
	actorIDKey     struct{}
	runIDKey       struct{}
	requestTimeKey struct{}
)

// ActorID returns the identifier of whoever triggered the operation, or
// "system" when none was set.
func ActorID(ctx context.Context) string {
	if actor, ok := ctx.Value(actorIDKey{}).(string); ok && actor != "" {
		return actor
	}
	return SystemActor
}

// SystemActor is recorded for sweeps, reminders and other unattended work.
const SystemActor = "system"

func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, actorIDKey{}, actorID)
}

// RunID identifies one request or one scheduled cycle in logs and events.
func RunID(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok {
		return id
	}
	return ""
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// Now returns the time pinned on the context, falling back to time.Now.
// A sweep pins one instant so every document in the run sees the same "today".
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
