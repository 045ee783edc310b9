package utils

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	actorKey   contextKey = "actor"
	traceIDKey contextKey = "trace_id"
)

const (
	RoleCustomer = "customer"
	RoleStaff    = "staff"
)

// Actor is the caller identity forwarded by the upstream identity provider.
type Actor struct {
	ID   uuid.UUID
	Role string
}

func (a Actor) IsStaff() bool {
	return a.Role == RoleStaff
}

// CanAccess reports whether the actor may act on a booking owned by customerID.
func (a Actor) CanAccess(customerID uuid.UUID) bool {
	return a.IsStaff() || a.ID == customerID
}

func SetActorContext(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func GetActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	if !ok || actor.ID == uuid.Nil {
		return Actor{}, false
	}
	return actor, true
}

func SetTraceIDContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

func GetTraceIDFromContext(ctx context.Context) string {
	traceID, _ := ctx.Value(traceIDKey).(string)
	return traceID
}
