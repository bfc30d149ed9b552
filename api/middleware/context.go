package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
)

type contextKey string

const (
	ctxUserID    contextKey = "user_id"
	ctxActorKind contextKey = "actor_kind"
	ctxStoreID   contextKey = "store_id"
	ctxToken     contextKey = "access_token"
)

func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxUserID).(string); ok {
		return v
	}
	return ""
}

func ActorKindFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxActorKind).(string); ok {
		return v
	}
	return ""
}

func StoreIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxStoreID).(string); ok {
		return v
	}
	return ""
}

// ActorFromContext rebuilds the authenticated actor, including the bearer token the desk
// forwards to the marketplace backend.
func ActorFromContext(ctx context.Context) (orders.Actor, bool) {
	userID, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return orders.Actor{}, false
	}
	kind, err := enums.ParseActorKind(ActorKindFromContext(ctx))
	if err != nil {
		return orders.Actor{}, false
	}
	actor := orders.Actor{UserID: userID, Kind: kind}
	if raw := StoreIDFromContext(ctx); raw != "" {
		if storeID, err := uuid.Parse(raw); err == nil {
			actor.StoreID = &storeID
		}
	}
	if token, ok := ctx.Value(ctxToken).(string); ok {
		actor.Token = token
	}
	return actor, true
}

// WithActor injects an actor into the context the way Auth does.
func WithActor(ctx context.Context, actor orders.Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, ctxUserID, actor.UserID.String())
	ctx = context.WithValue(ctx, ctxActorKind, actor.Kind.String())
	if actor.StoreID != nil {
		ctx = context.WithValue(ctx, ctxStoreID, actor.StoreID.String())
	}
	if actor.Token != "" {
		ctx = context.WithValue(ctx, ctxToken, actor.Token)
	}
	return ctx
}
