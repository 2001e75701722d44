package middleware

import (
	"context"

	"github.com/noor-academy/lessonledger/pkg/enums"
)

type (
	userIDKey struct{}
	roleKey   struct{}
)

// UserIDFromContext returns the caller id Identity stored, or "".
func UserIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(userIDKey{}).(string)
	return id
}

func RoleFromContext(ctx context.Context) enums.ActorRole {
	if ctx == nil {
		return ""
	}
	role, _ := ctx.Value(roleKey{}).(enums.ActorRole)
	return role
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(orBackground(ctx), userIDKey{}, userID)
}

func WithRole(ctx context.Context, role enums.ActorRole) context.Context {
	return context.WithValue(orBackground(ctx), roleKey{}, role)
}

func orBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
