package auth

import (
	"context"

	"small-library/internal/domain"
)

type ctxKey string

const userKey ctxKey = "currentUser"

// WithUser returns a copy of ctx carrying the request's user.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the request's user, or nil for anonymous requests.
func UserFrom(ctx context.Context) *domain.User {
	user, _ := ctx.Value(userKey).(*domain.User)
	return user
}
