package services

import (
	"context"

	"bigpartner/internal/domain"
	"bigpartner/internal/listing"
	"bigpartner/internal/util"
	apperrors "bigpartner/pkg/errors"
)

type contextKey int

const userKey contextKey = iota

// WithUser returns a context carrying the authenticated user
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFrom returns the authenticated user, if any
func UserFrom(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userKey).(*domain.User)
	return user, ok && user != nil
}

func requireUser(ctx context.Context) (*domain.User, error) {
	user, ok := UserFrom(ctx)
	if !ok {
		return nil, apperrors.Unauthorized("authentication required")
	}
	return user, nil
}

func requireAdmin(ctx context.Context) (*domain.User, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := util.RequireAdmin(user); err != nil {
		return nil, apperrors.Forbidden(err.Error())
	}
	return user, nil
}

func requireStaff(ctx context.Context) (*domain.User, error) {
	user, err := requireUser(ctx)
	if err != nil {
		return nil, err
	}
	if err := util.RequireStaff(user); err != nil {
		return nil, apperrors.Forbidden(err.Error())
	}
	return user, nil
}

func viewerOf(ctx context.Context) listing.Viewer {
	user, ok := UserFrom(ctx)
	if !ok {
		return listing.Viewer{}
	}
	return listing.Viewer{UserID: user.ID, Admin: user.IsAdmin()}
}

// canManage reports whether user may edit, delete or restore p
func canManage(user *domain.User, p *domain.Property) bool {
	return user.IsAdmin() || p.IsOwnedBy(user.ID)
}
