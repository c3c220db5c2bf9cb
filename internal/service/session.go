package service

import (
	"context"
	"errors"

	"auth-engine/internal/apperr"
	"auth-engine/internal/models"
	"auth-engine/internal/store"
)

// ResolveSession maps a bearer token to its user. No expiry is enforced
// here; session lifetime is a deployment policy.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, apperr.ErrUnauthenticated
	}
	session, err := s.store.GetSession(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, session.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
