package service

import (
	"context"
	"errors"

	"auth-engine/internal/models"
	"auth-engine/internal/store"
)

// ReminderSettings returns the user's reminder settings, materializing the
// defaults for accounts that predate them.
func (s *AuthService) ReminderSettings(ctx context.Context, userID string) (*models.ReminderSettings, error) {
	settings, err := s.store.GetReminder(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		settings = &models.ReminderSettings{UserID: userID, Enabled: true, Time: "22:00"}
		if err := s.store.UpsertReminder(ctx, settings); err != nil {
			return nil, err
		}
		return settings, nil
	}
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Entitlement returns the user's entitlement, defaulting to base access.
func (s *AuthService) Entitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	entitlement, err := s.store.GetEntitlement(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		entitlement = &models.Entitlement{UserID: userID, BaseAccess: true}
		if err := s.store.UpsertEntitlement(ctx, entitlement); err != nil {
			return nil, err
		}
		return entitlement, nil
	}
	if err != nil {
		return nil, err
	}
	return entitlement, nil
}
