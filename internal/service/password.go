package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"auth-engine/internal/apperr"
	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"

	"go.uber.org/zap"
)

var weakPasswords = map[string]struct{}{
	"123456":   {},
	"12345678": {},
	"password": {},
	"qwerty":   {},
	"111111":   {},
	"000000":   {},
}

func validatePassword(password string) error {
	if len(password) < 6 || len(password) > 20 {
		return apperr.ErrPasswordLength
	}
	if _, weak := weakPasswords[strings.ToLower(password)]; weak {
		return apperr.ErrPasswordWeak
	}
	return nil
}

// SetPassword stores a salted hash of password for userID after policy
// validation.
func (s *AuthService) SetPassword(ctx context.Context, userID, password string) error {
	if err := validatePassword(password); err != nil {
		return err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return err
	}
	hash, err := s.hasher.HashPassword(password)
	if err != nil {
		return err
	}
	return s.store.UpdateUserPassword(ctx, user.ID, hash)
}

type LoginResult struct {
	User         *models.User
	SessionToken string
}

// Login authenticates phone+password. The lockout gate runs before any
// credential comparison so a locked account never leaks whether the
// attempted password was correct, and the failure message never
// distinguishes an unknown phone from a wrong password.
func (s *AuthService) Login(ctx context.Context, phone, password, ip, deviceID string, now time.Time) (*LoginResult, error) {
	deviceID = normalizeDevice(deviceID)

	if err := s.enforcePasswordLock(ctx, phone, now); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	verified := false
	if user != nil && user.HasPassword() {
		var verifyErr error
		verified, verifyErr = s.hasher.VerifyPassword(password, user.PasswordHash)
		if verifyErr != nil {
			// Malformed stored hash: treat as a failed credential rather
			// than leaking the account's state to the caller.
			s.logger.Warn("stored password hash unreadable",
				zap.String("user_id", user.ID),
				zap.Error(verifyErr),
			)
			verified = false
		}
	}

	if user == nil || !verified {
		if err := s.markPasswordFailure(ctx, phone, now); err != nil {
			return nil, err
		}
		if err := s.logAttempt(ctx, phone, ip, deviceID, false, models.AttemptPasswordLogin, now); err != nil {
			return nil, err
		}
		return nil, apperr.ErrInvalidCredentials
	}

	if err := s.store.DeletePasswordFailure(ctx, phone); err != nil {
		return nil, err
	}
	if err := s.logAttempt(ctx, phone, ip, deviceID, true, models.AttemptPasswordLogin, now); err != nil {
		return nil, err
	}

	token, err := s.mintSession(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: user, SessionToken: token}, nil
}

// ResetPassword applies the password policy, requires the same OTP validity
// check as code verification, then replaces the hash and clears any
// standing lockout.
func (s *AuthService) ResetPassword(ctx context.Context, phone, code, newPassword string, now time.Time) error {
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	record, err := s.store.GetOTP(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if record == nil || record.Expired(now) || record.Code != code {
		return apperr.ErrCodeInvalid
	}

	user, err := s.store.GetUserByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.ErrUserNotFound
	}
	if err != nil {
		return err
	}

	hash, err := s.hasher.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, user.ID, hash); err != nil {
		return err
	}
	return s.store.DeletePasswordFailure(ctx, phone)
}

// enforcePasswordLock fails with Locked while a lock is active and clears a
// lock whose window has elapsed.
func (s *AuthService) enforcePasswordLock(ctx context.Context, phone string, now time.Time) error {
	record, err := s.store.GetPasswordFailure(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if record.LockedUntil == nil {
		return nil
	}
	if record.LockedUntil.After(now) {
		retryAfter := int(math.Ceil(record.LockedUntil.Sub(now).Seconds()))
		return apperr.ErrLocked.WithDetails(map[string]any{
			"retry_after_sec": retryAfter,
			"locked_until":    record.LockedUntil.UTC().Format(time.RFC3339),
		})
	}
	return s.store.DeletePasswordFailure(ctx, phone)
}

// markPasswordFailure advances the failure record as a read-modify-write of
// an immutable value: reset to 1 when the window lapsed, else increment,
// locking once the count reaches the threshold.
func (s *AuthService) markPasswordFailure(ctx context.Context, phone string, now time.Time) error {
	record, err := s.store.GetPasswordFailure(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if record == nil || now.Sub(record.FirstFailureAt) > lockWindow {
		return s.store.UpsertPasswordFailure(ctx, &models.PasswordFailure{
			Phone:          phone,
			Count:          1,
			FirstFailureAt: now,
		})
	}

	next := &models.PasswordFailure{
		Phone:          phone,
		Count:          record.Count + 1,
		FirstFailureAt: record.FirstFailureAt,
		LockedUntil:    record.LockedUntil,
	}
	if next.Count >= maxLoginFailures {
		lockedUntil := now.Add(lockWindow)
		next.LockedUntil = &lockedUntil
		s.logger.Warn("password login locked",
			zap.String("phone_hash", util.HashText(phone)),
			zap.Int("failures", next.Count),
		)
	}
	return s.store.UpsertPasswordFailure(ctx, next)
}
