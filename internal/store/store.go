package store

import (
	"context"
	"errors"
	"time"

	"auth-engine/internal/models"
)

// ErrNotFound is returned by Get* methods when the referenced record is
// absent. The engine treats any other store error as fatal for the current
// operation.
var ErrNotFound = errors.New("record not found")

// AttemptFilter narrows an attempt-log query. Zero-valued string fields and
// a nil Success are ignored; Since is always applied.
type AttemptFilter struct {
	Kind     models.AttemptKind
	Phone    string
	IP       string
	DeviceID string
	Success  *bool
	Since    time.Time
}

func (f AttemptFilter) Matches(a *models.AuthAttempt) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Phone != "" && a.Phone != f.Phone {
		return false
	}
	if f.IP != "" && a.IP != f.IP {
		return false
	}
	if f.DeviceID != "" && a.DeviceID != f.DeviceID {
		return false
	}
	if f.Success != nil && a.Success != *f.Success {
		return false
	}
	return !a.Timestamp.Before(f.Since)
}

// Store is the persistence contract the engine depends on. Implementations
// own concurrent consistency; upserts must be atomic per key. The engine
// never caches entity state across calls.
type Store interface {
	GetOTP(ctx context.Context, phone string) (*models.OTPRecord, error)
	UpsertOTP(ctx context.Context, record *models.OTPRecord) error

	GetCaptcha(ctx context.Context, id string) (*models.CaptchaChallenge, error)
	UpsertCaptcha(ctx context.Context, challenge *models.CaptchaChallenge) error

	GetCaptchaToken(ctx context.Context, token string) (*models.CaptchaToken, error)
	UpsertCaptchaToken(ctx context.Context, token *models.CaptchaToken) error

	GetPasswordFailure(ctx context.Context, phone string) (*models.PasswordFailure, error)
	UpsertPasswordFailure(ctx context.Context, record *models.PasswordFailure) error
	DeletePasswordFailure(ctx context.Context, phone string) error

	AppendAttempt(ctx context.Context, attempt *models.AuthAttempt) error
	QueryAttempts(ctx context.Context, filter AttemptFilter) ([]*models.AuthAttempt, error)
	AppendRiskEvent(ctx context.Context, event *models.RiskEvent) error

	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	UpdateUserPassword(ctx context.Context, userID, passwordHash string) error

	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, token string) (*models.Session, error)

	GetReminder(ctx context.Context, userID string) (*models.ReminderSettings, error)
	UpsertReminder(ctx context.Context, settings *models.ReminderSettings) error

	GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error)
	UpsertEntitlement(ctx context.Context, entitlement *models.Entitlement) error

	Ping(ctx context.Context) error
	Close() error
}
