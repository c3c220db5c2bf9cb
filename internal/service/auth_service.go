package service

import (
	"context"
	"regexp"
	"time"

	"auth-engine/internal/hashing"
	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"

	"go.uber.org/zap"
)

const (
	otpTTL           = 5 * time.Minute
	captchaTTL       = 5 * time.Minute
	captchaTokenTTL  = 5 * time.Minute
	sendCooldown     = 60 * time.Second
	dailySendLimit   = 10
	lockWindow       = 15 * time.Minute
	maxLoginFailures = 5
)

// Supported national format: China mainland mobile numbers.
var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

// RiskEventPublisher pushes risk events to an external security pipeline.
// Optional; the store remains the system of record either way.
type RiskEventPublisher interface {
	PublishRiskEvent(ctx context.Context, event *models.RiskEvent) error
}

// AuthService implements the authentication and abuse-mitigation engine:
// OTP lifecycle, risk detection, captcha challenges, password auth with
// progressive lockout, and session issuance. It holds no entity state of
// its own; every operation takes the request timestamp explicitly so TTL
// and lockout checks are deterministic under test.
type AuthService struct {
	store      store.Store
	hasher     *hashing.Hasher
	publisher  RiskEventPublisher
	logger     *zap.Logger
	debugCodes bool
}

// NewAuthService creates the engine. publisher may be nil. When production
// is false, issued codes are surfaced in responses for test convenience.
func NewAuthService(st store.Store, hasher *hashing.Hasher, publisher RiskEventPublisher, logger *zap.Logger, production bool) *AuthService {
	return &AuthService{
		store:      st,
		hasher:     hasher,
		publisher:  publisher,
		logger:     logger,
		debugCodes: !production,
	}
}

// dateKey buckets timestamps by UTC calendar date for the daily send limit.
func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

func normalizeDevice(deviceID string) string {
	if deviceID == "" {
		return "unknown"
	}
	return deviceID
}

func (s *AuthService) logAttempt(ctx context.Context, phone, ip, deviceID string, success bool, kind models.AttemptKind, now time.Time) error {
	return s.store.AppendAttempt(ctx, &models.AuthAttempt{
		Phone:     phone,
		IP:        ip,
		DeviceID:  deviceID,
		Success:   success,
		Kind:      kind,
		Timestamp: now,
	})
}

func (s *AuthService) mintSession(ctx context.Context, userID string, now time.Time) (string, error) {
	token := util.NewToken("sess")
	err := s.store.CreateSession(ctx, &models.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// createUserWithDefaults registers a previously unseen phone together with
// its default reminder settings and base entitlement.
func (s *AuthService) createUserWithDefaults(ctx context.Context, phone string, now time.Time) (*models.User, error) {
	user := &models.User{
		ID:        util.NewToken("usr"),
		Phone:     phone,
		CreatedAt: now,
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}
	if err := s.store.UpsertReminder(ctx, &models.ReminderSettings{
		UserID:  user.ID,
		Enabled: true,
		Time:    "22:00",
	}); err != nil {
		return nil, err
	}
	if err := s.store.UpsertEntitlement(ctx, &models.Entitlement{
		UserID:     user.ID,
		BaseAccess: true,
	}); err != nil {
		return nil, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID),
		zap.String("phone_hash", util.HashText(phone)),
	)
	return user, nil
}
