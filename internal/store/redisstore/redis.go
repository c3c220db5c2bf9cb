// Package redisstore implements the Store contract on Redis. Entities are
// JSON values under prefixed keys; the attempt log and risk events live in
// sorted sets scored by unix-milli timestamp so windowed queries map to
// ZRANGEBYSCORE. Per-key atomicity comes from Redis executing commands
// serially per connection.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"
)

const (
	otpPrefix          = "otp:"
	captchaPrefix      = "captcha:"
	captchaTokenPrefix = "captcha_token:"
	pwdFailPrefix      = "pwd_fail:"
	userIDPrefix       = "user:id:"
	userPhonePrefix    = "user:phone:"
	sessionPrefix      = "session:"
	reminderPrefix     = "reminder:"
	entitlementPrefix  = "entitlement:"
	attemptsKey        = "auth_attempts"
	riskEventsKey      = "auth_risk_events"

	// Key retention. Logical expiry lives inside each record and is checked
	// by the engine against the request clock; these TTLs only bound how
	// long dead keys linger. The OTP record must outlive its 5-minute code
	// because it carries the daily send counter.
	otpRetention     = 48 * time.Hour
	captchaRetention = time.Hour
	pwdFailRetention = 24 * time.Hour
	logRetention     = 48 * time.Hour
)

type Store struct {
	client *redis.Client
	logger *zap.Logger
}

func New(client *redis.Client, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger}
}

func (s *Store) getJSON(ctx context.Context, key string, out any) error {
	payload, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) setJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *Store) GetOTP(ctx context.Context, phone string) (*models.OTPRecord, error) {
	var record models.OTPRecord
	if err := s.getJSON(ctx, otpPrefix+phone, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) UpsertOTP(ctx context.Context, record *models.OTPRecord) error {
	if err := s.setJSON(ctx, otpPrefix+record.Phone, record, otpRetention); err != nil {
		return err
	}
	s.logger.Debug("OTP record upserted",
		util.String("phone", record.Phone),
		util.Int("daily_count", record.DailyCount))
	return nil
}

func (s *Store) GetCaptcha(ctx context.Context, id string) (*models.CaptchaChallenge, error) {
	var challenge models.CaptchaChallenge
	if err := s.getJSON(ctx, captchaPrefix+id, &challenge); err != nil {
		return nil, err
	}
	return &challenge, nil
}

func (s *Store) UpsertCaptcha(ctx context.Context, challenge *models.CaptchaChallenge) error {
	return s.setJSON(ctx, captchaPrefix+challenge.ID, challenge, captchaRetention)
}

func (s *Store) GetCaptchaToken(ctx context.Context, token string) (*models.CaptchaToken, error) {
	var record models.CaptchaToken
	if err := s.getJSON(ctx, captchaTokenPrefix+token, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) UpsertCaptchaToken(ctx context.Context, token *models.CaptchaToken) error {
	return s.setJSON(ctx, captchaTokenPrefix+token.Token, token, captchaRetention)
}

func (s *Store) GetPasswordFailure(ctx context.Context, phone string) (*models.PasswordFailure, error) {
	var record models.PasswordFailure
	if err := s.getJSON(ctx, pwdFailPrefix+phone, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *Store) UpsertPasswordFailure(ctx context.Context, record *models.PasswordFailure) error {
	return s.setJSON(ctx, pwdFailPrefix+record.Phone, record, pwdFailRetention)
}

func (s *Store) DeletePasswordFailure(ctx context.Context, phone string) error {
	if err := s.client.Del(ctx, pwdFailPrefix+phone).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", pwdFailPrefix+phone, err)
	}
	return nil
}

// logEntry wraps sorted-set members with a unique id so two identical
// attempts in the same millisecond remain distinct members.
type logEntry[T any] struct {
	ID    string `json:"id"`
	Value T      `json:"value"`
}

func appendToLog[T any](ctx context.Context, s *Store, key string, value T, at time.Time) error {
	payload, err := json.Marshal(logEntry[T]{ID: uuid.NewString(), Value: value})
	if err != nil {
		return fmt.Errorf("encode %s entry: %w", key, err)
	}

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: payload})
	pipe.ZRemRangeByScore(ctx, key, "-inf",
		strconv.FormatInt(at.Add(-logRetention).UnixMilli(), 10))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis zadd %s: %w", key, err)
	}
	return nil
}

func (s *Store) AppendAttempt(ctx context.Context, attempt *models.AuthAttempt) error {
	return appendToLog(ctx, s, attemptsKey, attempt, attempt.Timestamp)
}

func (s *Store) QueryAttempts(ctx context.Context, filter store.AttemptFilter) ([]*models.AuthAttempt, error) {
	members, err := s.client.ZRangeByScore(ctx, attemptsKey, &redis.ZRangeBy{
		Min: strconv.FormatInt(filter.Since.UnixMilli(), 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrangebyscore %s: %w", attemptsKey, err)
	}

	var matched []*models.AuthAttempt
	for _, member := range members {
		var entry logEntry[*models.AuthAttempt]
		if err := json.Unmarshal([]byte(member), &entry); err != nil {
			return nil, fmt.Errorf("decode attempt entry: %w", err)
		}
		if filter.Matches(entry.Value) {
			matched = append(matched, entry.Value)
		}
	}
	return matched, nil
}

func (s *Store) AppendRiskEvent(ctx context.Context, event *models.RiskEvent) error {
	return appendToLog(ctx, s, riskEventsKey, event, event.Timestamp)
}

func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	userID, err := s.client.Get(ctx, userPhonePrefix+phone).Result()
	if errors.Is(err, redis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", userPhonePrefix+phone, err)
	}
	return s.GetUserByID(ctx, userID)
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.getJSON(ctx, userIDPrefix+id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	payload, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, userIDPrefix+user.ID, payload, 0)
	pipe.Set(ctx, userPhonePrefix+user.Phone, user.ID, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis create user: %w", err)
	}

	s.logger.Debug("user created", util.String("user_id", user.ID))
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	return s.setJSON(ctx, userIDPrefix+userID, user, 0)
}

func (s *Store) CreateSession(ctx context.Context, session *models.Session) error {
	// No TTL: session lifetime is a deployment policy, not the engine's.
	return s.setJSON(ctx, sessionPrefix+session.Token, session, 0)
}

func (s *Store) GetSession(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := s.getJSON(ctx, sessionPrefix+token, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *Store) GetReminder(ctx context.Context, userID string) (*models.ReminderSettings, error) {
	var settings models.ReminderSettings
	if err := s.getJSON(ctx, reminderPrefix+userID, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (s *Store) UpsertReminder(ctx context.Context, settings *models.ReminderSettings) error {
	return s.setJSON(ctx, reminderPrefix+settings.UserID, settings, 0)
}

func (s *Store) GetEntitlement(ctx context.Context, userID string) (*models.Entitlement, error) {
	var entitlement models.Entitlement
	if err := s.getJSON(ctx, entitlementPrefix+userID, &entitlement); err != nil {
		return nil, err
	}
	return &entitlement, nil
}

func (s *Store) UpsertEntitlement(ctx context.Context, entitlement *models.Entitlement) error {
	return s.setJSON(ctx, entitlementPrefix+entitlement.UserID, entitlement, 0)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
