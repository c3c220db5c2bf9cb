// Package memory provides an in-memory Store used by tests and local
// development. Values are copied on the way in and out so callers never
// alias stored state.
package memory

import (
	"context"
	"sync"

	"auth-engine/internal/models"
	"auth-engine/internal/store"
)

type Store struct {
	mu sync.RWMutex

	otps             map[string]models.OTPRecord
	captchas         map[string]models.CaptchaChallenge
	captchaTokens    map[string]models.CaptchaToken
	passwordFailures map[string]models.PasswordFailure

	usersByID     map[string]models.User
	userIDByPhone map[string]string
	sessions      map[string]models.Session

	reminders    map[string]models.ReminderSettings
	entitlements map[string]models.Entitlement

	attempts   []models.AuthAttempt
	riskEvents []models.RiskEvent
}

func New() *Store {
	return &Store{
		otps:             make(map[string]models.OTPRecord),
		captchas:         make(map[string]models.CaptchaChallenge),
		captchaTokens:    make(map[string]models.CaptchaToken),
		passwordFailures: make(map[string]models.PasswordFailure),
		usersByID:        make(map[string]models.User),
		userIDByPhone:    make(map[string]string),
		sessions:         make(map[string]models.Session),
		reminders:        make(map[string]models.ReminderSettings),
		entitlements:     make(map[string]models.Entitlement),
	}
}

func (s *Store) GetOTP(_ context.Context, phone string) (*models.OTPRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.otps[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) UpsertOTP(_ context.Context, record *models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.otps[record.Phone] = *record
	return nil
}

func (s *Store) GetCaptcha(_ context.Context, id string) (*models.CaptchaChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	challenge, ok := s.captchas[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &challenge, nil
}

func (s *Store) UpsertCaptcha(_ context.Context, challenge *models.CaptchaChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captchas[challenge.ID] = *challenge
	return nil
}

func (s *Store) GetCaptchaToken(_ context.Context, token string) (*models.CaptchaToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.captchaTokens[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) UpsertCaptchaToken(_ context.Context, token *models.CaptchaToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.captchaTokens[token.Token] = *token
	return nil
}

func (s *Store) GetPasswordFailure(_ context.Context, phone string) (*models.PasswordFailure, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.passwordFailures[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &record, nil
}

func (s *Store) UpsertPasswordFailure(_ context.Context, record *models.PasswordFailure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passwordFailures[record.Phone] = *record
	return nil
}

func (s *Store) DeletePasswordFailure(_ context.Context, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.passwordFailures, phone)
	return nil
}

func (s *Store) AppendAttempt(_ context.Context, attempt *models.AuthAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, *attempt)
	return nil
}

func (s *Store) QueryAttempts(_ context.Context, filter store.AttemptFilter) ([]*models.AuthAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var matched []*models.AuthAttempt
	for i := range s.attempts {
		attempt := s.attempts[i]
		if filter.Matches(&attempt) {
			matched = append(matched, &attempt)
		}
	}
	return matched, nil
}

func (s *Store) AppendRiskEvent(_ context.Context, event *models.RiskEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.riskEvents = append(s.riskEvents, *event)
	return nil
}

// RiskEvents returns a snapshot of recorded risk events. Test helper.
func (s *Store) RiskEvents() []models.RiskEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.RiskEvent, len(s.riskEvents))
	copy(out, s.riskEvents)
	return out
}

func (s *Store) GetUserByPhone(_ context.Context, phone string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.userIDByPhone[phone]
	if !ok {
		return nil, store.ErrNotFound
	}
	user := s.usersByID[id]
	return &user, nil
}

func (s *Store) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.usersByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usersByID[user.ID] = *user
	s.userIDByPhone[user.Phone] = user.ID
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[userID]
	if !ok {
		return store.ErrNotFound
	}
	user.PasswordHash = passwordHash
	s.usersByID[userID] = user
	return nil
}

func (s *Store) CreateSession(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.Token] = *session
	return nil
}

func (s *Store) GetSession(_ context.Context, token string) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[token]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &session, nil
}

func (s *Store) GetReminder(_ context.Context, userID string) (*models.ReminderSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	settings, ok := s.reminders[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &settings, nil
}

func (s *Store) UpsertReminder(_ context.Context, settings *models.ReminderSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders[settings.UserID] = *settings
	return nil
}

func (s *Store) GetEntitlement(_ context.Context, userID string) (*models.Entitlement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entitlement, ok := s.entitlements[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &entitlement, nil
}

func (s *Store) UpsertEntitlement(_ context.Context, entitlement *models.Entitlement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entitlements[entitlement.UserID] = *entitlement
	return nil
}

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }
