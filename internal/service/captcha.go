package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"auth-engine/internal/apperr"
	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"
)

func randomOperand() int {
	n, err := rand.Int(rand.Reader, big.NewInt(9))
	if err != nil {
		panic("crypto/rand unavailable: " + err.Error())
	}
	return int(n.Int64()) + 1
}

// createChallenge stores a new arithmetic puzzle and returns it. The answer
// never leaves the server; callers only see the prompt.
func (s *AuthService) createChallenge(ctx context.Context, now time.Time) (*models.CaptchaChallenge, error) {
	a, b := randomOperand(), randomOperand()
	challenge := &models.CaptchaChallenge{
		ID:        util.NewToken("capid"),
		Answer:    strconv.Itoa(a + b),
		Prompt:    fmt.Sprintf("What is %d+%d?", a, b),
		ExpiresAt: now.Add(captchaTTL),
	}
	if err := s.store.UpsertCaptcha(ctx, challenge); err != nil {
		return nil, err
	}
	return challenge, nil
}

type CaptchaVerifyResult struct {
	CaptchaToken string `json:"captcha_token"`
	ExpiresInSec int    `json:"expires_in_sec"`
}

// VerifyCaptcha checks the answer against the stored challenge and, on
// success, mints a binding token scoped to the (phone, ip, device) triple
// supplied now. The triple is captured at verify time because challenge
// creation happens before identity is bound.
func (s *AuthService) VerifyCaptcha(ctx context.Context, captchaID, answer, phone, ip, deviceID string, now time.Time) (*CaptchaVerifyResult, error) {
	deviceID = normalizeDevice(deviceID)

	challenge, err := s.store.GetCaptcha(ctx, captchaID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if challenge == nil || challenge.Expired(now) || challenge.Answer != strings.TrimSpace(answer) {
		return nil, apperr.ErrCaptchaInvalid
	}

	token := &models.CaptchaToken{
		Token:     util.NewToken("captcha"),
		Phone:     phone,
		IP:        ip,
		DeviceID:  deviceID,
		ExpiresAt: now.Add(captchaTokenTTL),
	}
	if err := s.store.UpsertCaptchaToken(ctx, token); err != nil {
		return nil, err
	}

	return &CaptchaVerifyResult{
		CaptchaToken: token.Token,
		ExpiresInSec: int(captchaTokenTTL.Seconds()),
	}, nil
}

// redeemCaptchaToken reports whether token proves this exact (phone, ip,
// device) triple passed a challenge. The token is read, not consumed.
func (s *AuthService) redeemCaptchaToken(ctx context.Context, token, phone, ip, deviceID string, now time.Time) (bool, error) {
	if token == "" {
		return false, nil
	}
	record, err := s.store.GetCaptchaToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if record.Expired(now) {
		return false, nil
	}
	return record.Matches(phone, ip, deviceID), nil
}
