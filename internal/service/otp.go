package service

import (
	"context"
	"errors"
	"time"

	"auth-engine/internal/apperr"
	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"

	"go.uber.org/zap"
)

type SendCodeResult struct {
	ExpiresInSec int    `json:"expires_in_sec"`
	DebugCode    string `json:"debug_code,omitempty"`
}

// SendCode issues a one-time code for phone. Issuance is gated by the
// cooldown, the daily limit and the risk detector; a flagged request must
// present a redeemable captcha binding token or gets a fresh challenge back
// inside the CaptchaRequired error details.
func (s *AuthService) SendCode(ctx context.Context, phone, ip, deviceID, captchaToken string, now time.Time) (*SendCodeResult, error) {
	deviceID = normalizeDevice(deviceID)
	if !phonePattern.MatchString(phone) {
		return nil, apperr.ErrInvalidPhone
	}

	record, err := s.store.GetOTP(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if record != nil {
		if now.Sub(record.LastSentAt) < sendCooldown {
			return nil, apperr.ErrCooldown
		}
		if record.DailyDate == dateKey(now) && record.DailyCount >= dailySendLimit {
			return nil, apperr.ErrDailyLimit
		}
	}

	reasons, err := s.riskReasons(ctx, phone, ip, deviceID, now)
	if err != nil {
		return nil, err
	}
	if len(reasons) > 0 {
		redeemed, err := s.redeemCaptchaToken(ctx, captchaToken, phone, ip, deviceID, now)
		if err != nil {
			return nil, err
		}
		if !redeemed {
			challenge, err := s.createChallenge(ctx, now)
			if err != nil {
				return nil, err
			}
			if err := s.recordRiskEvent(ctx, phone, ip, deviceID, reasons, now); err != nil {
				return nil, err
			}
			return nil, apperr.ErrCaptchaRequired.WithDetails(map[string]any{
				"captcha_id":     challenge.ID,
				"captcha_prompt": challenge.Prompt,
			})
		}
	}

	code := util.RandomDigits(6)
	today := dateKey(now)
	dailyCount := 1
	if record != nil && record.DailyDate == today {
		dailyCount = record.DailyCount + 1
	}
	if err := s.store.UpsertOTP(ctx, &models.OTPRecord{
		Phone:      phone,
		Code:       code,
		ExpiresAt:  now.Add(otpTTL),
		LastSentAt: now,
		DailyDate:  today,
		DailyCount: dailyCount,
	}); err != nil {
		return nil, err
	}
	if err := s.logAttempt(ctx, phone, ip, deviceID, true, models.AttemptOTPSend, now); err != nil {
		return nil, err
	}

	s.logger.Info("verification code issued",
		zap.String("phone_hash", util.HashText(phone)),
		zap.Int("daily_count", dailyCount),
	)

	result := &SendCodeResult{ExpiresInSec: int(otpTTL.Seconds())}
	if s.debugCodes {
		result.DebugCode = code
	}
	return result, nil
}

type VerifyCodeResult struct {
	User         *models.User
	SessionToken string
	HasPassword  bool
}

// VerifyCode checks the live code for phone, creating the user on first
// successful verification and minting a session. A matched unexpired code
// stays valid for repeat verification within its TTL so a client may retry
// the same call after a network failure.
func (s *AuthService) VerifyCode(ctx context.Context, phone, code, ip, deviceID string, now time.Time) (*VerifyCodeResult, error) {
	deviceID = normalizeDevice(deviceID)

	record, err := s.store.GetOTP(ctx, phone)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if record == nil || record.Expired(now) || record.Code != code {
		if err := s.logAttempt(ctx, phone, ip, deviceID, false, models.AttemptOTPVerify, now); err != nil {
			return nil, err
		}
		return nil, apperr.ErrCodeInvalid
	}

	if err := s.logAttempt(ctx, phone, ip, deviceID, true, models.AttemptOTPVerify, now); err != nil {
		return nil, err
	}

	user, err := s.store.GetUserByPhone(ctx, phone)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.createUserWithDefaults(ctx, phone, now)
	}
	if err != nil {
		return nil, err
	}

	token, err := s.mintSession(ctx, user.ID, now)
	if err != nil {
		return nil, err
	}

	return &VerifyCodeResult{
		User:         user,
		SessionToken: token,
		HasPassword:  user.HasPassword(),
	}, nil
}
