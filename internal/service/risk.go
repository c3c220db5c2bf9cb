package service

import (
	"context"
	"strings"
	"time"

	"auth-engine/internal/models"
	"auth-engine/internal/store"
	"auth-engine/internal/util"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Risk reasons. Each is independently sufficient to require a captcha.
const (
	ReasonIPBurst       = "ip_multi_phone_burst"
	ReasonDeviceBurst   = "device_multi_phone_burst"
	ReasonPhoneFailures = "phone_failed_verification"
)

const (
	burstWindow         = 10 * time.Minute
	ipBurstAttempts     = 8
	deviceBurstAttempts = 6
	burstDistinctPhones = 3
	failedVerifyWindow  = 30 * time.Minute
	failedVerifyCount   = 3
)

// riskReasons inspects recent attempt history for signs of automated abuse.
// The three windowed queries are independent and run concurrently.
func (s *AuthService) riskReasons(ctx context.Context, phone, ip, deviceID string, now time.Time) ([]string, error) {
	var ipAttempts, deviceAttempts, failedVerifies []*models.AuthAttempt

	failedOnly := false
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ipAttempts, err = s.store.QueryAttempts(gctx, store.AttemptFilter{
			Kind:  models.AttemptOTPSend,
			IP:    ip,
			Since: now.Add(-burstWindow),
		})
		return err
	})
	g.Go(func() error {
		var err error
		deviceAttempts, err = s.store.QueryAttempts(gctx, store.AttemptFilter{
			Kind:     models.AttemptOTPSend,
			DeviceID: deviceID,
			Since:    now.Add(-burstWindow),
		})
		return err
	})
	g.Go(func() error {
		var err error
		failedVerifies, err = s.store.QueryAttempts(gctx, store.AttemptFilter{
			Kind:    models.AttemptOTPVerify,
			Phone:   phone,
			Success: &failedOnly,
			Since:   now.Add(-failedVerifyWindow),
		})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var reasons []string
	if len(ipAttempts) >= ipBurstAttempts && distinctPhones(ipAttempts) >= burstDistinctPhones {
		reasons = append(reasons, ReasonIPBurst)
	}
	if len(deviceAttempts) >= deviceBurstAttempts && distinctPhones(deviceAttempts) >= burstDistinctPhones {
		reasons = append(reasons, ReasonDeviceBurst)
	}
	if len(failedVerifies) >= failedVerifyCount {
		reasons = append(reasons, ReasonPhoneFailures)
	}
	return reasons, nil
}

func distinctPhones(attempts []*models.AuthAttempt) int {
	seen := make(map[string]struct{}, len(attempts))
	for _, attempt := range attempts {
		seen[attempt.Phone] = struct{}{}
	}
	return len(seen)
}

// recordRiskEvent appends an immutable risk event with all identity
// dimensions hashed, and mirrors it to the security pipeline when a
// publisher is configured. Publish failures are logged, not fatal: the
// store already holds the event.
func (s *AuthService) recordRiskEvent(ctx context.Context, phone, ip, deviceID string, reasons []string, now time.Time) error {
	event := &models.RiskEvent{
		PhoneHash:     util.HashText(phone),
		IPHash:        util.HashText(ip),
		DeviceHash:    util.HashText(deviceID),
		TriggerReason: strings.Join(reasons, ","),
		Action:        "captcha",
		Timestamp:     now,
	}
	if err := s.store.AppendRiskEvent(ctx, event); err != nil {
		return err
	}

	s.logger.Warn("captcha challenge required",
		zap.String("phone_hash", event.PhoneHash),
		zap.String("reasons", event.TriggerReason),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishRiskEvent(ctx, event); err != nil {
			s.logger.Warn("risk event publish failed", zap.Error(err))
		}
	}
	return nil
}
