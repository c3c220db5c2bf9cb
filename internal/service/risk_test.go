package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"auth-engine/internal/apperr"
)

func captchaDetails(t *testing.T, err error) (id, prompt string) {
	t.Helper()
	appErr, ok := apperr.From(err)
	if !ok || appErr.Code != apperr.CodeCaptchaRequired {
		t.Fatalf("expected CaptchaRequired, got %v", err)
	}
	id, _ = appErr.Details["captcha_id"].(string)
	prompt, _ = appErr.Details["captcha_prompt"].(string)
	if id == "" || prompt == "" {
		t.Fatalf("challenge details missing: %+v", appErr.Details)
	}
	return id, prompt
}

func TestRiskIPBurstRequiresCaptcha(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	ip := "9.9.9.9"

	// 8 sends from one IP across distinct phones and devices within the
	// 10-minute window.
	now := baseTime
	for i := 0; i < ipBurstAttempts; i++ {
		phone := fmt.Sprintf("138%08d", i)
		device := fmt.Sprintf("dev-%d", i)
		if _, err := svc.SendCode(ctx, phone, ip, device, "", now); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
		now = now.Add(10 * time.Second)
	}

	_, err := svc.SendCode(ctx, "13899999999", ip, "dev-fresh", "", now)
	captchaDetails(t, err)

	events := st.RiskEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 risk event, got %d", len(events))
	}
	if !strings.Contains(events[0].TriggerReason, ReasonIPBurst) {
		t.Fatalf("expected %s, got %q", ReasonIPBurst, events[0].TriggerReason)
	}
	if events[0].PhoneHash == "13899999999" || len(events[0].PhoneHash) != 64 {
		t.Fatal("risk event must store the hashed phone, not plaintext")
	}
	if events[0].Action != "captcha" {
		t.Fatalf("unexpected action %q", events[0].Action)
	}
}

func TestRiskIPBurstExpiresWithWindow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	ip := "9.9.9.9"

	now := baseTime
	for i := 0; i < ipBurstAttempts; i++ {
		phone := fmt.Sprintf("138%08d", i)
		if _, err := svc.SendCode(ctx, phone, ip, fmt.Sprintf("dev-%d", i), "", now); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
	}

	// Outside the 10-minute window the burst no longer counts.
	if _, err := svc.SendCode(ctx, "13899999999", ip, "dev-fresh", "", now.Add(burstWindow+time.Second)); err != nil {
		t.Fatalf("send outside window failed: %v", err)
	}
}

func TestRiskDeviceBurstRequiresCaptcha(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	device := "dev-shared"

	now := baseTime
	for i := 0; i < deviceBurstAttempts; i++ {
		phone := fmt.Sprintf("139%08d", i)
		ip := fmt.Sprintf("10.0.0.%d", i+1)
		if _, err := svc.SendCode(ctx, phone, ip, device, "", now); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
		now = now.Add(10 * time.Second)
	}

	_, err := svc.SendCode(ctx, "13999999999", "10.0.0.99", device, "", now)
	captchaDetails(t, err)

	events := st.RiskEvents()
	if len(events) != 1 || !strings.Contains(events[0].TriggerReason, ReasonDeviceBurst) {
		t.Fatalf("expected a %s risk event, got %+v", ReasonDeviceBurst, events)
	}
}

func TestRiskRepeatedVerifyFailuresRequireCaptcha(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	phone := "13800000001"

	for i := 0; i < failedVerifyCount; i++ {
		_, err := svc.VerifyCode(ctx, phone, "999999", "1.1.1.1", "dev-1", baseTime)
		wantCode(t, err, apperr.CodeCodeInvalid)
	}

	_, err := svc.SendCode(ctx, phone, "1.1.1.1", "dev-1", "", baseTime.Add(time.Minute))
	captchaDetails(t, err)

	events := st.RiskEvents()
	if len(events) != 1 || !strings.Contains(events[0].TriggerReason, ReasonPhoneFailures) {
		t.Fatalf("expected a %s risk event, got %+v", ReasonPhoneFailures, events)
	}
}

func TestRiskBurstBelowDistinctPhoneThresholdPasses(t *testing.T) {
	// Many sends from one IP for a single phone are rate-limiting's
	// problem, not a multi-phone burst.
	svc, _ := newTestService(t)
	ctx := context.Background()
	phone := "13800000001"

	now := baseTime
	for i := 0; i < ipBurstAttempts; i++ {
		if _, err := svc.SendCode(ctx, phone, "9.9.9.9", "dev-1", "", now); err != nil {
			t.Fatalf("send %d failed: %v", i+1, err)
		}
		now = now.Add(61 * time.Second)
	}

	if _, err := svc.SendCode(ctx, "13800000002", "9.9.9.9", "dev-2", "", now); err != nil {
		t.Fatalf("expected send to pass with only 2 distinct phones: %v", err)
	}
}

func TestCaptchaFlowClearsRiskGate(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	phone := "13800000001"
	ip := "1.1.1.1"
	device := "dev-1"

	for i := 0; i < failedVerifyCount; i++ {
		_, err := svc.VerifyCode(ctx, phone, "999999", ip, device, baseTime)
		wantCode(t, err, apperr.CodeCodeInvalid)
	}

	now := baseTime.Add(time.Minute)
	_, err := svc.SendCode(ctx, phone, ip, device, "", now)
	captchaID, _ := captchaDetails(t, err)

	challenge, err := st.GetCaptcha(ctx, captchaID)
	if err != nil {
		t.Fatalf("challenge not stored: %v", err)
	}

	verifyResult, err := svc.VerifyCaptcha(ctx, captchaID, " "+challenge.Answer+" ", phone, ip, device, now)
	if err != nil {
		t.Fatalf("captcha verify failed: %v", err)
	}

	if _, err := svc.SendCode(ctx, phone, ip, device, verifyResult.CaptchaToken, now.Add(time.Second)); err != nil {
		t.Fatalf("send with binding token failed: %v", err)
	}

	events := st.RiskEvents()
	if len(events) != 1 {
		t.Fatalf("risk event must only be recorded when a challenge is issued, got %d", len(events))
	}

	attempt, err := svc.riskReasons(ctx, phone, ip, device, now)
	if err != nil {
		t.Fatalf("riskReasons failed: %v", err)
	}
	if len(attempt) == 0 {
		t.Fatal("risk reasons should still fire; the token bypasses them without clearing history")
	}
}
