package service

import (
	"context"
	"fmt"
	"strconv"
	"testing"
	"time"

	"auth-engine/internal/apperr"
)

func TestCreateChallengeAnswerMatchesPrompt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		challenge, err := svc.createChallenge(ctx, baseTime)
		if err != nil {
			t.Fatalf("create challenge failed: %v", err)
		}

		var a, b int
		if _, err := fmt.Sscanf(challenge.Prompt, "What is %d+%d?", &a, &b); err != nil {
			t.Fatalf("unexpected prompt %q: %v", challenge.Prompt, err)
		}
		if a < 1 || a > 9 || b < 1 || b > 9 {
			t.Fatalf("operands out of range in %q", challenge.Prompt)
		}
		if challenge.Answer != strconv.Itoa(a+b) {
			t.Fatalf("answer %q does not match prompt %q", challenge.Answer, challenge.Prompt)
		}
	}
}

func TestVerifyCaptchaWrongAnswer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.createChallenge(ctx, baseTime)
	if err != nil {
		t.Fatalf("create challenge failed: %v", err)
	}

	_, err = svc.VerifyCaptcha(ctx, challenge.ID, challenge.Answer+"1", "13800000001", "1.1.1.1", "dev-1", baseTime)
	wantCode(t, err, apperr.CodeCaptchaInvalid)

	// Unknown id fails the same way.
	_, err = svc.VerifyCaptcha(ctx, "capid_missing", "7", "13800000001", "1.1.1.1", "dev-1", baseTime)
	wantCode(t, err, apperr.CodeCaptchaInvalid)
}

func TestVerifyCaptchaExpiredChallenge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.createChallenge(ctx, baseTime)
	if err != nil {
		t.Fatalf("create challenge failed: %v", err)
	}

	_, err = svc.VerifyCaptcha(ctx, challenge.ID, challenge.Answer, "13800000001", "1.1.1.1", "dev-1", baseTime.Add(captchaTTL+time.Second))
	wantCode(t, err, apperr.CodeCaptchaInvalid)
}

func TestVerifyCaptchaTrimsAnswer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	challenge, err := svc.createChallenge(ctx, baseTime)
	if err != nil {
		t.Fatalf("create challenge failed: %v", err)
	}

	result, err := svc.VerifyCaptcha(ctx, challenge.ID, "  "+challenge.Answer+"\n", "13800000001", "1.1.1.1", "dev-1", baseTime)
	if err != nil {
		t.Fatalf("verify with padded answer failed: %v", err)
	}
	if result.CaptchaToken == "" || result.ExpiresInSec != 300 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func mintBindingToken(t *testing.T, svc *AuthService, phone, ip, device string, now time.Time) string {
	t.Helper()
	ctx := context.Background()
	challenge, err := svc.createChallenge(ctx, now)
	if err != nil {
		t.Fatalf("create challenge failed: %v", err)
	}
	result, err := svc.VerifyCaptcha(ctx, challenge.ID, challenge.Answer, phone, ip, device, now)
	if err != nil {
		t.Fatalf("captcha verify failed: %v", err)
	}
	return result.CaptchaToken
}

func TestRedeemCaptchaTokenMatchesAllDimensions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	token := mintBindingToken(t, svc, "13800000001", "1.1.1.1", "dev-1", baseTime)

	cases := []struct {
		name                string
		phone, ip, deviceID string
		at                  time.Time
		want                bool
	}{
		{"exact match", "13800000001", "1.1.1.1", "dev-1", baseTime.Add(time.Minute), true},
		{"different phone", "13800000002", "1.1.1.1", "dev-1", baseTime.Add(time.Minute), false},
		{"different ip", "13800000001", "2.2.2.2", "dev-1", baseTime.Add(time.Minute), false},
		{"different device", "13800000001", "1.1.1.1", "dev-2", baseTime.Add(time.Minute), false},
		{"after ttl", "13800000001", "1.1.1.1", "dev-1", baseTime.Add(captchaTokenTTL + time.Second), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := svc.redeemCaptchaToken(ctx, token, tc.phone, tc.ip, tc.deviceID, tc.at)
			if err != nil {
				t.Fatalf("redeem failed: %v", err)
			}
			if got != tc.want {
				t.Fatalf("redeem = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRedeemCaptchaTokenMissingOrEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, token := range []string{"", "captcha_unknown"} {
		got, err := svc.redeemCaptchaToken(ctx, token, "13800000001", "1.1.1.1", "dev-1", baseTime)
		if err != nil {
			t.Fatalf("redeem failed: %v", err)
		}
		if got {
			t.Fatalf("token %q must not redeem", token)
		}
	}
}
