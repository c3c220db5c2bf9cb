package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"auth-engine/internal/apperr"
)

func TestResolveSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, token := range []string{"", "sess_unknown"} {
		_, err := svc.ResolveSession(ctx, token)
		wantCode(t, err, apperr.CodeUnauthenticated)
	}

	code := sendAndGetCode(t, svc, "13800000001", baseTime)
	result, err := svc.VerifyCode(ctx, "13800000001", code, "1.1.1.1", "dev-1", baseTime.Add(time.Second))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.HasPrefix(result.SessionToken, "sess_") {
		t.Fatalf("unexpected token format %q", result.SessionToken)
	}

	user, err := svc.ResolveSession(ctx, result.SessionToken)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if user.ID != result.User.ID {
		t.Fatal("session resolved the wrong user")
	}
}
