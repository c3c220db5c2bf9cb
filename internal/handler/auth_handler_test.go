package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"auth-engine/internal/apperr"
	"auth-engine/internal/hashing"
	"auth-engine/internal/service"
	"auth-engine/internal/store/memory"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	hasher := hashing.NewHasherWithParams(hashing.Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	auth := service.NewAuthService(memory.New(), hasher, nil, zap.NewNop(), false)
	return NewRouter(NewAuthHandler(auth, zap.NewNop()), zap.NewNop())
}

func doJSON(t *testing.T, router http.Handler, method, path, body string, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "1.1.1.1:4567"
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var envelope Response
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("response is not an envelope: %v (%s)", err, rec.Body.String())
	}
	return rec, envelope
}

func TestSendCodeEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPost, "/v1/auth/sms/send",
		`{"phone":"13800000001"}`, map[string]string{"X-Device-Id": "dev-1"})
	if rec.Code != http.StatusOK || envelope.Code != 0 {
		t.Fatalf("unexpected response %d %+v", rec.Code, envelope)
	}
	data, ok := envelope.Data.(map[string]any)
	if !ok {
		t.Fatalf("unexpected data %+v", envelope.Data)
	}
	if data["expires_in_sec"] != float64(300) {
		t.Fatalf("unexpected expiry %v", data["expires_in_sec"])
	}
	if code, _ := data["debug_code"].(string); len(code) != 6 {
		t.Fatalf("expected debug code outside production, got %v", data["debug_code"])
	}

	// Immediate resend hits the cooldown with the engine's status and code.
	rec, envelope = doJSON(t, router, http.MethodPost, "/v1/auth/sms/send",
		`{"phone":"13800000001"}`, map[string]string{"X-Device-Id": "dev-1"})
	if rec.Code != http.StatusTooManyRequests || envelope.Code != apperr.CodeCooldown {
		t.Fatalf("expected cooldown, got %d %+v", rec.Code, envelope)
	}
}

func TestSendCodeEndpointValidation(t *testing.T) {
	router := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPost, "/v1/auth/sms/send", `{}`, nil)
	if rec.Code != http.StatusBadRequest || envelope.Code != apperr.CodeBadRequest {
		t.Fatalf("expected bad request, got %d %+v", rec.Code, envelope)
	}

	rec, envelope = doJSON(t, router, http.MethodPost, "/v1/auth/sms/send", `not json`, nil)
	if rec.Code != http.StatusBadRequest || envelope.Code != apperr.CodeBadRequest {
		t.Fatalf("expected bad request, got %d %+v", rec.Code, envelope)
	}

	rec, envelope = doJSON(t, router, http.MethodPost, "/v1/auth/sms/send", `{"phone":"12345"}`, nil)
	if rec.Code != http.StatusBadRequest || envelope.Code != apperr.CodeInvalidPhone {
		t.Fatalf("expected invalid phone, got %d %+v", rec.Code, envelope)
	}
}

func TestVerifyCodeEndpointFullFlow(t *testing.T) {
	router := newTestRouter(t)

	_, sendEnvelope := doJSON(t, router, http.MethodPost, "/v1/auth/sms/send",
		`{"phone":"13800000001"}`, map[string]string{"X-Device-Id": "dev-1"})
	code := sendEnvelope.Data.(map[string]any)["debug_code"].(string)

	rec, envelope := doJSON(t, router, http.MethodPost, "/v1/auth/sms/verify",
		`{"phone":"13800000001","code":"`+code+`"}`, map[string]string{"X-Device-Id": "dev-1"})
	if rec.Code != http.StatusOK || envelope.Code != 0 {
		t.Fatalf("verify failed: %d %+v", rec.Code, envelope)
	}
	data := envelope.Data.(map[string]any)
	token, _ := data["session_token"].(string)
	if token == "" {
		t.Fatalf("expected a session token, got %+v", data)
	}
	if data["has_password"] != false {
		t.Fatalf("new user must not have a password: %+v", data)
	}

	// The minted token authenticates the settings endpoints.
	rec, envelope = doJSON(t, router, http.MethodGet, "/v1/reminders/settings", "",
		map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK || envelope.Code != 0 {
		t.Fatalf("settings failed: %d %+v", rec.Code, envelope)
	}
	settings := envelope.Data.(map[string]any)
	if settings["time"] != "22:00" {
		t.Fatalf("unexpected default settings %+v", settings)
	}
}

func TestVerifyCodeEndpointWrongCode(t *testing.T) {
	router := newTestRouter(t)

	rec, envelope := doJSON(t, router, http.MethodPost, "/v1/auth/sms/verify",
		`{"phone":"13800000001","code":"999999"}`, nil)
	if rec.Code != http.StatusUnauthorized || envelope.Code != apperr.CodeCodeInvalid {
		t.Fatalf("expected code invalid, got %d %+v", rec.Code, envelope)
	}
}

func TestAuthenticatedEndpointsRejectMissingToken(t *testing.T) {
	router := newTestRouter(t)

	for _, path := range []string{"/v1/reminders/settings", "/v1/billing/entitlement"} {
		rec, envelope := doJSON(t, router, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized || envelope.Code != apperr.CodeUnauthenticated {
			t.Fatalf("%s: expected unauthenticated, got %d %+v", path, rec.Code, envelope)
		}
	}

	rec, envelope := doJSON(t, router, http.MethodPost, "/v1/auth/password/set",
		`{"password":"s3cret-pass"}`, map[string]string{"Authorization": "Bearer sess_unknown"})
	if rec.Code != http.StatusUnauthorized || envelope.Code != apperr.CodeUnauthenticated {
		t.Fatalf("expected unauthenticated, got %d %+v", rec.Code, envelope)
	}
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"healthy"`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}
