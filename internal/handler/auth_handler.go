package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"auth-engine/internal/apperr"
	"auth-engine/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthHandler translates HTTP requests into engine operations. Each handler
// captures the request clock once and threads it through the engine.
type AuthHandler struct {
	auth   *service.AuthService
	logger *zap.Logger
}

func NewAuthHandler(auth *service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Response is the wire envelope. Code 0 means success; error codes mirror
// the engine's taxonomy.
type Response struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    any            `json:"data,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Post("/sms/send", h.SendCode)
		r.Post("/sms/verify", h.VerifyCode)
		r.Post("/captcha/verify", h.VerifyCaptcha)
		r.Post("/password/set", h.SetPassword)
		r.Post("/password/login", h.Login)
		r.Post("/password/reset", h.ResetPassword)
	})
	router.Get("/reminders/settings", h.ReminderSettings)
	router.Get("/billing/entitlement", h.Entitlement)
}

func (h *AuthHandler) writeJSON(w http.ResponseWriter, status int, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *AuthHandler) ok(w http.ResponseWriter, data any) {
	h.writeJSON(w, http.StatusOK, Response{Code: 0, Message: "ok", Data: data})
}

func (h *AuthHandler) fail(w http.ResponseWriter, err error) {
	if appErr, isApp := apperr.From(err); isApp {
		h.writeJSON(w, appErr.Status, Response{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		})
		return
	}
	h.logger.Error("request failed", zap.Error(err))
	h.writeJSON(w, http.StatusInternalServerError, Response{
		Code:    apperr.CodeInternal,
		Message: "internal server error",
	})
}

func (h *AuthHandler) badRequest(w http.ResponseWriter, message string) {
	h.writeJSON(w, http.StatusBadRequest, Response{
		Code:    apperr.CodeBadRequest,
		Message: message,
	})
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.badRequest(w, "invalid request body")
		return false
	}
	return true
}

// clientIP relies on middleware.RealIP having rewritten RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return "0.0.0.0"
	}
	return host
}

func deviceID(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}

type sendCodeRequest struct {
	Phone        string `json:"phone"`
	CaptchaToken string `json:"captcha_token"`
}

func (h *AuthHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Phone == "" {
		h.badRequest(w, "phone is required")
		return
	}

	result, err := h.auth.SendCode(r.Context(), req.Phone, clientIP(r), deviceID(r), req.CaptchaToken, time.Now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, result)
}

type verifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *AuthHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Code == "" {
		h.badRequest(w, "phone and code are required")
		return
	}

	result, err := h.auth.VerifyCode(r.Context(), req.Phone, req.Code, clientIP(r), deviceID(r), time.Now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, map[string]any{
		"user_id":       result.User.ID,
		"phone":         result.User.Phone,
		"has_password":  result.HasPassword,
		"session_token": result.SessionToken,
	})
}

type verifyCaptchaRequest struct {
	Phone     string `json:"phone"`
	CaptchaID string `json:"captcha_id"`
	Answer    string `json:"answer"`
}

func (h *AuthHandler) VerifyCaptcha(w http.ResponseWriter, r *http.Request) {
	var req verifyCaptchaRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.CaptchaID == "" || req.Answer == "" {
		h.badRequest(w, "phone, captcha_id and answer are required")
		return
	}

	result, err := h.auth.VerifyCaptcha(r.Context(), req.CaptchaID, req.Answer, req.Phone, clientIP(r), deviceID(r), time.Now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, result)
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.ResolveSession(r.Context(), bearerToken(r))
	if err != nil {
		h.fail(w, err)
		return
	}

	var req setPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.auth.SetPassword(r.Context(), user.ID, req.Password); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Password == "" {
		h.badRequest(w, "phone and password are required")
		return
	}

	result, err := h.auth.Login(r.Context(), req.Phone, req.Password, clientIP(r), deviceID(r), time.Now())
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, map[string]any{
		"user_id":       result.User.ID,
		"phone":         result.User.Phone,
		"session_token": result.SessionToken,
	})
}

type resetPasswordRequest struct {
	Phone       string `json:"phone"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Phone == "" || req.Code == "" || req.NewPassword == "" {
		h.badRequest(w, "phone, code and new_password are required")
		return
	}

	if err := h.auth.ResetPassword(r.Context(), req.Phone, req.Code, req.NewPassword, time.Now()); err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, nil)
}

func (h *AuthHandler) ReminderSettings(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.ResolveSession(r.Context(), bearerToken(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	settings, err := h.auth.ReminderSettings(r.Context(), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, settings)
}

func (h *AuthHandler) Entitlement(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.ResolveSession(r.Context(), bearerToken(r))
	if err != nil {
		h.fail(w, err)
		return
	}
	entitlement, err := h.auth.Entitlement(r.Context(), user.ID)
	if err != nil {
		h.fail(w, err)
		return
	}
	h.ok(w, entitlement)
}
