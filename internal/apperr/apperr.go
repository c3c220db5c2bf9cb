package apperr

import (
	"errors"
	"fmt"
)

// Machine-readable error codes surfaced to API callers. The numeric values
// are part of the wire contract; clients key off them, not the messages.
const (
	CodeBadRequest         = 40000
	CodeInvalidPhone       = 40001
	CodeCaptchaInvalid     = 40002
	CodePasswordLength     = 40003
	CodePasswordWeak       = 40004
	CodeCodeInvalid        = 40101
	CodeInvalidCredentials = 40102
	CodeUnauthenticated    = 40103
	CodeCaptchaRequired    = 40331
	CodeUserNotFound       = 40401
	CodeLocked             = 42311
	CodeCooldown           = 42901
	CodeDailyLimit         = 42902
	CodeInternal           = 50000
)

// AppError carries an HTTP status, a machine-readable code, a human-readable
// message and optional structured details (e.g. captcha_id for a required
// challenge, retry_after_sec for a lockout).
type AppError struct {
	Status  int
	Code    int
	Message string
	Details map[string]any
}

func (e *AppError) Error() string {
	return fmt.Sprintf("app error %d: %s", e.Code, e.Message)
}

func New(status, code int, message string) *AppError {
	return &AppError{Status: status, Code: code, Message: message}
}

// WithDetails returns a copy carrying the given details, leaving the
// original (often a package-level sentinel) untouched.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

// From unwraps err into an *AppError if one is present.
func From(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsCode reports whether err is an AppError with the given code.
func IsCode(err error, code int) bool {
	appErr, ok := From(err)
	return ok && appErr.Code == code
}

var (
	ErrInvalidPhone       = New(400, CodeInvalidPhone, "invalid phone number, only China mainland numbers are supported")
	ErrCaptchaInvalid     = New(400, CodeCaptchaInvalid, "captcha answer is wrong or the challenge expired")
	ErrPasswordLength     = New(400, CodePasswordLength, "password must be 6-20 characters")
	ErrPasswordWeak       = New(400, CodePasswordWeak, "password is too weak, choose another one")
	ErrCodeInvalid        = New(401, CodeCodeInvalid, "verification code is wrong or expired")
	ErrInvalidCredentials = New(401, CodeInvalidCredentials, "phone number or password is incorrect")
	ErrUnauthenticated    = New(401, CodeUnauthenticated, "not logged in or session expired")
	ErrCaptchaRequired    = New(403, CodeCaptchaRequired, "captcha verification required")
	ErrUserNotFound       = New(404, CodeUserNotFound, "user not found")
	ErrLocked             = New(423, CodeLocked, "too many failed password attempts, try again later")
	ErrCooldown           = New(429, CodeCooldown, "codes are being requested too frequently, try again shortly")
	ErrDailyLimit         = New(429, CodeDailyLimit, "daily send limit reached for this phone number")
)
