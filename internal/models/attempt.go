package models

import "time"

type AttemptKind string

const (
	AttemptOTPSend       AttemptKind = "otp_send"
	AttemptOTPVerify     AttemptKind = "otp_verify"
	AttemptPasswordLogin AttemptKind = "password_login"
)

// AuthAttempt is an append-only log entry recorded on every
// authentication-relevant action, success or failure. The risk detector
// queries these by sliding time windows.
type AuthAttempt struct {
	Phone     string      `json:"phone"`
	IP        string      `json:"ip"`
	DeviceID  string      `json:"device_id"`
	Success   bool        `json:"success"`
	Kind      AttemptKind `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
}

// RiskEvent records that a challenge was issued. Identity dimensions are
// stored as sha256 hashes, never in plaintext.
type RiskEvent struct {
	PhoneHash     string    `json:"phone_hash"`
	IPHash        string    `json:"ip_hash"`
	DeviceHash    string    `json:"device_hash"`
	TriggerReason string    `json:"trigger_reason"`
	Action        string    `json:"action"`
	Timestamp     time.Time `json:"timestamp"`
}

// PasswordFailure tracks consecutive failed password logins for a phone.
// The record is deleted outright on any successful login or password reset.
type PasswordFailure struct {
	Phone          string     `json:"phone"`
	Count          int        `json:"count"`
	FirstFailureAt time.Time  `json:"first_failure_at"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
}

func (f *PasswordFailure) Locked(now time.Time) bool {
	return f.LockedUntil != nil && f.LockedUntil.After(now)
}
