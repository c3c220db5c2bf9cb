package models

import "time"

// Session maps an opaque bearer token to a user. No expiry is enforced by
// the engine; session lifetime is a deployment policy.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
