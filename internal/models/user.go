package models

import "time"

// User is keyed by its generated ID; the phone number is the unique
// natural key. PasswordHash stays empty until the user explicitly sets one.
type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"password_hash,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}
