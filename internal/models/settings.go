package models

// ReminderSettings and Entitlement are created with defaults on first
// successful OTP verification for a previously unseen phone.

type ReminderSettings struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
	Time    string `json:"time"`
}

type Entitlement struct {
	UserID        string `json:"user_id"`
	BaseAccess    bool   `json:"base_access"`
	PremiumActive bool   `json:"premium_active"`
}
