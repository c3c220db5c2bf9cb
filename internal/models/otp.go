package models

import "time"

// OTPRecord holds the single live code for a phone number together with the
// send-rate bookkeeping. The record is overwritten on every successful
// issuance; DailyDate/DailyCount survive past the code's own expiry so the
// daily limit holds across reissues.
type OTPRecord struct {
	Phone      string    `json:"phone"`
	Code       string    `json:"code"`
	ExpiresAt  time.Time `json:"expires_at"`
	LastSentAt time.Time `json:"last_sent_at"`
	DailyDate  string    `json:"daily_date"`
	DailyCount int       `json:"daily_count"`
}

func (r *OTPRecord) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
