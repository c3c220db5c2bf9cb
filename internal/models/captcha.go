package models

import "time"

// CaptchaChallenge is a lightweight arithmetic puzzle. Only the prompt is
// ever returned to the caller; the answer stays server-side.
type CaptchaChallenge struct {
	ID        string    `json:"id"`
	Answer    string    `json:"answer"`
	Prompt    string    `json:"prompt"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (c *CaptchaChallenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// CaptchaToken proves that a specific (phone, ip, device) triple solved a
// challenge. Redemption requires an exact match on all three dimensions so a
// solved challenge cannot be replayed from another context.
type CaptchaToken struct {
	Token     string    `json:"token"`
	Phone     string    `json:"phone"`
	IP        string    `json:"ip"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t *CaptchaToken) Expired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

func (t *CaptchaToken) Matches(phone, ip, deviceID string) bool {
	return t.Phone == phone && t.IP == ip && t.DeviceID == deviceID
}
