package models

import "time"

// Check verdicts. A license row itself carries no status column; the verdict
// is computed from key match, expiry, and the payment ledger.
const (
	StatusValid    = "valid"
	StatusInvalid  = "invalid"
	StatusExpired  = "expired"
	StatusInactive = "inactive"
	StatusPending  = "pending"
	StatusRejected = "rejected"
)

type License struct {
	Email  string `json:"email"`
	Key    string `json:"license_key"`
	Expiry int64  `json:"expiry"`
}

// ExpiresOn formats the expiry for human-facing responses.
func (l License) ExpiresOn() string {
	return time.Unix(l.Expiry, 0).UTC().Format(time.RFC1123)
}
