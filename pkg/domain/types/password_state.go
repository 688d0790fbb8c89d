package types

// PasswordState classifies a password by its days-until-expiration delta
type PasswordState string

const (
	// PasswordStateActive: expiration is further away than the notification window
	PasswordStateActive PasswordState = "active"
	// PasswordStateExpiring: within the notification window, not yet expired
	PasswordStateExpiring PasswordState = "expiring"
	// PasswordStateExpiredWithinGrace: expired, account still enabled
	PasswordStateExpiredWithinGrace PasswordState = "expired_within_grace"
	// PasswordStateExpiredBeyondGrace: expired longer than the gracious period
	PasswordStateExpiredBeyondGrace PasswordState = "expired_beyond_grace"
)

// String returns the string representation of the password state
func (s PasswordState) String() string {
	return string(s)
}
