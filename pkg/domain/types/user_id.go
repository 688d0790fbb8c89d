package types

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// UserID is the cross-system join key, a lowercase "first.last" login name.
type UserID string

// NewUserID normalizes raw input (CLI arguments, CSV cells, mail local parts).
func NewUserID(s string) UserID {
	return UserID(strings.ToLower(strings.TrimSpace(s)))
}

// Validate checks the dotted first.last format
func (u UserID) Validate() error {
	if u == "" {
		return goerr.New("user ID cannot be empty")
	}
	if !strings.Contains(string(u), ".") {
		return goerr.New("user ID must be in first.last format", goerr.V("user_id", u))
	}
	if string(u) != strings.ToLower(string(u)) {
		return goerr.New("user ID must be lowercase", goerr.V("user_id", u))
	}
	return nil
}

// String returns the string representation of UserID
func (u UserID) String() string {
	return string(u)
}

// EmailDomain returns the lowercase domain part of an address, or "" when the
// address has no "@".
func EmailDomain(email string) string {
	idx := strings.LastIndex(email, "@")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[idx+1:]))
}

// EmailLocalPart returns everything before the first "@".
func EmailLocalPart(email string) string {
	idx := strings.Index(email, "@")
	if idx < 0 {
		return email
	}
	return email[:idx]
}
