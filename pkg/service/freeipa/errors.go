package freeipa

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for remote call failures
var (
	ErrNotFound        = goerr.New("entry not found")
	ErrAlreadyActive   = goerr.New("user is already active")
	ErrAlreadyInactive = goerr.New("user is already inactive")
	ErrDuplicateEntry  = goerr.New("entry already exists")
	ErrEmptyModlist    = goerr.New("no modifications to be performed")
	ErrUnauthorized    = goerr.New("not authorized")
	ErrTransport       = goerr.New("identity system unreachable")
	ErrRemote          = goerr.New("identity system rejected the call")
)

// sentinelFor maps a remote error name to its sentinel
func sentinelFor(name string) *goerr.Error {
	switch name {
	case "NotFound":
		return ErrNotFound
	case "AlreadyActive":
		return ErrAlreadyActive
	case "AlreadyInactive":
		return ErrAlreadyInactive
	case "DuplicateEntry":
		return ErrDuplicateEntry
	case "EmptyModlist":
		return ErrEmptyModlist
	case "ACIError", "Unauthorized", "InvalidSessionPassword", "PasswordExpired", "UserLocked":
		return ErrUnauthorized
	default:
		return ErrRemote
	}
}
