package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Source errors
	ErrDirectoryUnavailable = errors.New("directory users could not be obtained")
	ErrIdentityUnavailable  = errors.New("identity users could not be obtained")

	// Account errors
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordNotChanged = errors.New("password could not be changed")

	// Import errors
	ErrInvalidCSVHeader = errors.New("invalid CSV header")
)

// Context keys for error values
const (
	UserIDKey = "user_id"
	ColumnKey = "column"
)
