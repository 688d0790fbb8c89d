package config

import "github.com/m-mizutani/goerr/v2"

// Sentinel errors for configuration validation
var (
	ErrConfigNotFound   = goerr.New("configuration file not found")
	ErrInvalidConfig    = goerr.New("invalid configuration")
	ErrMissingField     = goerr.New("required configuration is missing")
	ErrInvalidUserField = goerr.New("unknown user field")
	ErrInvalidBackend   = goerr.New("invalid cache backend")
)

// Context keys for error values
const (
	ConfigPathKey = "config_path"
	SectionKey    = "section"
	FieldKey      = "field"
)
