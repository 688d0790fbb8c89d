package notifier

import "github.com/m-mizutani/goerr/v2"

var (
	// ErrTemplateMissing is returned when a template file does not exist
	ErrTemplateMissing = goerr.New("notification template missing")
)
