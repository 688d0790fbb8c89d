package cli

import "github.com/m-mizutani/goerr/v2"

var (
	ErrServersUnreachable = goerr.New("required servers are unreachable")
	ErrMissingTemplates   = goerr.New("notification templates are missing")
	ErrMissingArgument    = goerr.New("required argument is missing")
	ErrActionFailed       = goerr.New("action did not complete")
)
