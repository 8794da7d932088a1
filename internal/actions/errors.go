package actions

import "errors"

var (
	ErrUnknownAction   = errors.New("unknown or server-only action code")
	ErrWrongRole       = errors.New("action not available to this role")
	ErrSessionNotFound = errors.New("no active session for classroom")
	ErrRateLimited     = errors.New("rate limit exceeded")
)
