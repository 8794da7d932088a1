package types

import "errors"

var (
	ErrInvalidUserID       = errors.New("user ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidClassroomID  = errors.New("classroom ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidScope        = errors.New("scope must be public, private, or assignment")
	ErrInvalidTitle        = errors.New("assignment title must be 1-200 characters")
	ErrInvalidAssignmentID = errors.New("assignment ID cannot be empty")
	ErrInvalidStatus       = errors.New("invalid submission status")
	ErrContentTooLarge     = errors.New("content exceeds 64KB limit")
	ErrMissingPayload      = errors.New("envelope has no data payload")
	ErrInvalidPayload      = errors.New("invalid JSON payload")
)
