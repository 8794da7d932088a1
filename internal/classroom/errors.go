package classroom

import "errors"

var (
	ErrParticipantNotFound = errors.New("participant not found")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrDuplicateTitle      = errors.New("assignment title already exists in session")
	ErrRoleMismatch        = errors.New("participant role does not match join action")
	ErrTeacherBound        = errors.New("session already has a teacher")
	ErrEditLocked          = errors.New("public whiteboard is locked for students")
	ErrNotPermitted        = errors.New("actor may not touch another participant's state")
)
