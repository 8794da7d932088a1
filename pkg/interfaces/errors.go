package interfaces

import "errors"

var (
	ErrInvalidToken      = errors.New("invalid or expired credential")
	ErrClassroomNotFound = errors.New("classroom not found")
	ErrUserNotFound      = errors.New("user not found")
)
