package types

import "regexp"

// Compiled once; these run on every inbound envelope.
var (
	userIDRegex      = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	classroomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// maxContentBytes caps whiteboard content at 64KB.
const maxContentBytes = 65536

// IsValidUserID checks length and character-set rules for user identifiers.
func IsValidUserID(userID string) bool {
	if len(userID) < 1 || len(userID) > 50 {
		return false
	}
	return userIDRegex.MatchString(userID)
}

// IsValidClassroomID checks length and character-set rules for classroom
// identifiers.
func IsValidClassroomID(classroomID string) bool {
	if len(classroomID) < 1 || len(classroomID) > 50 {
		return false
	}
	return classroomIDRegex.MatchString(classroomID)
}

// IsValidAction reports whether code is one of the defined action codes.
func (c ActionCode) IsValid() bool {
	return c >= ActionNone && c <= ActionGradeAssignment
}

// IsValidScope reports whether s is one of the three whiteboard scopes.
func IsValidScope(s Scope) bool {
	switch s {
	case ScopePublic, ScopePrivate, ScopeAssignment:
		return true
	default:
		return false
	}
}

// IsValidRole reports whether r is teacher or student.
func IsValidRole(r Role) bool {
	return r == RoleTeacher || r == RoleStudent
}

// IsValidSubmissionStatus reports whether s is a defined submission status.
func IsValidSubmissionStatus(s SubmissionStatus) bool {
	switch s {
	case SubmissionNotStarted, SubmissionInProgress, SubmissionSubmitted, SubmissionGraded:
		return true
	default:
		return false
	}
}

// Validate checks a code change payload before it reaches session state.
func (d *CodeChangeData) Validate() error {
	if !IsValidScope(d.Scope) {
		return ErrInvalidScope
	}
	if len(d.Content) > maxContentBytes {
		return ErrContentTooLarge
	}
	if d.Target != "" && !IsValidUserID(d.Target) {
		return ErrInvalidUserID
	}
	return nil
}

// Validate checks a data request payload.
func (d *GetDataRequest) Validate() error {
	if !IsValidScope(d.Scope) {
		return ErrInvalidScope
	}
	if d.Target != "" && !IsValidUserID(d.Target) {
		return ErrInvalidUserID
	}
	return nil
}

// Validate checks an assignment creation payload. Titles follow the same
// 1-200 length rule sessions apply to their own names.
func (d *AssignmentCreateData) Validate() error {
	if len(d.Title) < 1 || len(d.Title) > 200 {
		return ErrInvalidTitle
	}
	if len(d.Code) > maxContentBytes || len(d.Description) > maxContentBytes {
		return ErrContentTooLarge
	}
	return nil
}

// Validate checks a grading payload. An empty status defaults to graded.
func (d *GradeAssignmentData) Validate() error {
	if !IsValidUserID(d.Target) {
		return ErrInvalidUserID
	}
	if d.AssignmentID == "" {
		return ErrInvalidAssignmentID
	}
	if d.Status == "" {
		d.Status = SubmissionGraded
	}
	if !IsValidSubmissionStatus(d.Status) {
		return ErrInvalidStatus
	}
	return nil
}
