package types

import (
	"encoding/json"
	"time"
)

// ActionCode tags every envelope exchanged over a classroom connection.
// The integer values are part of the wire protocol and must match the
// client side exactly; never reorder or renumber.
type ActionCode int

const (
	ActionNone ActionCode = iota
	ActionJoin
	ActionCodeChange
	ActionSyncData
	ActionLeave
	ActionGetData
	ActionLockCode
	ActionUnlockCode
	ActionTeacherJoin
	ActionClassroomDeleted
	ActionAssignmentCreate
	ActionSubmitAssignment // 11
	ActionGradeAssignment  // 12
)

// Role identifies what a participant is allowed to do within a session.
// Immutable after the participant is created.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Scope identifies which whiteboard a code change or data request targets.
type Scope string

const (
	ScopePublic     Scope = "public"
	ScopePrivate    Scope = "private"
	ScopeAssignment Scope = "assignment"
)

// PresenceStatus tracks whether a participant currently holds a live connection.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
)

// SubmissionStatus tracks a student's progress on one assignment.
type SubmissionStatus string

const (
	SubmissionNotStarted SubmissionStatus = "not-started"
	SubmissionInProgress SubmissionStatus = "in-progress"
	SubmissionSubmitted  SubmissionStatus = "submitted"
	SubmissionGraded     SubmissionStatus = "graded"
)

// Envelope is the fixed-shape message exchanged in both directions.
// UserID is omitted on server-to-client envelopes.
type Envelope struct {
	Action ActionCode      `json:"action"`
	UserID string          `json:"user_id,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an outbound envelope with the payload marshaled in place.
func NewEnvelope(action ActionCode, data any) (*Envelope, error) {
	env := &Envelope{Action: action}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, ErrInvalidPayload
		}
		env.Data = raw
	}
	return env, nil
}

// DecodeData unmarshals the envelope payload into v.
func (e *Envelope) DecodeData(v any) error {
	if len(e.Data) == 0 {
		return ErrMissingPayload
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return ErrInvalidPayload
	}
	return nil
}

// Whiteboard is a piece of mutable code content. It has no identity of
// its own; ownership is by containment in a session, participant, or
// submission.
type Whiteboard struct {
	Content string `json:"content"`
	Scope   Scope  `json:"scope"`
}

// Assignment is a teacher-authored task template. The id is generated
// server-side and is the lookup key; the title stays unique within a
// session for display purposes.
type Assignment struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Template    string `json:"template"`
}

// GradeRecord is one entry in a submission's append-only grade history.
type GradeRecord struct {
	Grade    float64   `json:"grade"`
	Feedback string    `json:"feedback"`
	GradedAt time.Time `json:"graded_at"`
}

// Submission is one student's working copy of an assignment.
type Submission struct {
	AssignmentID string           `json:"assignment_id"`
	Whiteboard   Whiteboard       `json:"whiteboard"`
	Status       SubmissionStatus `json:"status"`
	Grade        *float64         `json:"grade,omitempty"`
	Feedback     string           `json:"feedback,omitempty"`
	GradeHistory []GradeRecord    `json:"grade_history,omitempty"`
}

// Clone returns a deep copy safe to hand out after the session lock is
// released.
func (s *Submission) Clone() Submission {
	out := *s
	if s.Grade != nil {
		g := *s.Grade
		out.Grade = &g
	}
	if len(s.GradeHistory) > 0 {
		out.GradeHistory = make([]GradeRecord, len(s.GradeHistory))
		copy(out.GradeHistory, s.GradeHistory)
	}
	return out
}

// ParticipantInfo is the wire snapshot of a participant.
type ParticipantInfo struct {
	UserID      string         `json:"user_id"`
	Role        Role           `json:"role"`
	Status      PresenceStatus `json:"status"`
	Whiteboard  Whiteboard     `json:"whiteboard"`
	Submissions []Submission   `json:"submissions,omitempty"`
}

// SessionInfo is the wire snapshot of classroom-level session state.
type SessionInfo struct {
	ClassroomID string       `json:"classroom_id"`
	Whiteboard  Whiteboard   `json:"whiteboard"`
	Editable    bool         `json:"editable"`
	Assignments []Assignment `json:"assignments,omitempty"`
}

// SyncData is the payload of the SYNC_DATA envelope sent to a joiner.
// Users lists the other online students; Teacher is present when the
// classroom has a teacher participant.
type SyncData struct {
	Users   []ParticipantInfo `json:"users"`
	Teacher *ParticipantInfo  `json:"teacher,omitempty"`
	Self    ParticipantInfo   `json:"self"`
	Session SessionInfo       `json:"session"`
}

// LeaveNotice is the payload of the LEAVE broadcast.
type LeaveNotice struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role"`
}

// CodeChangeData carries a whiteboard write in both directions. Target
// names the whiteboard owner for private and assignment scopes; on
// outbound envelopes the server fills it in so recipients know whose
// board changed.
type CodeChangeData struct {
	Scope        Scope  `json:"scope"`
	Target       string `json:"target,omitempty"`
	AssignmentID string `json:"assignment_id,omitempty"`
	Content      string `json:"content"`
}

// GetDataRequest asks for a read-only snapshot of one whiteboard or
// submission.
type GetDataRequest struct {
	Scope        Scope  `json:"scope"`
	Target       string `json:"target,omitempty"`
	AssignmentID string `json:"assignment_id,omitempty"`
}

// GetDataResponse echoes the request coordinates alongside the fetched
// state so clients can correlate responses.
type GetDataResponse struct {
	Scope        Scope       `json:"scope"`
	Target       string      `json:"target,omitempty"`
	AssignmentID string      `json:"assignment_id,omitempty"`
	Whiteboard   *Whiteboard `json:"whiteboard,omitempty"`
	Submission   *Submission `json:"submission,omitempty"`
}

// AssignmentCreateData is the teacher's inbound ASSIGNMENT_CREATE payload.
type AssignmentCreateData struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Code        string `json:"code"`
}

// AssignmentCreatedStudent is the per-student ASSIGNMENT_CREATE payload
// carrying that student's freshly seeded submission.
type AssignmentCreatedStudent struct {
	Assignment Assignment `json:"assignment"`
	Submission Submission `json:"submission"`
}

// AssignmentCreatedTeacher is the aggregate ASSIGNMENT_CREATE payload
// returned to the teacher.
type AssignmentCreatedTeacher struct {
	Assignment Assignment        `json:"assignment"`
	Students   []ParticipantInfo `json:"students"`
}

// SubmitAssignmentData is the student's inbound SUBMIT_ASSIGNMENT payload.
type SubmitAssignmentData struct {
	AssignmentID string `json:"assignment_id"`
}

// SubmitAssignmentNotice tells the teacher who submitted what.
type SubmitAssignmentNotice struct {
	UserID     string     `json:"user_id"`
	Submission Submission `json:"submission"`
}

// GradeAssignmentData is the teacher's inbound GRADE_ASSIGNMENT payload.
// Status is optional and defaults to graded.
type GradeAssignmentData struct {
	Target       string           `json:"target"`
	AssignmentID string           `json:"assignment_id"`
	Grade        float64          `json:"grade"`
	Feedback     string           `json:"feedback"`
	Status       SubmissionStatus `json:"status,omitempty"`
}

// GradeAssignmentNotice delivers the updated submission to the graded
// student.
type GradeAssignmentNotice struct {
	AssignmentID string     `json:"assignment_id"`
	Submission   Submission `json:"submission"`
	GradedAt     time.Time  `json:"graded_at"`
}
