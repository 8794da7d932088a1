package classroom

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// Session is the in-memory authority for one live classroom. Every
// mutation and every snapshot happens under the session's own lock, so
// two classrooms never contend with each other. Exported methods apply
// exactly one state transition each and return the data and recipient
// connections the caller needs for emission, snapshotted under the same
// lock.
type Session struct {
	classroomID string

	mu           sync.Mutex
	participants []*Participant // join order
	index        map[string]*Participant
	teacher      *Participant
	whiteboard   types.Whiteboard // shared, scope=public
	assignments  []*types.Assignment
	byAssignID   map[string]*types.Assignment
	editable     bool
}

func newSession(classroomID string) *Session {
	return &Session{
		classroomID: classroomID,
		index:       make(map[string]*Participant),
		whiteboard:  types.Whiteboard{Scope: types.ScopePublic},
		byAssignID:  make(map[string]*types.Assignment),
	}
}

// ClassroomID returns the externally assigned classroom identifier.
func (s *Session) ClassroomID() string {
	return s.classroomID
}

// JoinResult carries everything a join transition emits: the sync
// payload for the joiner and the connections of everyone else online
// for the join broadcast.
type JoinResult struct {
	Created bool
	Sync    types.SyncData
	Others  []interfaces.Conn
}

// JoinStudent finds or creates the student participant, seeds
// submissions for every existing assignment on first join, and binds the
// connection. Rejoining the same identity rebinds in place.
func (s *Session) JoinStudent(userID string, conn interfaces.Conn) (*JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.index[userID]
	if exists {
		if p.Role != types.RoleStudent {
			return nil, ErrRoleMismatch
		}
	} else {
		p = newParticipant(userID, types.RoleStudent)
		for _, a := range s.assignments {
			p.seedSubmission(a)
		}
		s.participants = append(s.participants, p)
		s.index[userID] = p
	}
	p.bind(conn)

	res := &JoinResult{
		Created: !exists,
		Sync: types.SyncData{
			Users:   s.onlineStudentInfos(userID),
			Self:    p.info(),
			Session: s.sessionInfo(),
		},
		Others: s.onlineConnsExcept(p),
	}
	if s.teacher != nil {
		info := s.teacher.info()
		res.Sync.Teacher = &info
	}
	return res, nil
}

// JoinTeacher finds or creates the teacher participant and binds the
// connection. A second join on the same identity replaces the binding; a
// different identity cannot displace an existing teacher.
func (s *Session) JoinTeacher(userID string, conn interfaces.Conn) (*JoinResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.index[userID]
	if exists {
		if p.Role != types.RoleTeacher {
			return nil, ErrRoleMismatch
		}
	} else {
		if s.teacher != nil {
			return nil, ErrTeacherBound
		}
		p = newParticipant(userID, types.RoleTeacher)
		s.participants = append(s.participants, p)
		s.index[userID] = p
		s.teacher = p
	}
	p.bind(conn)

	return &JoinResult{
		Created: !exists,
		Sync: types.SyncData{
			Users:   s.studentInfos(),
			Self:    p.info(),
			Session: s.sessionInfo(),
		},
	}, nil
}

// LeaveResult carries the disconnect notice and who should hear it.
type LeaveResult struct {
	Notice types.LeaveNotice
	Others []interfaces.Conn
}

// Disconnect marks the participant bound to conn offline. Unknown
// connections return ok=false and change nothing.
func (s *Session) Disconnect(conn interfaces.Conn) (*LeaveResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *Participant
	for _, cand := range s.participants {
		if cand.conn == conn {
			p = cand
			break
		}
	}
	if p == nil {
		return nil, false
	}
	p.unbind()

	return &LeaveResult{
		Notice: types.LeaveNotice{UserID: p.UserID, Role: p.Role},
		Others: s.onlineConnsExcept(p),
	}, true
}

// CodeChangeResult carries the applied write and its recipients.
type CodeChangeResult struct {
	Data       types.CodeChangeData
	Recipients []interfaces.Conn
}

// ApplyCodeChange routes a whiteboard write by scope. Students may write
// the public board only while the session is editable; private and
// assignment boards of another participant are teacher-only. The
// returned data names the board owner so recipients know whose board
// changed.
func (s *Session) ApplyCodeChange(actorID string, req types.CodeChangeData) (*CodeChangeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, ok := s.index[actorID]
	if !ok {
		return nil, ErrParticipantNotFound
	}

	switch req.Scope {
	case types.ScopePublic:
		if actor.Role == types.RoleStudent && !s.editable {
			return nil, ErrEditLocked
		}
		s.whiteboard.Content = req.Content
		return &CodeChangeResult{
			Data:       types.CodeChangeData{Scope: types.ScopePublic, Content: req.Content},
			Recipients: s.onlineConnsExcept(actor),
		}, nil

	case types.ScopePrivate:
		owner, err := s.resolveOwner(actor, req.Target)
		if err != nil {
			return nil, err
		}
		owner.Whiteboard.Content = req.Content
		return &CodeChangeResult{
			Data:       types.CodeChangeData{Scope: types.ScopePrivate, Target: owner.UserID, Content: req.Content},
			Recipients: s.counterpartConns(actor, owner),
		}, nil

	case types.ScopeAssignment:
		owner, err := s.resolveOwner(actor, req.Target)
		if err != nil {
			return nil, err
		}
		sub, ok := owner.Submissions[req.AssignmentID]
		if !ok {
			return nil, ErrSubmissionNotFound
		}
		sub.Whiteboard.Content = req.Content
		// A student's first edit moves the submission out of not-started.
		if actor.Role == types.RoleStudent && sub.Status == types.SubmissionNotStarted {
			sub.Status = types.SubmissionInProgress
		}
		return &CodeChangeResult{
			Data: types.CodeChangeData{
				Scope:        types.ScopeAssignment,
				Target:       owner.UserID,
				AssignmentID: req.AssignmentID,
				Content:      req.Content,
			},
			Recipients: s.counterpartConns(actor, owner),
		}, nil

	default:
		return nil, types.ErrInvalidScope
	}
}

// GetData returns a read-only snapshot of the requested board or
// submission. Reading another participant's private or assignment state
// is teacher-only.
func (s *Session) GetData(actorID string, req types.GetDataRequest) (*types.GetDataResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, ok := s.index[actorID]
	if !ok {
		return nil, ErrParticipantNotFound
	}

	switch req.Scope {
	case types.ScopePublic:
		wb := s.whiteboard
		return &types.GetDataResponse{Scope: types.ScopePublic, Whiteboard: &wb}, nil

	case types.ScopePrivate:
		owner, err := s.resolveOwner(actor, req.Target)
		if err != nil {
			return nil, err
		}
		wb := owner.Whiteboard
		return &types.GetDataResponse{Scope: types.ScopePrivate, Target: owner.UserID, Whiteboard: &wb}, nil

	case types.ScopeAssignment:
		owner, err := s.resolveOwner(actor, req.Target)
		if err != nil {
			return nil, err
		}
		sub, ok := owner.Submissions[req.AssignmentID]
		if !ok {
			return nil, ErrSubmissionNotFound
		}
		clone := sub.Clone()
		return &types.GetDataResponse{
			Scope:        types.ScopeAssignment,
			Target:       owner.UserID,
			AssignmentID: req.AssignmentID,
			Submission:   &clone,
		}, nil

	default:
		return nil, types.ErrInvalidScope
	}
}

// StudentDelivery is one per-student emission of a freshly created
// assignment.
type StudentDelivery struct {
	Conn interfaces.Conn
	Data types.AssignmentCreatedStudent
}

// CreateAssignmentResult carries the per-student deliveries and the
// teacher's aggregate view.
type CreateAssignmentResult struct {
	Assignment types.Assignment
	PerStudent []StudentDelivery
	Teacher    types.AssignmentCreatedTeacher
}

// CreateAssignment records a new assignment and seeds a submission for
// every current student. Titles must be unique within the session.
func (s *Session) CreateAssignment(req types.AssignmentCreateData) (*CreateAssignmentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.assignments {
		if a.Title == req.Title {
			return nil, ErrDuplicateTitle
		}
	}

	a := &types.Assignment{
		ID:          uuid.New().String(),
		Title:       req.Title,
		Description: req.Description,
		Template:    buildTemplate(req.Description, req.Code),
	}
	s.assignments = append(s.assignments, a)
	s.byAssignID[a.ID] = a

	res := &CreateAssignmentResult{
		Assignment: *a,
		Teacher:    types.AssignmentCreatedTeacher{Assignment: *a},
	}
	for _, p := range s.participants {
		if p.Role != types.RoleStudent {
			continue
		}
		sub := p.seedSubmission(a)
		if p.online() {
			res.PerStudent = append(res.PerStudent, StudentDelivery{
				Conn: p.conn,
				Data: types.AssignmentCreatedStudent{Assignment: *a, Submission: sub.Clone()},
			})
		}
		res.Teacher.Students = append(res.Teacher.Students, p.info())
	}
	return res, nil
}

// SubmitResult carries the submission notice and the teacher connection
// it goes to, nil when no teacher is online.
type SubmitResult struct {
	Notice      types.SubmitAssignmentNotice
	TeacherConn interfaces.Conn
}

// Submit marks the student's submission as submitted.
func (s *Session) Submit(actorID, assignmentID string) (*SubmitResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	actor, ok := s.index[actorID]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	sub, ok := actor.Submissions[assignmentID]
	if !ok {
		return nil, ErrSubmissionNotFound
	}
	sub.Status = types.SubmissionSubmitted

	res := &SubmitResult{
		Notice: types.SubmitAssignmentNotice{UserID: actorID, Submission: sub.Clone()},
	}
	if s.teacher != nil && s.teacher.online() {
		res.TeacherConn = s.teacher.conn
	}
	return res, nil
}

// GradeResult carries the grading notice and the graded student's
// connection, nil when that student is offline.
type GradeResult struct {
	Notice     types.GradeAssignmentNotice
	TargetConn interfaces.Conn
}

// Grade updates a submission's grade, feedback, and status, and appends
// an entry to the append-only grade history.
func (s *Session) Grade(req types.GradeAssignmentData) (*GradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, ok := s.index[req.Target]
	if !ok {
		return nil, ErrParticipantNotFound
	}
	sub, ok := target.Submissions[req.AssignmentID]
	if !ok {
		return nil, ErrSubmissionNotFound
	}

	now := time.Now()
	grade := req.Grade
	sub.Grade = &grade
	sub.Feedback = req.Feedback
	sub.Status = req.Status
	sub.GradeHistory = append(sub.GradeHistory, types.GradeRecord{
		Grade:    req.Grade,
		Feedback: req.Feedback,
		GradedAt: now,
	})

	res := &GradeResult{
		Notice: types.GradeAssignmentNotice{
			AssignmentID: req.AssignmentID,
			Submission:   sub.Clone(),
			GradedAt:     now,
		},
	}
	if target.online() {
		res.TargetConn = target.conn
	}
	return res, nil
}

// SetEditable flips the gate on student edits to the public whiteboard
// and returns the online student connections for the lock/unlock
// broadcast.
func (s *Session) SetEditable(editable bool) []interfaces.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editable = editable
	return s.onlineStudentConns()
}

// Editable reports whether students may edit the public whiteboard.
func (s *Session) Editable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editable
}

// PublicContent returns the shared whiteboard content.
func (s *Session) PublicContent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.whiteboard.Content
}

// StudentConns snapshots the online student connections.
func (s *Session) StudentConns() []interfaces.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineStudentConns()
}

// OnlineConns snapshots every online connection.
func (s *Session) OnlineConns() []interfaces.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.onlineConnsExcept(nil)
}

// ConnsExcept snapshots every online connection except the given one.
func (s *Session) ConnsExcept(conn interfaces.Conn) []interfaces.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]interfaces.Conn, 0, len(s.participants))
	for _, p := range s.participants {
		if p.online() && p.conn != conn {
			out = append(out, p.conn)
		}
	}
	return out
}

// Participant returns a snapshot of one participant.
func (s *Session) Participant(userID string) (types.ParticipantInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.index[userID]
	if !ok {
		return types.ParticipantInfo{}, false
	}
	return p.info(), true
}

// Counts returns participant totals for monitoring.
func (s *Session) Counts() (total, online int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		total++
		if p.online() {
			online++
		}
	}
	return total, online
}

// resolveOwner applies the shared target rule for private and assignment
// scopes: students act on themselves, teachers may name any participant.
// Caller holds the session lock.
func (s *Session) resolveOwner(actor *Participant, target string) (*Participant, error) {
	if actor.Role == types.RoleTeacher {
		if target == "" || target == actor.UserID {
			return actor, nil
		}
		owner, ok := s.index[target]
		if !ok {
			return nil, ErrParticipantNotFound
		}
		return owner, nil
	}
	if target != "" && target != actor.UserID {
		return nil, ErrNotPermitted
	}
	return actor, nil
}

// counterpartConns picks who hears about a private or assignment write:
// the teacher when a student edits their own board, the board owner when
// the teacher edits on a student's behalf. Caller holds the session lock.
func (s *Session) counterpartConns(actor, owner *Participant) []interfaces.Conn {
	if actor.Role == types.RoleStudent {
		if s.teacher != nil && s.teacher.online() {
			return []interfaces.Conn{s.teacher.conn}
		}
		return nil
	}
	if owner != actor && owner.online() {
		return []interfaces.Conn{owner.conn}
	}
	return nil
}

// Caller holds the session lock for all snapshot helpers below.

func (s *Session) sessionInfo() types.SessionInfo {
	info := types.SessionInfo{
		ClassroomID: s.classroomID,
		Whiteboard:  s.whiteboard,
		Editable:    s.editable,
	}
	for _, a := range s.assignments {
		info.Assignments = append(info.Assignments, *a)
	}
	return info
}

func (s *Session) onlineStudentInfos(excludeID string) []types.ParticipantInfo {
	out := []types.ParticipantInfo{}
	for _, p := range s.participants {
		if p.Role == types.RoleStudent && p.online() && p.UserID != excludeID {
			out = append(out, p.info())
		}
	}
	return out
}

func (s *Session) studentInfos() []types.ParticipantInfo {
	out := []types.ParticipantInfo{}
	for _, p := range s.participants {
		if p.Role == types.RoleStudent {
			out = append(out, p.info())
		}
	}
	return out
}

func (s *Session) onlineConnsExcept(except *Participant) []interfaces.Conn {
	out := make([]interfaces.Conn, 0, len(s.participants))
	for _, p := range s.participants {
		if p != except && p.online() {
			out = append(out, p.conn)
		}
	}
	return out
}

func (s *Session) onlineStudentConns() []interfaces.Conn {
	out := make([]interfaces.Conn, 0, len(s.participants))
	for _, p := range s.participants {
		if p.Role == types.RoleStudent && p.online() {
			out = append(out, p.conn)
		}
	}
	return out
}

// buildTemplate seeds assignment whiteboards from the description and
// the teacher-supplied starter code, either part optional.
func buildTemplate(description, code string) string {
	parts := make([]string, 0, 2)
	if description != "" {
		parts = append(parts, description)
	}
	if code != "" {
		parts = append(parts, code)
	}
	return strings.Join(parts, "\n\n")
}
