package classroom

import (
	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// Participant is a user bound to a classroom session. It is created on
// first join and lives for the session's lifetime; disconnects only mark
// it offline so reconnects keep all state.
type Participant struct {
	UserID      string
	Role        types.Role
	Status      types.PresenceStatus
	Whiteboard  types.Whiteboard
	Submissions map[string]*types.Submission // keyed by assignment id

	conn interfaces.Conn // replaceable on reconnect; nil while offline
}

// newParticipant builds a participant with an empty private whiteboard.
// Caller holds the session lock.
func newParticipant(userID string, role types.Role) *Participant {
	return &Participant{
		UserID:      userID,
		Role:        role,
		Status:      types.StatusOffline,
		Whiteboard:  types.Whiteboard{Scope: types.ScopePrivate},
		Submissions: make(map[string]*types.Submission),
	}
}

// bind attaches a live connection and marks the participant online.
// Caller holds the session lock.
func (p *Participant) bind(conn interfaces.Conn) {
	p.conn = conn
	p.Status = types.StatusOnline
}

// unbind drops the connection handle and marks the participant offline.
// Caller holds the session lock.
func (p *Participant) unbind() {
	p.conn = nil
	p.Status = types.StatusOffline
}

func (p *Participant) online() bool {
	return p.Status == types.StatusOnline && p.conn != nil
}

// seedSubmission creates the working copy of an assignment for this
// participant. Caller holds the session lock.
func (p *Participant) seedSubmission(a *types.Assignment) *types.Submission {
	sub := &types.Submission{
		AssignmentID: a.ID,
		Whiteboard:   types.Whiteboard{Content: a.Template, Scope: types.ScopeAssignment},
		Status:       types.SubmissionNotStarted,
	}
	p.Submissions[a.ID] = sub
	return sub
}

// info snapshots the participant for the wire, deep-copying submissions
// so the snapshot stays stable after the session lock is released.
// Caller holds the session lock.
func (p *Participant) info() types.ParticipantInfo {
	out := types.ParticipantInfo{
		UserID:     p.UserID,
		Role:       p.Role,
		Status:     p.Status,
		Whiteboard: p.Whiteboard,
	}
	if len(p.Submissions) > 0 {
		out.Submissions = make([]types.Submission, 0, len(p.Submissions))
		for _, sub := range p.Submissions {
			out.Submissions = append(out.Submissions, sub.Clone())
		}
	}
	return out
}
