// Package actions is the state machine behind the classroom protocol:
// one inbound envelope becomes exactly one session transition plus zero
// or more outbound envelopes.
package actions

import (
	"context"

	"go.uber.org/zap"

	"classd/internal/classroom"
	"classd/internal/gateway"
	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// ClientConn is the view of a connection the router needs: the
// authenticated binding plus the write side for unicast replies.
type ClientConn interface {
	interfaces.Conn
	ClassroomID() string
	UserID() string
	Role() types.Role
}

// Router dispatches decoded envelopes against session state. Dropped
// envelopes (bad payload, missing reference, permission miss) are silent
// toward the client and logged at warn; nothing here is allowed to
// escalate past the dispatch boundary.
type Router struct {
	registry *classroom.Registry
	gateway  *gateway.Gateway
	limiter  *RateLimiter
	log      *zap.Logger
}

// NewRouter creates an action router.
func NewRouter(registry *classroom.Registry, gw *gateway.Gateway, log *zap.Logger) *Router {
	if log == nil {
		log = zap.NewNop()
	}
	return &Router{
		registry: registry,
		gateway:  gw,
		limiter:  NewRateLimiter(),
		log:      log,
	}
}

// Dispatch applies one envelope. The switch is exhaustive over the
// action set; server-to-client codes arriving inbound are ignored.
func (r *Router) Dispatch(ctx context.Context, conn ClientConn, env *types.Envelope) {
	if !env.Action.IsValid() {
		r.drop(conn, env, ErrUnknownAction)
		return
	}
	if !r.limiter.Allow(conn.UserID()) {
		r.drop(conn, env, ErrRateLimited)
		return
	}

	var err error
	switch env.Action {
	case types.ActionJoin:
		err = r.handleJoin(conn)
	case types.ActionTeacherJoin:
		err = r.handleTeacherJoin(conn)
	case types.ActionCodeChange:
		err = r.handleCodeChange(conn, env)
	case types.ActionGetData:
		err = r.handleGetData(conn, env)
	case types.ActionAssignmentCreate:
		err = r.handleAssignmentCreate(conn, env)
	case types.ActionLockCode:
		err = r.handleSetEditable(conn, false)
	case types.ActionUnlockCode:
		err = r.handleSetEditable(conn, true)
	case types.ActionClassroomDeleted:
		err = r.handleClassroomDeleted(conn)
	case types.ActionSubmitAssignment:
		err = r.handleSubmit(conn, env)
	case types.ActionGradeAssignment:
		err = r.handleGrade(conn, env)
	case types.ActionNone, types.ActionSyncData, types.ActionLeave:
		// Server-to-client codes; nothing to apply inbound.
		err = ErrUnknownAction
	}
	if err != nil {
		r.drop(conn, env, err)
	}
}

func (r *Router) handleJoin(conn ClientConn) error {
	if conn.Role() != types.RoleStudent {
		return ErrWrongRole
	}
	sess := r.registry.GetOrCreate(conn.ClassroomID())
	res, err := sess.JoinStudent(conn.UserID(), conn)
	if err != nil {
		return err
	}

	sync, err := types.NewEnvelope(types.ActionSyncData, res.Sync)
	if err != nil {
		return err
	}
	r.gateway.Unicast(conn, sync)

	notice, err := types.NewEnvelope(types.ActionJoin, res.Sync.Self)
	if err != nil {
		return err
	}
	r.gateway.SendTo(res.Others, notice)

	r.log.Info("student joined",
		zap.String("classroom", conn.ClassroomID()),
		zap.String("user", conn.UserID()),
		zap.Bool("created", res.Created))
	return nil
}

func (r *Router) handleTeacherJoin(conn ClientConn) error {
	if conn.Role() != types.RoleTeacher {
		return ErrWrongRole
	}
	sess := r.registry.GetOrCreate(conn.ClassroomID())
	res, err := sess.JoinTeacher(conn.UserID(), conn)
	if err != nil {
		return err
	}

	sync, err := types.NewEnvelope(types.ActionSyncData, res.Sync)
	if err != nil {
		return err
	}
	r.gateway.Unicast(conn, sync)

	r.log.Info("teacher joined",
		zap.String("classroom", conn.ClassroomID()),
		zap.String("user", conn.UserID()))
	return nil
}

func (r *Router) handleCodeChange(conn ClientConn, env *types.Envelope) error {
	var data types.CodeChangeData
	if err := env.DecodeData(&data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	res, err := sess.ApplyCodeChange(conn.UserID(), data)
	if err != nil {
		return err
	}
	out, err := types.NewEnvelope(types.ActionCodeChange, res.Data)
	if err != nil {
		return err
	}
	r.gateway.SendTo(res.Recipients, out)
	return nil
}

func (r *Router) handleGetData(conn ClientConn, env *types.Envelope) error {
	var req types.GetDataRequest
	if err := env.DecodeData(&req); err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	resp, err := sess.GetData(conn.UserID(), req)
	if err != nil {
		return err
	}
	out, err := types.NewEnvelope(types.ActionGetData, resp)
	if err != nil {
		return err
	}
	r.gateway.Unicast(conn, out)
	return nil
}

func (r *Router) handleAssignmentCreate(conn ClientConn, env *types.Envelope) error {
	if conn.Role() != types.RoleTeacher {
		return ErrWrongRole
	}
	var data types.AssignmentCreateData
	if err := env.DecodeData(&data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	res, err := sess.CreateAssignment(data)
	if err != nil {
		return err
	}

	for _, delivery := range res.PerStudent {
		out, err := types.NewEnvelope(types.ActionAssignmentCreate, delivery.Data)
		if err != nil {
			continue
		}
		r.gateway.Unicast(delivery.Conn, out)
	}

	teacherView, err := types.NewEnvelope(types.ActionAssignmentCreate, res.Teacher)
	if err != nil {
		return err
	}
	r.gateway.Unicast(conn, teacherView)

	r.log.Info("assignment created",
		zap.String("classroom", conn.ClassroomID()),
		zap.String("assignment", res.Assignment.ID),
		zap.String("title", res.Assignment.Title))
	return nil
}

func (r *Router) handleSetEditable(conn ClientConn, editable bool) error {
	if conn.Role() != types.RoleTeacher {
		return ErrWrongRole
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	students := sess.SetEditable(editable)

	action := types.ActionLockCode
	if editable {
		action = types.ActionUnlockCode
	}
	out, err := types.NewEnvelope(action, nil)
	if err != nil {
		return err
	}
	r.gateway.SendTo(students, out)
	return nil
}

func (r *Router) handleClassroomDeleted(conn ClientConn) error {
	if conn.Role() != types.RoleTeacher {
		return ErrWrongRole
	}
	if _, ok := r.registry.Get(conn.ClassroomID()); !ok {
		return ErrSessionNotFound
	}

	// Broadcast the terminal notice first, then drop the session.
	out, err := types.NewEnvelope(types.ActionClassroomDeleted, nil)
	if err != nil {
		return err
	}
	r.gateway.BroadcastStudents(conn.ClassroomID(), out)
	r.registry.Remove(conn.ClassroomID())

	r.log.Info("classroom deleted",
		zap.String("classroom", conn.ClassroomID()),
		zap.String("user", conn.UserID()))
	return nil
}

func (r *Router) handleSubmit(conn ClientConn, env *types.Envelope) error {
	if conn.Role() != types.RoleStudent {
		return ErrWrongRole
	}
	var data types.SubmitAssignmentData
	if err := env.DecodeData(&data); err != nil {
		return err
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	res, err := sess.Submit(conn.UserID(), data.AssignmentID)
	if err != nil {
		return err
	}
	out, err := types.NewEnvelope(types.ActionSubmitAssignment, res.Notice)
	if err != nil {
		return err
	}
	r.gateway.Unicast(res.TeacherConn, out)
	return nil
}

func (r *Router) handleGrade(conn ClientConn, env *types.Envelope) error {
	if conn.Role() != types.RoleTeacher {
		return ErrWrongRole
	}
	var data types.GradeAssignmentData
	if err := env.DecodeData(&data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}
	sess, ok := r.registry.Get(conn.ClassroomID())
	if !ok {
		return ErrSessionNotFound
	}
	res, err := sess.Grade(data)
	if err != nil {
		return err
	}
	out, err := types.NewEnvelope(types.ActionGradeAssignment, res.Notice)
	if err != nil {
		return err
	}
	r.gateway.Unicast(res.TargetConn, out)
	return nil
}

// drop records a silently ignored envelope. The sender receives nothing.
func (r *Router) drop(conn ClientConn, env *types.Envelope, err error) {
	r.log.Warn("envelope dropped",
		zap.String("classroom", conn.ClassroomID()),
		zap.String("user", conn.UserID()),
		zap.Int("action", int(env.Action)),
		zap.Error(err))
}
