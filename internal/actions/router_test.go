package actions

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classd/internal/classroom"
	"classd/internal/gateway"
	"classd/pkg/types"
)

// fakeClient is a scriptable connection bound to a classroom and user.
type fakeClient struct {
	mu        sync.Mutex
	envs      []*types.Envelope
	classroom string
	user      string
	role      types.Role
}

func (c *fakeClient) WriteEnvelope(env *types.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = append(c.envs, env)
	return nil
}

func (c *fakeClient) Close() error        { return nil }
func (c *fakeClient) ClassroomID() string { return c.classroom }
func (c *fakeClient) UserID() string      { return c.user }
func (c *fakeClient) Role() types.Role    { return c.role }

func (c *fakeClient) received() []*types.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Envelope, len(c.envs))
	copy(out, c.envs)
	return out
}

func (c *fakeClient) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.envs = nil
}

func newTestRouter() (*Router, *classroom.Registry) {
	registry := classroom.NewRegistry(nil)
	gw := gateway.NewGateway(registry, nil)
	return NewRouter(registry, gw, nil), registry
}

func teacherClient(classroomID, userID string) *fakeClient {
	return &fakeClient{classroom: classroomID, user: userID, role: types.RoleTeacher}
}

func studentClient(classroomID, userID string) *fakeClient {
	return &fakeClient{classroom: classroomID, user: userID, role: types.RoleStudent}
}

func envelope(t *testing.T, action types.ActionCode, userID string, data any) *types.Envelope {
	t.Helper()
	env := &types.Envelope{Action: action, UserID: userID}
	if data != nil {
		raw, err := json.Marshal(data)
		require.NoError(t, err)
		env.Data = raw
	}
	return env
}

func decode[T any](t *testing.T, env *types.Envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestTeacherThenStudentJoin(t *testing.T) {
	router, _ := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))

	envs := t1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionSyncData, envs[0].Action)
	sync := decode[types.SyncData](t, envs[0])
	assert.Empty(t, sync.Users)
	assert.Equal(t, "t1", sync.Self.UserID)
	assert.Equal(t, types.RoleTeacher, sync.Self.Role)
	t1.reset()

	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))

	envs = s1.received()
	require.Len(t, envs, 1)
	require.Equal(t, types.ActionSyncData, envs[0].Action)
	sync = decode[types.SyncData](t, envs[0])
	assert.Empty(t, sync.Users) // no other online students
	require.NotNil(t, sync.Teacher)
	assert.Equal(t, "t1", sync.Teacher.UserID)
	assert.False(t, sync.Session.Editable)

	// The teacher hears the join through broadcastExcept.
	envs = t1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionJoin, envs[0].Action)
	notice := decode[types.ParticipantInfo](t, envs[0])
	assert.Equal(t, "s1", notice.UserID)
	assert.Equal(t, types.StatusOnline, notice.Status)
}

func TestAssignmentCreateFanOut(t *testing.T) {
	router, _ := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	s2 := studentClient("C1", "s2")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	router.Dispatch(ctx, s2, envelope(t, types.ActionJoin, "s2", nil))
	t1.reset()
	s1.reset()
	s2.reset()

	router.Dispatch(ctx, t1, envelope(t, types.ActionAssignmentCreate, "t1", types.AssignmentCreateData{
		Title:       "Ex1",
		Description: "write a loop",
		Code:        "for i in range(3):",
	}))

	for _, s := range []*fakeClient{s1, s2} {
		envs := s.received()
		require.Len(t, envs, 1)
		assert.Equal(t, types.ActionAssignmentCreate, envs[0].Action)
		data := decode[types.AssignmentCreatedStudent](t, envs[0])
		assert.Equal(t, "Ex1", data.Assignment.Title)
		assert.Equal(t, types.SubmissionNotStarted, data.Submission.Status)
	}

	envs := t1.received()
	require.Len(t, envs, 1)
	aggregate := decode[types.AssignmentCreatedTeacher](t, envs[0])
	assert.Equal(t, "Ex1", aggregate.Assignment.Title)
	assert.Len(t, aggregate.Students, 2)
}

func TestSubmitReachesOnlyTeacher(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	router.Dispatch(ctx, t1, envelope(t, types.ActionAssignmentCreate, "t1", types.AssignmentCreateData{Title: "Ex1"}))

	sess, ok := registry.Get("C1")
	require.True(t, ok)
	info, ok := sess.Participant("s1")
	require.True(t, ok)
	require.Len(t, info.Submissions, 1)
	aid := info.Submissions[0].AssignmentID
	t1.reset()
	s1.reset()

	router.Dispatch(ctx, s1, envelope(t, types.ActionSubmitAssignment, "s1", types.SubmitAssignmentData{AssignmentID: aid}))

	envs := t1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionSubmitAssignment, envs[0].Action)
	notice := decode[types.SubmitAssignmentNotice](t, envs[0])
	assert.Equal(t, "s1", notice.UserID)
	assert.Equal(t, types.SubmissionSubmitted, notice.Submission.Status)

	assert.Empty(t, s1.received()) // submitter hears nothing back
}

func TestGradeAppendsHistory(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	router.Dispatch(ctx, t1, envelope(t, types.ActionAssignmentCreate, "t1", types.AssignmentCreateData{Title: "Ex1"}))

	sess, _ := registry.Get("C1")
	info, _ := sess.Participant("s1")
	aid := info.Submissions[0].AssignmentID
	s1.reset()

	router.Dispatch(ctx, t1, envelope(t, types.ActionGradeAssignment, "t1", types.GradeAssignmentData{
		Target: "s1", AssignmentID: aid, Grade: 90, Feedback: "good",
	}))

	envs := s1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionGradeAssignment, envs[0].Action)
	notice := decode[types.GradeAssignmentNotice](t, envs[0])
	require.Len(t, notice.Submission.GradeHistory, 1)
	assert.Equal(t, 90.0, notice.Submission.GradeHistory[0].Grade)
	assert.Equal(t, "good", notice.Submission.GradeHistory[0].Feedback)
	assert.Equal(t, types.SubmissionGraded, notice.Submission.Status)

	router.Dispatch(ctx, t1, envelope(t, types.ActionGradeAssignment, "t1", types.GradeAssignmentData{
		Target: "s1", AssignmentID: aid, Grade: 95, Feedback: "better",
	}))

	envs = s1.received()
	require.Len(t, envs, 2)
	notice = decode[types.GradeAssignmentNotice](t, envs[1])
	require.Len(t, notice.Submission.GradeHistory, 2)
	assert.Equal(t, 90.0, notice.Submission.GradeHistory[0].Grade)
	assert.Equal(t, 95.0, notice.Submission.GradeHistory[1].Grade)
}

func TestLockUnlockBroadcastsToStudents(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	t1.reset()
	s1.reset()

	router.Dispatch(ctx, t1, envelope(t, types.ActionUnlockCode, "t1", nil))

	sess, _ := registry.Get("C1")
	assert.True(t, sess.Editable())
	envs := s1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionUnlockCode, envs[0].Action)
	assert.Empty(t, t1.received())

	router.Dispatch(ctx, t1, envelope(t, types.ActionLockCode, "t1", nil))
	assert.False(t, sess.Editable())
	envs = s1.received()
	require.Len(t, envs, 2)
	assert.Equal(t, types.ActionLockCode, envs[1].Action)
}

func TestLockedStudentPublicWriteEmitsNothing(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	t1.reset()

	router.Dispatch(ctx, s1, envelope(t, types.ActionCodeChange, "s1", types.CodeChangeData{
		Scope: types.ScopePublic, Content: "sneaky",
	}))

	sess, _ := registry.Get("C1")
	assert.Equal(t, "", sess.PublicContent())
	assert.Empty(t, t1.received())
}

func TestClassroomDeletedNotifiesStudentsThenRemoves(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	s1.reset()

	router.Dispatch(ctx, t1, envelope(t, types.ActionClassroomDeleted, "t1", nil))

	envs := s1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionClassroomDeleted, envs[0].Action)

	_, ok := registry.Get("C1")
	assert.False(t, ok)
}

func TestStudentCannotUseTeacherActions(t *testing.T) {
	router, registry := newTestRouter()
	ctx := context.Background()

	t1 := teacherClient("C1", "t1")
	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, t1, envelope(t, types.ActionTeacherJoin, "t1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	t1.reset()
	s1.reset()

	router.Dispatch(ctx, s1, envelope(t, types.ActionAssignmentCreate, "s1", types.AssignmentCreateData{Title: "Nope"}))
	router.Dispatch(ctx, s1, envelope(t, types.ActionClassroomDeleted, "s1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionGradeAssignment, "s1", types.GradeAssignmentData{Target: "s1", AssignmentID: "a", Grade: 100}))
	router.Dispatch(ctx, s1, envelope(t, types.ActionUnlockCode, "s1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionLockCode, "s1", nil))

	assert.Empty(t, t1.received())
	assert.Empty(t, s1.received())
	sess, ok := registry.Get("C1")
	require.True(t, ok)
	assert.False(t, sess.Editable()) // the unlock attempt changed nothing
}

func TestUnknownAndServerOnlyActionsIgnored(t *testing.T) {
	router, _ := newTestRouter()
	ctx := context.Background()

	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	s1.reset()

	router.Dispatch(ctx, s1, &types.Envelope{Action: types.ActionCode(99), UserID: "s1"})
	router.Dispatch(ctx, s1, envelope(t, types.ActionSyncData, "s1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionLeave, "s1", nil))

	assert.Empty(t, s1.received())
}

func TestMalformedPayloadDropped(t *testing.T) {
	router, _ := newTestRouter()
	ctx := context.Background()

	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	s1.reset()

	router.Dispatch(ctx, s1, &types.Envelope{
		Action: types.ActionCodeChange,
		UserID: "s1",
		Data:   json.RawMessage(`{"scope": 7}`),
	})
	assert.Empty(t, s1.received())
}

func TestGetDataRoundTrip(t *testing.T) {
	router, _ := newTestRouter()
	ctx := context.Background()

	s1 := studentClient("C1", "s1")
	router.Dispatch(ctx, s1, envelope(t, types.ActionJoin, "s1", nil))
	router.Dispatch(ctx, s1, envelope(t, types.ActionCodeChange, "s1", types.CodeChangeData{
		Scope: types.ScopePrivate, Content: "my draft",
	}))
	s1.reset()

	router.Dispatch(ctx, s1, envelope(t, types.ActionGetData, "s1", types.GetDataRequest{Scope: types.ScopePrivate}))

	envs := s1.received()
	require.Len(t, envs, 1)
	assert.Equal(t, types.ActionGetData, envs[0].Action)
	resp := decode[types.GetDataResponse](t, envs[0])
	require.NotNil(t, resp.Whiteboard)
	assert.Equal(t, "my draft", resp.Whiteboard.Content)
}
