package gateway

import (
	"go.uber.org/zap"

	"classd/internal/classroom"
	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// Gateway owns the send primitives over live classroom connections.
// Every send is best-effort: a recipient whose connection has closed is
// skipped with a log line and never aborts delivery to the rest.
type Gateway struct {
	registry *classroom.Registry
	log      *zap.Logger
}

// NewGateway creates a gateway over the session registry.
func NewGateway(registry *classroom.Registry, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{registry: registry, log: log}
}

// Accept registers a connection's interest in a classroom. No
// participant exists until the first JOIN or TEACHER_JOIN envelope.
func (g *Gateway) Accept(classroomID string, conn *Connection) {
	g.log.Info("connection accepted",
		zap.String("classroom", classroomID),
		zap.String("user", conn.UserID()),
		zap.String("role", string(conn.Role())))
}

// Disconnect marks the participant bound to conn offline and broadcasts
// a LEAVE notice to everyone else. Unknown connections are a no-op.
func (g *Gateway) Disconnect(classroomID string, conn *Connection) {
	sess, ok := g.registry.Get(classroomID)
	if !ok {
		return
	}
	res, ok := sess.Disconnect(conn)
	if !ok {
		return
	}
	env, err := types.NewEnvelope(types.ActionLeave, res.Notice)
	if err != nil {
		return
	}
	g.send(res.Others, env)
	g.log.Info("participant offline",
		zap.String("classroom", classroomID),
		zap.String("user", res.Notice.UserID))
}

// Unicast sends to exactly one connection, best-effort.
func (g *Gateway) Unicast(conn interfaces.Conn, env *types.Envelope) {
	if conn == nil {
		return
	}
	if err := conn.WriteEnvelope(env); err != nil {
		g.log.Debug("unicast dropped", zap.Int("action", int(env.Action)), zap.Error(err))
	}
}

// BroadcastAll sends to every online participant in the classroom.
func (g *Gateway) BroadcastAll(classroomID string, env *types.Envelope) {
	if sess, ok := g.registry.Get(classroomID); ok {
		g.send(sess.OnlineConns(), env)
	}
}

// BroadcastExcept sends to every online participant except the one
// bound to the given connection.
func (g *Gateway) BroadcastExcept(classroomID string, env *types.Envelope, except interfaces.Conn) {
	if sess, ok := g.registry.Get(classroomID); ok {
		g.send(sess.ConnsExcept(except), env)
	}
}

// BroadcastOnline is BroadcastAll under the name the protocol docs use;
// offline participants hold no connection to send to either way.
func (g *Gateway) BroadcastOnline(classroomID string, env *types.Envelope) {
	g.BroadcastAll(classroomID, env)
}

// BroadcastStudents sends to every online student.
func (g *Gateway) BroadcastStudents(classroomID string, env *types.Envelope) {
	if sess, ok := g.registry.Get(classroomID); ok {
		g.send(sess.StudentConns(), env)
	}
}

// SendTo delivers one envelope to each connection in a snapshot the
// session handed out under its lock.
func (g *Gateway) SendTo(conns []interfaces.Conn, env *types.Envelope) {
	g.send(conns, env)
}

func (g *Gateway) send(conns []interfaces.Conn, env *types.Envelope) {
	for _, conn := range conns {
		if err := conn.WriteEnvelope(env); err != nil {
			// One dead recipient never aborts the rest of the fan-out.
			g.log.Debug("broadcast recipient dropped",
				zap.Int("action", int(env.Action)), zap.Error(err))
		}
	}
}
