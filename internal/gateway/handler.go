package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"classd/internal/config"
	"classd/pkg/interfaces"
	"classd/pkg/types"
)

// Dispatcher applies one inbound envelope to session state. Implemented
// by the action router; injected here to keep the transport layer free
// of state-machine logic.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn *Connection, env *types.Envelope)
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(ctx context.Context, conn *Connection, env *types.Envelope)

func (f DispatchFunc) Dispatch(ctx context.Context, conn *Connection, env *types.Envelope) {
	f(ctx, conn, env)
}

// Handler authenticates and upgrades inbound websocket requests and runs
// the per-connection read pump. Identity and classroom ownership are
// resolved exactly once per connection, before the upgrade.
type Handler struct {
	gateway    *Gateway
	resolver   interfaces.IdentityResolver
	catalog    interfaces.Catalog
	dispatcher Dispatcher
	wsCfg      config.WebSocketConfig
	upgrader   websocket.Upgrader
	log        *zap.Logger
}

// NewHandler wires the upgrade path.
func NewHandler(gateway *Gateway, resolver interfaces.IdentityResolver, catalog interfaces.Catalog, dispatcher Dispatcher, wsCfg config.WebSocketConfig, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		gateway:    gateway,
		resolver:   resolver,
		catalog:    catalog,
		dispatcher: dispatcher,
		wsCfg:      wsCfg,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: wsCfg.HandshakeTimeout,
			// Origin checking is a deployment concern; tighten behind a proxy.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: log,
	}
}

// HandleWebSocket serves GET /ws/{classroom_id}. The bearer credential
// comes from the token query parameter or the Authorization header.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	classroomID := r.PathValue("classroom_id")
	if !types.IsValidClassroomID(classroomID) {
		http.Error(w, "invalid classroom id", http.StatusBadRequest)
		return
	}

	identity, err := h.resolver.Resolve(r.Context(), bearerToken(r))
	if err != nil {
		http.Error(w, "invalid credential", http.StatusUnauthorized)
		return
	}

	record, err := h.catalog.Classroom(r.Context(), classroomID)
	if err != nil {
		if err == interfaces.ErrClassroomNotFound {
			http.Error(w, "classroom not found", http.StatusNotFound)
		} else {
			http.Error(w, "classroom lookup failed", http.StatusInternalServerError)
		}
		return
	}

	// The teacher role is only granted to the classroom's own teacher.
	role := identity.Role
	if role == types.RoleTeacher && record.TeacherID != identity.UserID {
		http.Error(w, "not the teacher of this classroom", http.StatusForbidden)
		return
	}
	if !types.IsValidRole(role) {
		role = types.RoleStudent
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConnection(ws, h.wsCfg.SendBuffer, h.wsCfg.WriteTimeout)
	conn.bind(classroomID, identity.UserID, role)
	h.gateway.Accept(classroomID, conn)

	go h.readPump(conn)
}

// readPump processes inbound envelopes in arrival order for one
// connection and tears the connection down when the socket dies. A bad
// envelope, or a panic while applying one, never kills the pump.
func (h *Handler) readPump(conn *Connection) {
	defer func() {
		h.gateway.Disconnect(conn.ClassroomID(), conn)
		_ = conn.Close()
	}()

	if err := conn.conn.SetReadDeadline(time.Now().Add(h.wsCfg.ReadTimeout)); err != nil {
		return
	}
	conn.conn.SetPongHandler(func(string) error {
		return conn.conn.SetReadDeadline(time.Now().Add(h.wsCfg.ReadTimeout))
	})

	ticker := time.NewTicker(h.wsCfg.PingInterval)
	defer ticker.Stop()
	go func() {
		for {
			select {
			case <-ticker.C:
				if err := conn.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(h.wsCfg.WriteTimeout)); err != nil {
					return
				}
			case <-conn.ctx.Done():
				return
			}
		}
	}()

	for {
		messageType, data, err := conn.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Warn("websocket read error",
					zap.String("user", conn.UserID()), zap.Error(err))
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.handleEnvelope(conn, data)
	}
}

func (h *Handler) handleEnvelope(conn *Connection, data []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Error("panic while handling envelope",
				zap.String("classroom", conn.ClassroomID()),
				zap.String("user", conn.UserID()),
				zap.Any("panic", rec))
		}
	}()

	var env types.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.log.Warn("malformed envelope dropped",
			zap.String("classroom", conn.ClassroomID()),
			zap.String("user", conn.UserID()))
		return
	}

	// Envelopes may only act as the authenticated user.
	if env.UserID != "" && env.UserID != conn.UserID() {
		h.log.Warn("envelope user mismatch dropped",
			zap.String("claimed", env.UserID),
			zap.String("authenticated", conn.UserID()))
		return
	}
	env.UserID = conn.UserID()

	h.dispatcher.Dispatch(conn.ctx, conn, &env)
}

func bearerToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
