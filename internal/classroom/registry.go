package classroom

import (
	"sync"

	"go.uber.org/zap"
)

// Registry owns the set of active classroom sessions. Sessions are
// created lazily on first join and removed only by explicit deletion;
// the registry lock covers the map, each session guards its own state.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	log      *zap.Logger
}

// NewRegistry creates an empty session registry.
func NewRegistry(log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		sessions: make(map[string]*Session),
		log:      log,
	}
}

// Get is a pure lookup; it never creates.
func (r *Registry) Get(classroomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[classroomID]
	return s, ok
}

// GetOrCreate returns the session for a classroom, creating it on first
// reference. Concurrent calls for the same id get the same instance.
func (r *Registry) GetOrCreate(classroomID string) *Session {
	r.mu.RLock()
	if s, ok := r.sessions[classroomID]; ok {
		r.mu.RUnlock()
		return s
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[classroomID]; ok {
		return s
	}
	s := newSession(classroomID)
	r.sessions[classroomID] = s
	r.log.Info("session created", zap.String("classroom", classroomID))
	return s
}

// Remove deletes the session. Notification is the caller's job; it must
// broadcast the deletion notice before calling Remove.
func (r *Registry) Remove(classroomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[classroomID]; !ok {
		return
	}
	delete(r.sessions, classroomID)
	r.log.Info("session removed", zap.String("classroom", classroomID))
}

// Stats reports registry totals for monitoring.
func (r *Registry) Stats() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	participants := 0
	online := 0
	for _, s := range r.sessions {
		total, on := s.Counts()
		participants += total
		online += on
	}
	return map[string]int{
		"active_sessions":     len(r.sessions),
		"participants":        participants,
		"online_participants": online,
	}
}
