// Package interfaces defines the seams between the session engine and
// its collaborators: the live connection a participant is bound to, the
// identity resolver that turns a bearer credential into a user, and the
// classroom catalog owned by the external CRUD layer.
package interfaces

import (
	"context"

	"classd/pkg/types"
)

// Conn is the write side of one live participant connection. Sends are
// best-effort; a closed connection returns an error that callers swallow
// per recipient.
type Conn interface {
	WriteEnvelope(env *types.Envelope) error
	Close() error
}

// Identity is what the resolver extracts from a bearer credential.
type Identity struct {
	UserID string
	Role   types.Role
}

// IdentityResolver validates a bearer credential once, at
// connection-accept time.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (*Identity, error)
}

// ClassroomRecord is the catalog's view of a classroom.
type ClassroomRecord struct {
	ID        string
	Name      string
	TeacherID string
}

// Catalog confirms a classroom exists and who teaches it. Consulted
// exactly once per connection, at accept time.
type Catalog interface {
	Classroom(ctx context.Context, classroomID string) (*ClassroomRecord, error)
}
