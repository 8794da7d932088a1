// Package catalog is the boundary to the external CRUD layer: the
// classroom/user records the session engine consults at
// connection-accept time, and the bearer-token identity resolver.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"classd/pkg/interfaces"
	"classd/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT 'student'
);
CREATE TABLE IF NOT EXISTS classrooms (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL DEFAULT '',
	teacher_id TEXT NOT NULL REFERENCES users(id)
);
`

// UserRecord is the catalog's view of a user.
type UserRecord struct {
	ID   string
	Name string
	Role types.Role
}

// Store backs the catalog with sqlite. Reads go straight to the pool;
// writes funnel through a single goroutine, which is what sqlite wants
// under concurrency.
type Store struct {
	db      *sql.DB
	writeCh chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	log     *zap.Logger
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

// NewStore opens the catalog database and bootstraps the schema.
func NewStore(path string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open catalog database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Second)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap catalog schema: %w", err)
	}

	s := &Store{
		db:      db,
		writeCh: make(chan writeOp, 100),
		done:    make(chan struct{}),
		log:     log,
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			op.result <- op.fn(s.db)
		case <-s.done:
			return
		}
	}
}

func (s *Store) executeWrite(fn func(*sql.DB) error) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	s.mu.RUnlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return ErrWriteTimeout
	case <-s.done:
		return ErrStoreClosed
	}
}

// Classroom looks up one classroom record.
func (s *Store) Classroom(ctx context.Context, classroomID string) (*interfaces.ClassroomRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, teacher_id FROM classrooms WHERE id = ?", classroomID)

	var rec interfaces.ClassroomRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.TeacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrClassroomNotFound
		}
		return nil, fmt.Errorf("query classroom: %w", err)
	}
	return &rec, nil
}

// User looks up one user record.
func (s *Store) User(ctx context.Context, userID string) (*UserRecord, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, role FROM users WHERE id = ?", userID)

	var rec UserRecord
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Role); err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &rec, nil
}

// UpsertUser inserts or replaces a user record.
func (s *Store) UpsertUser(ctx context.Context, rec *UserRecord) error {
	if !types.IsValidUserID(rec.ID) {
		return types.ErrInvalidUserID
	}
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO users (id, name, role) VALUES (?, ?, ?) "+
				"ON CONFLICT(id) DO UPDATE SET name = excluded.name, role = excluded.role",
			rec.ID, rec.Name, string(rec.Role))
		return err
	})
}

// UpsertClassroom inserts or replaces a classroom record.
func (s *Store) UpsertClassroom(ctx context.Context, rec *interfaces.ClassroomRecord) error {
	if !types.IsValidClassroomID(rec.ID) {
		return types.ErrInvalidClassroomID
	}
	return s.executeWrite(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			"INSERT INTO classrooms (id, name, teacher_id) VALUES (?, ?, ?) "+
				"ON CONFLICT(id) DO UPDATE SET name = excluded.name, teacher_id = excluded.teacher_id",
			rec.ID, rec.Name, rec.TeacherID)
		return err
	})
}

// Close stops the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
