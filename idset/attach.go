package idset

import (
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

// Every body gets a process-unique serial at allocation. The serial is
// the basis of the Set's SQL-visible table name and the argument the
// virtual-table module resolves back to the body, so it must stay stable
// for the body's whole lifetime regardless of how the owning handle is
// copied or swapped.
var bodySerial atomic.Uint64

// registry maps live, attached bodies by serial so Create/Connect
// callbacks issued on any pooled connection can rebind to the right
// storage. Registration tracks attachment: Attach adds, Detach removes.
var registry = struct {
	mu     sync.RWMutex
	bodies map[uint64]*body
}{bodies: make(map[uint64]*body)}

func newBody() *body { return &body{serial: bodySerial.Add(1)} }

func registerBody(b *body) {
	registry.mu.Lock()
	registry.bodies[b.serial] = b
	registry.mu.Unlock()
}

func unregisterBody(b *body) {
	registry.mu.Lock()
	delete(registry.bodies, b.serial)
	registry.mu.Unlock()
}

func lookupBody(serial uint64) *body {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.bodies[serial]
}

func (b *body) sqlName() string { return fmt.Sprintf("idset_%x", b.serial) }

// SQLName returns the Set's SQL-visible table name. The name is derived
// from the body serial and is stable across content copies and Swap, so
// statements prepared against it stay valid for the Set's lifetime.
func (s *Set) SQLName() string { return s.body.sqlName() }

// String returns the SQL-visible table name, letting a Set be
// interpolated directly into ad hoc SQL text with fmt verbs.
func (s *Set) String() string { return s.SQLName() }

// DB returns the attached database handle, or nil when unattached.
func (s *Set) DB() *sql.DB { return s.body.db }

// isClosedErr matches database/sql's closed-handle failure, which both
// Attach and Detach tolerate.
func isClosedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "database is closed")
}

// Attach binds the Set to db, making it visible there as the virtual
// table named SQLName. Attaching to the current handle is a no-op; any
// prior attachment is dropped first. A Set can be attached to at most one
// database handle at a time.
//
// The table is created in the main schema so every pooled connection can
// see it; in-memory databases should therefore be opened with a single
// connection (see engine.OpenSingle). Attaching to a closed handle
// records the attachment without creating the table.
func (s *Set) Attach(db *sql.DB) error {
	b := s.body
	if db == b.db {
		return nil
	}
	if b.db != nil {
		if err := s.Detach(); err != nil {
			return err
		}
	}
	if db == nil {
		return nil
	}

	b.db = db
	registerBody(b)
	if err := RegisterModule(db); err != nil {
		if !isClosedErr(err) {
			b.db = nil
			unregisterBody(b)
			return fmt.Errorf("idset: attach %s: %w", b.sqlName(), err)
		}
		return nil
	}
	stmt := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS main.%s USING idset(%d)",
		b.sqlName(), b.serial)
	if _, err := db.Exec(stmt); err != nil && !isClosedErr(err) {
		b.db = nil
		unregisterBody(b)
		return fmt.Errorf("idset: attach %s: %w", b.sqlName(), err)
	}
	return nil
}

// Detach drops the Set's table registration and clears the attachment.
// It is a no-op on an unattached Set and tolerates a handle that has been
// closed since attachment.
func (s *Set) Detach() error {
	b := s.body
	if b.db == nil {
		return nil
	}
	db := b.db
	b.db = nil
	unregisterBody(b)
	_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS main.%s", b.sqlName()))
	if err != nil && !isClosedErr(err) {
		return fmt.Errorf("idset: detach %s: %w", b.sqlName(), err)
	}
	return nil
}

// Swap exchanges the contents of two Sets while leaving each Set's name
// and attachment slot in place: statements prepared against either name
// before the Swap keep seeing that name's (now swapped) contents, as long
// as both Sets share the same database handle. When the handles differ,
// the Sets exchange attachments as well.
func (s *Set) Swap(other *Set) error {
	if s == other || s.body == other.body {
		return nil
	}
	// Swapping the body pointers instead would leave already-prepared
	// statements reading the wrong set, so only the contents move.
	s.body.items, other.body.items = other.body.items, s.body.items

	db, otherDB := s.body.db, other.body.db
	if db == otherDB {
		return nil
	}
	if err := other.Detach(); err != nil {
		return err
	}
	if db != nil {
		if err := other.Attach(db); err != nil {
			return err
		}
	}
	if err := s.Detach(); err != nil {
		return err
	}
	if otherDB != nil {
		if err := s.Attach(otherDB); err != nil {
			return err
		}
	}
	return nil
}

// CopyFrom replaces s's contents with other's. When s is unattached and
// other is attached, s attaches to other's database handle first;
// otherwise attachment state is left alone.
func (s *Set) CopyFrom(other *Set) error {
	if s == other || s.body == other.body {
		return nil
	}
	if s.body.db == nil && other.body.db != nil {
		if err := s.Attach(other.body.db); err != nil {
			return err
		}
	}
	s.body.items = slices.Clone(other.body.items)
	return nil
}

// Clone returns a new Set with its own name and body holding a copy of
// s's contents, attached to s's database handle when s is attached.
func (s *Set) Clone() (*Set, error) {
	dst := New()
	if err := dst.CopyFrom(s); err != nil {
		return nil, err
	}
	return dst, nil
}
