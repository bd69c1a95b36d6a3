// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package state

import (
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// ErrSessionOrder is returned when a session that is not the innermost
	// open one is resolved.
	ErrSessionOrder  = errors.New("session is not the innermost open session")
	ErrSessionClosed = errors.New("session already resolved")
	ErrNoBlockLayer  = errors.New("no reversible block to undo")
	ErrOpenSessions  = errors.New("sessions are still open")
	ErrRevision      = errors.New("revision out of range")

	revisionKey = []byte("revision")
)

// Store is a layered key/value state. The base layer holds irreversible state
// and is flushed to the underlying database. Each reversible block adds a
// layer on top of it, and open sessions are layered above the blocks.
//
// Store is not safe for concurrent use.
type Store struct {
	db   database.Database
	base *versiondb.Database

	baseRevision uint64
	blocks       []*versiondb.Database
	sessions     []*Session
}

// Session is one checkpoint. Exactly one of Squash, Undo or Push must be
// called on it, and only while it is the innermost open session.
type Session struct {
	store *Store
	db    *versiondb.Database
	done  bool
}

// New opens the store over [db], reading the persisted revision.
func New(db database.Database) (*Store, error) {
	s := &Store{
		db:   db,
		base: versiondb.New(db),
	}
	raw, err := s.base.Get(revisionKey)
	switch {
	case err == database.ErrNotFound:
	case err != nil:
		return nil, fmt.Errorf("failed to read revision: %w", err)
	default:
		if s.baseRevision, err = database.ParseUInt64(raw); err != nil {
			return nil, fmt.Errorf("failed to parse revision: %w", err)
		}
	}
	return s, nil
}

// Revision is the number of the last block pushed to the store.
func (s *Store) Revision() uint64 { return s.baseRevision + uint64(len(s.blocks)) }

// BaseRevision is the revision persisted in the underlying database.
func (s *Store) BaseRevision() uint64 { return s.baseRevision }

// Depth is the number of open sessions.
func (s *Store) Depth() int { return len(s.sessions) }

// DB returns the innermost view of the state.
func (s *Store) DB() database.Database { return s.top() }

func (s *Store) top() *versiondb.Database {
	if n := len(s.sessions); n > 0 {
		return s.sessions[n-1].db
	}
	if n := len(s.blocks); n > 0 {
		return s.blocks[n-1]
	}
	return s.base
}

// Begin opens a session on top of the current view.
func (s *Store) Begin() *Session {
	sess := &Session{store: s, db: versiondb.New(s.top())}
	s.sessions = append(s.sessions, sess)
	return sess
}

// DB is the view of state inside the session.
func (sess *Session) DB() database.Database { return sess.db }

func (sess *Session) pop() error {
	if sess.done {
		return ErrSessionClosed
	}
	s := sess.store
	if n := len(s.sessions); n == 0 || s.sessions[n-1] != sess {
		return ErrSessionOrder
	}
	s.sessions = s.sessions[:len(s.sessions)-1]
	sess.done = true
	return nil
}

// Squash merges the session into the enclosing session or block.
func (sess *Session) Squash() error {
	if err := sess.pop(); err != nil {
		return err
	}
	return sess.db.Commit()
}

// Undo discards every change made inside the session.
func (sess *Session) Undo() error {
	if err := sess.pop(); err != nil {
		return err
	}
	sess.db.Abort()
	return nil
}

// Push turns the outermost session into a new reversible block, raising the
// revision by one.
func (sess *Session) Push() error {
	s := sess.store
	if len(s.sessions) != 1 {
		return fmt.Errorf("%w: push with %d open sessions", ErrSessionOrder, len(s.sessions))
	}
	if err := sess.pop(); err != nil {
		return err
	}
	s.blocks = append(s.blocks, sess.db)
	return nil
}

// Done reports whether the session has been resolved.
func (sess *Session) Done() bool { return sess.done }

// UndoBlock discards the newest reversible block.
func (s *Store) UndoBlock() error {
	if len(s.sessions) != 0 {
		return ErrOpenSessions
	}
	n := len(s.blocks)
	if n == 0 {
		return ErrNoBlockLayer
	}
	s.blocks[n-1].Abort()
	s.blocks = s.blocks[:n-1]
	return nil
}

// Commit makes every block up to and including [revision] irreversible and
// flushes it to the underlying database.
func (s *Store) Commit(revision uint64) error {
	if revision < s.baseRevision || revision > s.Revision() {
		return fmt.Errorf("%w: commit %d with base %d and head %d", ErrRevision, revision, s.baseRevision, s.Revision())
	}
	for s.baseRevision < revision {
		layer := s.blocks[0]
		if err := layer.Commit(); err != nil {
			return fmt.Errorf("failed to merge block layer: %w", err)
		}
		s.blocks = s.blocks[1:]
		s.baseRevision++

		// re-parent whatever was layered on the merged block
		var next *versiondb.Database
		switch {
		case len(s.blocks) > 0:
			next = s.blocks[0]
		case len(s.sessions) > 0:
			next = s.sessions[0].db
		}
		if next != nil {
			if err := next.SetDatabase(s.base); err != nil {
				return fmt.Errorf("failed to re-parent layer: %w", err)
			}
		}
	}
	if err := s.base.Put(revisionKey, database.PackUInt64(s.baseRevision)); err != nil {
		return fmt.Errorf("failed to write revision: %w", err)
	}
	return s.base.Commit()
}

// Compact compacts the underlying database.
func (s *Store) Compact() error {
	return s.db.Compact(nil, nil)
}

// Close discards reversible state and closes the base layer. The underlying
// database is left open.
func (s *Store) Close() error {
	for i := len(s.sessions) - 1; i >= 0; i-- {
		s.sessions[i].db.Abort()
		s.sessions[i].done = true
	}
	s.sessions = nil
	for _, layer := range s.blocks {
		layer.Abort()
	}
	s.blocks = nil
	s.base.Abort()
	return s.base.Close()
}
