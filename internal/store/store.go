/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"sync"
	"time"

	"github.com/varbridge/varbridge/internal/log"
	"github.com/varbridge/varbridge/internal/vartype"
)

// DefaultTTL is the session idle timeout used when a caller does not
// specify one, per §6's environment table (SESSION_DEFAULT_TTL).
const DefaultTTL = 3600 * time.Second

// Clock is injected so tests can control time deterministically; production
// code uses realClock. This mirrors the teacher's habit of threading a
// clock interface through anything TTL-driven rather than calling
// time.Now() inline everywhere.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Store is the single authoritative mutator of variable state (§5). A
// per-session lock protects each session's variable table; a store-wide
// RWMutex protects only the top-level session map, so unrelated sessions
// never contend with each other.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*session

	registry *vartype.Registry
	notifier Notifier
	clock    Clock
	log      *log.Logger

	defaultTTL time.Duration
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithNotifier wires the observer manager (or any Notifier) into the
// store so mutations fan out update events, per the C3 -> C4 data flow in
// §2.
func WithNotifier(n Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithClock overrides the store's time source, for deterministic TTL
// tests.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithDefaultTTL overrides DefaultTTL.
func WithDefaultTTL(d time.Duration) Option {
	return func(s *Store) { s.defaultTTL = d }
}

// WithLogger attaches a logger; a nil logger is valid and silences all
// store-level logging.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.log = l }
}

// New builds an empty Store with the closed vartype registry wired in.
func New(opts ...Option) *Store {
	s := &Store{
		sessions:   make(map[string]*session),
		registry:   vartype.NewRegistry(),
		notifier:   noopNotifier{},
		clock:      realClock{},
		defaultTTL: DefaultTTL,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Store) now() time.Time { return s.clock.Now() }

// CreateResult reports whether CreateSession created a new session or
// found an existing live one (§4.3: "idempotent for an existing live id...
// does not reset").
type CreateResult int

const (
	SessionCreated CreateResult = iota
	SessionAlreadyExists
)

// CreateSession creates session id with the given ttl (DefaultTTL if ttl
// <= 0) and tags (SPEC_FULL.md §3's free-form session labels). Calling it
// again for a live id is idempotent and does not reset last_activity_at,
// the ttl, or the tags already stored on it.
func (s *Store) CreateSession(id string, ttl time.Duration, tags map[string]string) (CreateResult, error) {
	if id == "" {
		return 0, vartype.NewError(vartype.KindValidationFailed, "session id must not be empty")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		now := s.now()
		sess.mu.Lock()
		live := !sess.expired(now)
		sess.mu.Unlock()
		if live {
			return SessionAlreadyExists, nil
		}
		// Expired but not yet swept: replace it with a fresh session.
		delete(s.sessions, id)
	}
	s.sessions[id] = newSession(id, ttl, tags, s.now())
	return SessionCreated, nil
}

// ensureSession implicitly creates a session on first use, per §4.3's
// "Created by explicit request or implicit first-use." ttl and tags are
// only applied when the session does not already exist live; an implicit
// create against an existing session is a pure lookup.
func (s *Store) ensureSession(id string, ttl time.Duration, tags map[string]string) (*session, error) {
	if id == "" {
		return nil, vartype.NewError(vartype.KindValidationFailed, "session id must not be empty")
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()

	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if ok {
		sess.mu.Lock()
		expired := sess.expired(now)
		sess.mu.Unlock()
		if !expired {
			return sess, nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		existing.mu.Lock()
		expired := existing.expired(s.now())
		existing.mu.Unlock()
		if !expired {
			return existing, nil
		}
		delete(s.sessions, id)
	}
	sess = newSession(id, ttl, tags, s.now())
	s.sessions[id] = sess
	return sess, nil
}

// lookupSession fetches a live session without implicit creation, failing
// with SessionNotFound/SessionExpired. Every non-create operation goes
// through this so TTL expiry is enforced lazily on every access, per §9's
// "lazy check on every access is correct."
func (s *Store) lookupSession(id string) (*session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, vartype.NewError(vartype.KindSessionNotFound, "session %q not found", id)
	}
	now := s.now()
	sess.mu.Lock()
	expired := sess.expired(now)
	sess.mu.Unlock()
	if expired {
		s.expireSession(id)
		return nil, vartype.NewError(vartype.KindSessionExpired, "session %q expired", id)
	}
	return sess, nil
}

// TouchSession updates last_activity_at; called implicitly by every other
// operation, but exposed directly for a bare keepalive.
func (s *Store) TouchSession(id string) error {
	sess, err := s.lookupSession(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.touch(s.now())
	sess.mu.Unlock()
	return nil
}

// DeleteSession removes a session, all its variables, and tears down its
// observers.
func (s *Store) DeleteSession(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return vartype.NewError(vartype.KindSessionNotFound, "session %q not found", id)
	}
	s.notifier.SessionTornDown(sess.id, EventDeleted)
	return nil
}

// GetSessionInfo returns the read-only info view of a live session.
func (s *Store) GetSessionInfo(id string) (SessionInfo, error) {
	sess, err := s.lookupSession(id)
	if err != nil {
		return SessionInfo{}, err
	}
	sess.mu.Lock()
	sess.touch(s.now())
	info := sess.info()
	sess.mu.Unlock()
	return info, nil
}

// PeekSessionInfo is GetSessionInfo without the touch: used by read-only
// observers (the introspection feed) that must not keep a session alive
// merely by looking at it.
func (s *Store) PeekSessionInfo(id string) (SessionInfo, error) {
	sess, err := s.lookupSession(id)
	if err != nil {
		return SessionInfo{}, err
	}
	sess.mu.Lock()
	info := sess.info()
	sess.mu.Unlock()
	return info, nil
}

// SessionIDs returns a snapshot of all live session ids, used by the TTL
// sweeper and by introspection.
func (s *Store) SessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}

func (s *Store) expireSession(id string) {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		if s.log != nil {
			s.log.Infof("session %s expired after %s idle", id, sess.ttl)
		}
		s.notifier.SessionTornDown(id, EventSessionExpired)
	}
}
