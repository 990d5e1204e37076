/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package store implements the session store (C3): a concurrent,
// TTL-managed registry of sessions, each holding a typed variable table
// with constraint validation and monotonic versioning, per §4.3.
package store

import (
	"sync"
	"time"

	"github.com/varbridge/varbridge/internal/vartype"
)

// Variable is a named, typed, versioned, constraint-checked cell within a
// session, per §3.
type Variable struct {
	ID            string
	Name          string
	Type          vartype.Type
	Value         interface{}
	Constraints   vartype.Constraints
	Metadata      map[string]string
	Version       int64
	CreatedAt     time.Time
	LastUpdatedAt time.Time
	Optimizing    bool

	// Source records which side registered the variable ("server" or
	// "client"), a debugging aid carried over from the original bridge
	// implementation (SPEC_FULL.md §3 supplement). It is set once by
	// RegisterVariable; updates do not change it. Never validated.
	Source string
}

// Clone returns a deep-enough copy safe to hand to a caller outside the
// store's lock: Metadata and Constraints are copied, Value is copied by
// reference (normalized values are either immutable scalars or slices we
// never mutate in place after validation).
func (v *Variable) Clone() *Variable {
	c := *v
	c.Metadata = cloneStringMap(v.Metadata)
	c.Constraints = cloneConstraints(v.Constraints)
	return &c
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneConstraints(c vartype.Constraints) vartype.Constraints {
	if c == nil {
		return nil
	}
	out := make(vartype.Constraints, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// session is the store's internal representation. Its lock guards every
// field below, including the variable table, so a single critical section
// can snapshot-and-register an observer atomically (see internal/observer).
type session struct {
	mu sync.Mutex

	id             string
	createdAt      time.Time
	lastActivityAt time.Time
	ttl            time.Duration
	tags           map[string]string

	byID   map[string]*Variable
	byName map[string]string // name -> id
}

func newSession(id string, ttl time.Duration, tags map[string]string, now time.Time) *session {
	return &session{
		id:             id,
		createdAt:      now,
		lastActivityAt: now,
		ttl:            ttl,
		tags:           cloneStringMap(tags),
		byID:           make(map[string]*Variable),
		byName:         make(map[string]string),
	}
}

func (s *session) expired(now time.Time) bool {
	return now.Sub(s.lastActivityAt) > s.ttl
}

func (s *session) touch(now time.Time) {
	s.lastActivityAt = now
}

// SessionInfo is the read-only, lock-free view of a session handed to
// callers outside the store.
type SessionInfo struct {
	ID             string
	CreatedAt      time.Time
	LastActivityAt time.Time
	TTL            time.Duration
	Tags           map[string]string
	VariableCount  int
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:             s.id,
		CreatedAt:      s.createdAt,
		LastActivityAt: s.lastActivityAt,
		TTL:            s.ttl,
		Tags:           cloneStringMap(s.tags),
		VariableCount:  len(s.byID),
	}
}
