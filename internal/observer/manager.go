/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package observer

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/varbridge/varbridge/internal/log"
	"github.com/varbridge/varbridge/internal/store"
)

// DefaultBufferSize is each sink's bounded outbound queue depth, per §4.4.
const DefaultBufferSize = 64

// DefaultSweepInterval is the liveness sweeper's backstop period, per §4.4
// ("e.g., 30s").
const DefaultSweepInterval = 30 * time.Second

// Filter is an optional predicate over (old_value, new_value); if it
// returns false, the event is dropped for that observer. Filters run on
// the dispatch side (server), per §4.4.
type Filter func(oldValue, newValue interface{}) bool

// Handle identifies a registered observer. It is opaque and comparable.
type Handle struct {
	id string
}

// WatchOptions configures a single watch call.
type WatchOptions struct {
	Filter         Filter
	IncludeInitial bool
	BufferSize     int
	// Liveness is the observer's liveness probe: for a streaming watcher
	// this is the RPC's context, cancelled on disconnect/deadline; for an
	// in-process watcher it is whatever context that caller's task
	// carries. A nil Liveness means "alive until explicitly unwatched."
	Liveness context.Context
}

type record struct {
	id        string
	sessionID string
	varIDs    map[string]bool

	filter         Filter
	includeInitial bool

	queue   chan *Delivery
	dropped uint64 // atomic

	liveness context.Context
	closed   int32 // atomic bool
}

// Manager is the two-level index described in §4.4:
// (session_id, variable_id) -> set<observer_handle>, plus
// observer_handle -> observer_record. It holds only weak references to
// variables (session id + variable id), never value pointers, per §3's
// ownership rule.
type Manager struct {
	mu           sync.RWMutex
	bySessionVar map[string]map[string]map[string]*record // session -> varID -> observerID -> record
	byHandle     map[string]*record

	log *log.Logger
}

// New builds an empty Manager.
func New(logger *log.Logger) *Manager {
	return &Manager{
		bySessionVar: make(map[string]map[string]map[string]*record),
		byHandle:     make(map[string]*record),
		log:          logger,
	}
}

// Watch atomically resolves patterns against st's current state and
// registers an observer, per §4.4/§9: the snapshot and the index
// insertion happen inside one session-lock critical section in the
// store, so no mutation between snapshot and registration is missed (§8
// property 6, "no stale reads").
func (m *Manager) Watch(st *store.Store, sessionID string, patterns []string, opts WatchOptions) (Handle, []*store.Variable, error) {
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}
	var snapshot []*store.Variable
	var h Handle

	err := st.AtomicSnapshotAndRegister(sessionID, patterns, func(vars []*store.Variable) {
		snapshot = vars
		r := &record{
			id:             uuid.NewString(),
			sessionID:      sessionID,
			varIDs:         make(map[string]bool, len(vars)),
			filter:         opts.Filter,
			includeInitial: opts.IncludeInitial,
			queue:          make(chan *Delivery, opts.BufferSize),
			liveness:       opts.Liveness,
		}
		for _, v := range vars {
			r.varIDs[v.ID] = true
		}
		h = Handle{id: r.id}
		m.insert(r)
	})
	if err != nil {
		return Handle{}, nil, err
	}
	if opts.Liveness != nil {
		go m.watchLiveness(h, opts.Liveness)
	}
	return h, snapshot, nil
}

func (m *Manager) insert(r *record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byHandle[r.id] = r
	byVar, ok := m.bySessionVar[r.sessionID]
	if !ok {
		byVar = make(map[string]map[string]*record)
		m.bySessionVar[r.sessionID] = byVar
	}
	for varID := range r.varIDs {
		set, ok := byVar[varID]
		if !ok {
			set = make(map[string]*record)
			byVar[varID] = set
		}
		set[r.id] = r
	}
}

func (m *Manager) watchLiveness(h Handle, ctx context.Context) {
	<-ctx.Done()
	m.Unwatch(h)
}

// Unwatch removes an observer from the index; idempotent.
func (m *Manager) Unwatch(h Handle) {
	m.mu.Lock()
	r, ok := m.byHandle[h.id]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.byHandle, h.id)
	if byVar, ok := m.bySessionVar[r.sessionID]; ok {
		for varID := range r.varIDs {
			if set, ok := byVar[varID]; ok {
				delete(set, r.id)
				if len(set) == 0 {
					delete(byVar, varID)
				}
			}
		}
		if len(byVar) == 0 {
			delete(m.bySessionVar, r.sessionID)
		}
	}
	m.mu.Unlock()
	atomic.StoreInt32(&r.closed, 1)
}

// Queue returns the channel the caller (a gRPC stream dispatcher) should
// drain to deliver events for handle h. It returns ok=false if h is not
// (or no longer) registered.
func (m *Manager) Queue(h Handle) (<-chan *Delivery, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byHandle[h.id]
	if !ok {
		return nil, false
	}
	return r.queue, true
}

// WatcherInfo is the read-only introspection view of a registered
// observer, used by list_watchers and the debug websocket feed.
type WatcherInfo struct {
	Handle    string
	SessionID string
	VarIDs    []string
}

// ListWatchers returns introspection info for every live observer on a
// session (empty sessionID lists all sessions).
func (m *Manager) ListWatchers(sessionID string) []WatcherInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []WatcherInfo
	for _, r := range m.byHandle {
		if sessionID != "" && r.sessionID != sessionID {
			continue
		}
		ids := make([]string, 0, len(r.varIDs))
		for id := range r.varIDs {
			ids = append(ids, id)
		}
		out = append(out, WatcherInfo{Handle: r.id, SessionID: r.sessionID, VarIDs: ids})
	}
	return out
}
