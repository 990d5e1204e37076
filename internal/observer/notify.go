/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package observer

import (
	"sync/atomic"

	"github.com/varbridge/varbridge/internal/store"
)

// Notify implements store.Notifier: it is invoked synchronously by the
// store on every mutation, under that session's lock for value updates
// (§5) and just after the lock is released for deletions. It must never
// block — every sink write below is a bounded, non-blocking drop_oldest
// enqueue, so a slow observer can never stall a store mutation, per §4.4
// ("Dispatch is asynchronous and per-observer failure-isolated").
func (m *Manager) Notify(ev store.UpdateEvent) {
	kind := DeliveryUpdate
	if ev.Kind == store.EventDeleted {
		kind = DeliveryDeleted
	}

	m.mu.RLock()
	byVar := m.bySessionVar[ev.SessionID]
	var targets []*record
	if byVar != nil {
		if set, ok := byVar[ev.VarID]; ok {
			targets = make([]*record, 0, len(set))
			for _, r := range set {
				targets = append(targets, r)
			}
		}
	}
	m.mu.RUnlock()

	for _, r := range targets {
		if !m.passesFilter(r, ev) {
			continue
		}
		d := &Delivery{
			Kind:      kind,
			SessionID: ev.SessionID,
			VarID:     ev.VarID,
			Name:      ev.Name,
			OldValue:  ev.OldValue,
			OldType:   ev.OldType,
			NewValue:  ev.NewValue,
			NewType:   ev.NewType,
			Version:   ev.Version,
			Metadata:  ev.Metadata,
			Timestamp: ev.Timestamp,
		}
		r.enqueue(d)
	}
}

// passesFilter evaluates r's filter, treating a panic as "drop and log"
// per §4.4.
func (m *Manager) passesFilter(r *record, ev store.UpdateEvent) (ok bool) {
	if r.filter == nil {
		return true
	}
	defer func() {
		if rec := recover(); rec != nil {
			if m.log != nil {
				m.log.Errorf("observer filter panicked, dropping event: %v", rec)
			}
			ok = false
		}
	}()
	return r.filter(ev.OldValue, ev.NewValue)
}

// enqueue is the bounded, drop_oldest, non-blocking sink write: if the
// queue is full, the oldest pending item is evicted to make room, and
// the dropped counter is surfaced on the delivery that does make it
// through, per §4.4.
func (r *record) enqueue(d *Delivery) {
	if atomic.LoadInt32(&r.closed) == 1 {
		return
	}
	for {
		d.DroppedCount = atomic.LoadUint64(&r.dropped)
		select {
		case r.queue <- d:
			atomic.StoreUint64(&r.dropped, 0)
			return
		default:
		}
		select {
		case <-r.queue:
			atomic.AddUint64(&r.dropped, 1)
		default:
		}
	}
}

// SessionTornDown implements store.Notifier: it fans a SessionExpired
// teardown signal out to every observer of the session, then removes them
// all from the index, per §4.3's "Eviction emits SessionExpired to all
// observers... then tears them down." The delivery kind is
// DeliverySessionExpired whatever the reason, so an explicitly deleted
// session ends its watchers the same way an expired one does.
func (m *Manager) SessionTornDown(sessionID string, reason store.EventKind) {
	kind := DeliverySessionExpired
	m.mu.RLock()
	byVar := m.bySessionVar[sessionID]
	seen := make(map[string]*record)
	for _, set := range byVar {
		for id, r := range set {
			seen[id] = r
		}
	}
	m.mu.RUnlock()

	for _, r := range seen {
		r.enqueue(&Delivery{Kind: kind, SessionID: sessionID})
		m.Unwatch(Handle{id: r.id})
	}
}
