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
	"testing"
	"time"

	"github.com/varbridge/varbridge/internal/store"
	"github.com/varbridge/varbridge/internal/vartype"
)

func newWiredStore(m *Manager) *store.Store {
	return store.New(store.WithNotifier(m))
}

// Watch atomically snapshots current state and registers before any
// concurrent mutation can land — property 6, "no stale reads."
func TestWatchAtomicSnapshot(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", 0, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(1), store.RegisterOpts{})

	h, snap, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{IncludeInitial: true})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(snap) != 1 || snap[0].Value.(int64) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}

	if _, err := s.UpdateVariable("sess", "x", int64(2), nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	q, ok := m.Queue(h)
	if !ok {
		t.Fatal("expected queue to exist")
	}
	select {
	case d := <-q:
		if d.NewValue.(int64) != 2 {
			t.Fatalf("expected delivered value 2, got %v", d.NewValue)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}
}

// drop_oldest backpressure: once the bounded queue is full, the oldest
// pending item is evicted and the survivor carries the dropped count.
func TestNotifyDropOldestBackpressure(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", 0, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(0), store.RegisterOpts{})

	h, _, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{BufferSize: 2})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	for i := 1; i <= 5; i++ {
		if _, err := s.UpdateVariable("sess", "x", int64(i), nil); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	q, _ := m.Queue(h)
	var last *Delivery
	for {
		select {
		case d := <-q:
			last = d
		default:
			goto drained
		}
	}
drained:
	if last == nil {
		t.Fatal("expected at least one delivery")
	}
	if last.DroppedCount == 0 {
		t.Fatalf("expected nonzero dropped count after overflowing a depth-2 queue with 5 updates, got %+v", last)
	}
}

// A filter panic must be treated as drop-and-log, not crash the notifier.
func TestNotifyFilterPanicIsDropped(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", 0, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(0), store.RegisterOpts{})

	h, _, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{
		Filter: func(old, new interface{}) bool { panic("boom") },
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	if _, err := s.UpdateVariable("sess", "x", int64(1), nil); err != nil {
		t.Fatalf("update: %v", err)
	}

	q, _ := m.Queue(h)
	select {
	case d := <-q:
		t.Fatalf("expected no delivery after filter panic, got %+v", d)
	case <-time.After(50 * time.Millisecond):
	}
}

// Session teardown fans a SessionExpired delivery to every observer of the
// session, then unregisters them (§4.3).
func TestSessionTornDownNotifiesAndUnregisters(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", time.Millisecond, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(0), store.RegisterOpts{})

	h, _, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}

	// Take the queue before teardown, as a stream dispatcher does: teardown
	// unregisters the observer, after which Queue no longer returns it.
	q, ok := m.Queue(h)
	if !ok {
		t.Fatal("expected queue to exist before teardown")
	}

	time.Sleep(5 * time.Millisecond)
	if _, err := s.GetVariable("sess", "x"); err == nil {
		t.Fatal("expected session to have expired")
	}

	select {
	case d := <-q:
		if d.Kind != DeliverySessionExpired {
			t.Fatalf("expected DeliverySessionExpired, got %v", d.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for session-expired delivery")
	}

	if _, ok := m.Queue(h); ok {
		t.Fatal("expected observer to be unregistered after teardown")
	}
}

// A watch whose liveness context is cancelled (stream disconnect) is
// unregistered automatically.
func TestWatchLivenessCancelUnwatches(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", 0, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(0), store.RegisterOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	h, _, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{Liveness: ctx})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	cancel()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if _, ok := m.Queue(h); !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected watch to be unregistered after liveness cancellation")
}

// The backstop sweeper removes entries whose liveness already completed,
// even if the per-watch goroutine somehow missed them.
func TestSweeperRemovesStaleEntries(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("sess", 0, nil)
	s.RegisterVariable("sess", "x", vartype.Integer, int64(0), store.RegisterOpts{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h, _, err := m.Watch(s, "sess", []string{"x"}, WatchOptions{})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	// Install an already-done liveness context directly on the record,
	// after Watch, to exercise the sweeper without racing watchLiveness's
	// own goroutine, which would otherwise reap this before the sweep runs.
	m.mu.Lock()
	if r, ok := m.byHandle[h.id]; ok {
		r.liveness = ctx
	}
	m.mu.Unlock()

	m.sweepStale()

	if _, ok := m.Queue(h); ok {
		t.Fatal("expected sweeper to remove the stale observer")
	}
}

// ListWatchers surfaces introspection data scoped to a session.
func TestListWatchersScopesBySession(t *testing.T) {
	m := New(nil)
	s := newWiredStore(m)
	s.CreateSession("a", 0, nil)
	s.CreateSession("b", 0, nil)
	s.RegisterVariable("a", "x", vartype.Integer, int64(0), store.RegisterOpts{})
	s.RegisterVariable("b", "y", vartype.Integer, int64(0), store.RegisterOpts{})

	if _, _, err := m.Watch(s, "a", []string{"x"}, WatchOptions{}); err != nil {
		t.Fatalf("watch a: %v", err)
	}
	if _, _, err := m.Watch(s, "b", []string{"y"}, WatchOptions{}); err != nil {
		t.Fatalf("watch b: %v", err)
	}

	wa := m.ListWatchers("a")
	if len(wa) != 1 || wa[0].SessionID != "a" {
		t.Fatalf("expected exactly one watcher scoped to session a, got %+v", wa)
	}

	all := m.ListWatchers("")
	if len(all) != 2 {
		t.Fatalf("expected 2 watchers total, got %d", len(all))
	}
}
