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
	"time"
)

// RunSweeper runs a periodic backstop pass that removes any observer whose
// liveness context has already completed but whose per-watch goroutine
// (watchLiveness) has not yet run, per §4.4: "a sweeper pass (e.g., 30s)
// also removes stale entries as a backstop." It blocks until ctx is
// cancelled, so callers run it in its own goroutine (see cmd/varbridge-server).
func (m *Manager) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.sweepStale()
		}
	}
}

func (m *Manager) sweepStale() {
	m.mu.RLock()
	var stale []Handle
	for id, r := range m.byHandle {
		if r.liveness == nil {
			continue
		}
		select {
		case <-r.liveness.Done():
			stale = append(stale, Handle{id: id})
		default:
		}
	}
	m.mu.RUnlock()

	for _, h := range stale {
		m.Unwatch(h)
	}
}
