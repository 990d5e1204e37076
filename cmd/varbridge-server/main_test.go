/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package main

import (
	"sync/atomic"
	"testing"
	"time"
)

// TestBoundedStopReturnsImmediatelyWhenGracefulFinishes covers the common
// case: nothing was in flight, so graceful (GracefulStop) returns on its
// own well inside grace, and hard (Stop) must never run.
func TestBoundedStopReturnsImmediatelyWhenGracefulFinishes(t *testing.T) {
	var hardCalled atomic.Bool
	done := make(chan struct{})
	go func() {
		boundedStop(
			func() { /* returns immediately, as GracefulStop does with no open streams */ },
			func() { hardCalled.Store(true) },
			50*time.Millisecond,
		)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(20 * time.Millisecond):
		t.Fatal("boundedStop did not return promptly when graceful finished immediately")
	}
	if hardCalled.Load() {
		t.Fatal("hard stop must not run when graceful already finished")
	}
}

// TestBoundedStopForcesHardStopPastGrace reproduces the bug this function
// fixes: a graceful stop that never returns on its own (an open
// WatchVariables stream whose context GracefulStop never cancels) must
// not hang boundedStop forever. hard is expected to be what unblocks the
// stuck graceful call, the same relationship grpc.Server.Stop has to a
// GracefulStop parked on an open stream.
func TestBoundedStopForcesHardStopPastGrace(t *testing.T) {
	unblock := make(chan struct{})
	var hardCalled atomic.Bool

	done := make(chan struct{})
	go func() {
		boundedStop(
			func() { <-unblock }, // simulates GracefulStop waiting on an open stream
			func() {
				hardCalled.Store(true)
				close(unblock) // simulates Stop force-closing the connection
			},
			20*time.Millisecond,
		)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("boundedStop hung past its grace period and hard stop")
	}
	if !hardCalled.Load() {
		t.Fatal("expected hard stop to run once graceful outlasted the grace period")
	}
}
