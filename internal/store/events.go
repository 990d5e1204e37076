/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import "time"

// EventKind distinguishes an ordinary value update from the two teardown
// signals a variable/session can emit.
type EventKind int

const (
	EventUpdated EventKind = iota
	EventDeleted
	EventSessionExpired
)

// UpdateEvent is the payload the store hands to its Notifier on every
// mutation, per §4.3 "Versioning & ordering": {var_id, old_value,
// new_value, new_version, metadata, timestamp}.
type UpdateEvent struct {
	Kind      EventKind
	SessionID string
	VarID     string
	Name      string
	OldValue  interface{}
	OldType   string
	NewValue  interface{}
	NewType   string
	Version   int64
	Metadata  map[string]string
	Timestamp time.Time
}

// Notifier is the store's only coupling to the observer manager (C4). It
// is satisfied by *observer.Manager but declared here so this package
// never imports observer, keeping the dependency direction store -> (none)
// and observer -> store, per §3's "no cycles" ownership invariant.
type Notifier interface {
	Notify(ev UpdateEvent)
	SessionTornDown(sessionID string, reason EventKind)
}

// noopNotifier is used when a Store is constructed without one, mostly in
// tests that only exercise C3 in isolation.
type noopNotifier struct{}

func (noopNotifier) Notify(UpdateEvent)                {}
func (noopNotifier) SessionTornDown(string, EventKind) {}
