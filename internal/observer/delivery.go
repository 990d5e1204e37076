/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package observer implements the observer/watch engine (C4): atomic
// stream registration, ordered update dispatch, process/stream liveness
// tracking, and automatic cleanup of dead observers, per §4.4.
package observer

import "time"

// DeliveryKind distinguishes the three things a watcher can receive.
type DeliveryKind int

const (
	DeliveryUpdate DeliveryKind = iota
	DeliveryDeleted
	DeliverySessionExpired
)

// Delivery is one item on an observer's outbound queue: either a real
// variable update/deletion, or a session-expiry teardown signal. Stream
// heartbeats are generated by the C6 dispatcher directly and never pass
// through this queue.
type Delivery struct {
	Kind      DeliveryKind
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

	// DroppedCount is the number of older deliveries this sink lost to
	// drop_oldest backpressure since the last successfully delivered
	// item, per §4.4 ("surface a count of dropped events in the next
	// delivered event's metadata").
	DroppedCount uint64
}
