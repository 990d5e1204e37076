/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package wsintrospect is the optional, read-only websocket introspection
// feed (VARBRIDGE_INTROSPECT_ADDR, §6 AMBIENT): it surfaces session and
// watcher counts for operators, adapted from gravwell's
// client/websocketRouter subprotocol-connection machinery, trimmed down to
// the part a one-way, no-subprotocol-negotiation feed actually needs: the
// deadline-bounded JSON send helper.
package wsintrospect

import (
	"time"

	"github.com/gorilla/websocket"
)

const writeDeadline = 5 * time.Second

// writeDeadLine is gravwell's deadline-bounded websocket JSON write,
// carried over unchanged (client/websocketRouter/types.go): set a write
// deadline, send, then clear it so the connection's base deadline state
// doesn't leak across calls.
func writeDeadLine(conn *websocket.Conn, dur time.Duration, obj interface{}) error {
	if err := conn.SetWriteDeadline(time.Now().Add(dur)); err != nil {
		return err
	}
	defer conn.SetWriteDeadline(time.Time{})
	return conn.WriteJSON(obj)
}
