/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package rpc

import (
	"time"

	"google.golang.org/grpc"

	"github.com/varbridge/varbridge/internal/observer"
)

// heartbeatInterval is fixed at 30s per §5 "Timeouts."
const heartbeatInterval = 30 * time.Second

type watchVariablesRequest struct {
	SessionID      string   `json:"session_id"`
	Patterns       []string `json:"patterns"`
	IncludeInitial bool     `json:"include_initial"`
}

// heartbeat is sent with VariableID == "" so a client can distinguish it
// from a real update without a separate message type, per §4.5 step 5.
func heartbeat() *VariableUpdate {
	return &VariableUpdate{Timestamp: time.Now().UnixMilli()}
}

// handleWatchVariables is C6, the per-stream single-producer/single-consumer
// dispatcher described in §4.6: it owns the one goroutine that writes to
// the transport, draining the observer's bounded queue and resetting the
// heartbeat timer on every real send. A transport write error tears the
// observer down and ends the stream, per §5's cancellation contract.
func (s *Service) handleWatchVariables(srv interface{}, stream grpc.ServerStream) error {
	var req watchVariablesRequest
	if err := stream.RecvMsg(&req); err != nil {
		return err
	}

	ctx := stream.Context()
	handle, snapshot, err := s.watchers.Watch(s.store, req.SessionID, req.Patterns, observer.WatchOptions{
		IncludeInitial: req.IncludeInitial,
		Liveness:       ctx,
	})
	if err != nil {
		return err
	}
	defer s.watchers.Unwatch(handle)

	if req.IncludeInitial {
		for _, v := range snapshot {
			wv, err := toWireVariable(v)
			if err != nil {
				continue
			}
			update := &VariableUpdate{
				VariableID: wv.ID,
				Name:       wv.Name,
				NewValue:   &wv.Value,
				Version:    wv.Version,
				Timestamp:  time.Now().UnixMilli(),
			}
			if err := stream.SendMsg(update); err != nil {
				return err
			}
		}
	}

	queue, ok := s.watchers.Queue(handle)
	if !ok {
		return nil
	}

	timer := time.NewTimer(heartbeatInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-queue:
			if !ok {
				return nil
			}
			update, err := deliveryToWire(d)
			if err != nil {
				continue
			}
			if err := stream.SendMsg(&update); err != nil {
				return err
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(heartbeatInterval)
			if d.Kind == observer.DeliverySessionExpired {
				return nil
			}
		case <-timer.C:
			if err := stream.SendMsg(heartbeat()); err != nil {
				return err
			}
			timer.Reset(heartbeatInterval)
		}
	}
}
