/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package rpc implements the gRPC-facing surface (C5 Handlers, C6 Stream
// Dispatcher): wire message translation, the seven unary ops, the
// WatchVariables stream, and the cross-cutting auth/rate-limit
// interceptors.
package rpc

import (
	"github.com/varbridge/varbridge/internal/observer"
	"github.com/varbridge/varbridge/internal/store"
	"github.com/varbridge/varbridge/internal/vartype"
)

// Variable mirrors the abstract wire message from §6: the value envelope
// plus constraints/metadata, rendered for JSON transport.
type Variable struct {
	ID            string                      `json:"id"`
	Name          string                      `json:"name"`
	Type          string                      `json:"type"`
	Value         vartype.AnyValue            `json:"value"`
	Constraints   map[string]vartype.AnyValue `json:"constraints,omitempty"`
	Metadata      map[string]string           `json:"metadata,omitempty"`
	Version       int64                       `json:"version"`
	CreatedAt     int64                       `json:"created_at"`
	LastUpdatedAt int64                       `json:"last_updated_at"`
	Optimizing    bool                        `json:"optimizing"`
}

// VariableUpdate mirrors §6's VariableUpdate message, used both on
// WatchVariables and as the common "what changed" shape.
type VariableUpdate struct {
	VariableID string            `json:"variable_id"`
	Name       string            `json:"name,omitempty"`
	OldValue   *vartype.AnyValue `json:"old_value,omitempty"`
	NewValue   *vartype.AnyValue `json:"new_value,omitempty"`
	Version    int64             `json:"version"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Timestamp  int64             `json:"timestamp"`
}

// result is the discriminated union every unary op response embeds, per
// §4.5: "Response uses a discriminated union {ok_payload | error_string}."
type result struct {
	Error string `json:"error,omitempty"`
}

func toWireVariable(v *store.Variable) (Variable, error) {
	av, err := vartype.EncodeAny(v.Type, v.Value)
	if err != nil {
		return Variable{}, err
	}
	var constraints map[string]vartype.AnyValue
	if len(v.Constraints) > 0 {
		constraints = make(map[string]vartype.AnyValue, len(v.Constraints))
		for k, cv := range v.Constraints {
			cav, err := encodeConstraint(cv)
			if err != nil {
				return Variable{}, err
			}
			constraints[k] = cav
		}
	}
	return Variable{
		ID:            v.ID,
		Name:          v.Name,
		Type:          v.Type.String(),
		Value:         av,
		Constraints:   constraints,
		Metadata:      v.Metadata,
		Version:       v.Version,
		CreatedAt:     v.CreatedAt.UnixMilli(),
		LastUpdatedAt: v.LastUpdatedAt.UnixMilli(),
		Optimizing:    v.Optimizing,
	}, nil
}

// encodeConstraint renders an arbitrary constraint scalar (float/int/string/
// bool) as an AnyValue using the type its Go value naturally maps to; the
// constraint map itself has no declared type in the wire schema beyond
// "self-describing values" (§6 map<string,AnyValue>).
func encodeConstraint(v interface{}) (vartype.AnyValue, error) {
	switch v.(type) {
	case float64, float32:
		return vartype.EncodeAny(vartype.Float, v)
	case int, int32, int64:
		return vartype.EncodeAny(vartype.Integer, v)
	case bool:
		return vartype.EncodeAny(vartype.Boolean, v)
	default:
		return vartype.EncodeAny(vartype.String, v)
	}
}

func toWireUpdate(ev store.UpdateEvent) (VariableUpdate, error) {
	vu := VariableUpdate{
		VariableID: ev.VarID,
		Name:       ev.Name,
		Version:    ev.Version,
		Metadata:   ev.Metadata,
		Timestamp:  ev.Timestamp.UnixMilli(),
	}
	if ev.OldType != "" {
		t, err := vartype.ParseType(ev.OldType)
		if err == nil {
			av, err := vartype.EncodeAny(t, ev.OldValue)
			if err == nil {
				vu.OldValue = &av
			}
		}
	}
	if ev.NewType != "" {
		t, err := vartype.ParseType(ev.NewType)
		if err != nil {
			return VariableUpdate{}, err
		}
		av, err := vartype.EncodeAny(t, ev.NewValue)
		if err != nil {
			return VariableUpdate{}, err
		}
		vu.NewValue = &av
	}
	return vu, nil
}

func deliveryToWire(d *observer.Delivery) (VariableUpdate, error) {
	return toWireUpdate(store.UpdateEvent{
		VarID:     d.VarID,
		Name:      d.Name,
		OldValue:  d.OldValue,
		OldType:   d.OldType,
		NewValue:  d.NewValue,
		NewType:   d.NewType,
		Version:   d.Version,
		Metadata:  withDroppedCount(d.Metadata, d.DroppedCount),
		Timestamp: d.Timestamp,
	})
}

// withDroppedCount surfaces a nonzero drop_oldest count on the delivered
// event's metadata, per §4.4's backpressure-visibility requirement.
func withDroppedCount(md map[string]string, dropped uint64) map[string]string {
	if dropped == 0 {
		return md
	}
	out := make(map[string]string, len(md)+1)
	for k, v := range md {
		out[k] = v
	}
	out["dropped_count"] = itoa(dropped)
	return out
}

func itoa(u uint64) string {
	if u == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for u > 0 {
		i--
		buf[i] = byte('0' + u%10)
		u /= 10
	}
	return string(buf[i:])
}
