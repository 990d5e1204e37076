/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package rpc

import (
	"context"
	"time"

	"google.golang.org/grpc"

	"github.com/varbridge/varbridge/internal/log"
	"github.com/varbridge/varbridge/internal/observer"
	"github.com/varbridge/varbridge/internal/store"
	"github.com/varbridge/varbridge/internal/vartype"
)

// serviceName is the package-qualified gRPC service name clients dial,
// mirroring the abstract VariableBridge service of §6.
const serviceName = "varbridge.v1.VariableBridge"

// Service implements C5 (gRPC Handlers) and owns C6 (Stream Dispatcher)
// for WatchVariables. It holds no state of its own beyond references to
// the store and observer manager it was constructed with.
type Service struct {
	store    *store.Store
	watchers *observer.Manager
	log      *log.Logger
}

// New builds a Service wired to st and obs.
func New(st *store.Store, obs *observer.Manager, logger *log.Logger) *Service {
	return &Service{store: st, watchers: obs, log: logger}
}

// ServiceDesc returns the hand-built grpc.ServiceDesc for this service.
// There is no generated *_grpc.pb.go in this build (no protoc available),
// so the descriptor is authored directly against grpc-go's public
// ServiceDesc/MethodDesc/StreamDesc API, the same shape protoc-gen-go-grpc
// itself emits.
func (s *Service) ServiceDesc() *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*any)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "RegisterVariable", Handler: unaryHandler("RegisterVariable", s.registerVariable)},
			{MethodName: "GetVariable", Handler: unaryHandler("GetVariable", s.getVariable)},
			{MethodName: "UpdateVariable", Handler: unaryHandler("UpdateVariable", s.updateVariable)},
			{MethodName: "ListVariables", Handler: unaryHandler("ListVariables", s.listVariables)},
			{MethodName: "DeleteVariable", Handler: unaryHandler("DeleteVariable", s.deleteVariable)},
			{MethodName: "GetVariables", Handler: unaryHandler("GetVariables", s.getVariables)},
			{MethodName: "UpdateVariables", Handler: unaryHandler("UpdateVariables", s.updateVariables)},
		},
		Streams: []grpc.StreamDesc{
			{
				StreamName:    "WatchVariables",
				Handler:       s.handleWatchVariables,
				ServerStreams: true,
			},
		},
		Metadata: "varbridge.proto",
	}
}

// unaryHandler adapts a typed (ctx, *Req) -> (*Resp, error) method into the
// untyped grpc.MethodHandler shape every MethodDesc needs, decoding the
// request and threading the server's interceptor chain through.
func unaryHandler[Req any, Resp any](name string, fn func(context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	fullMethod := "/" + serviceName + "/" + name
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		req := new(Req)
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(ctx, req)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, r interface{}) (interface{}, error) {
			return fn(ctx, r.(*Req))
		}
		return interceptor(ctx, req, info, handler)
	}
}

// --- RegisterVariable -------------------------------------------------

type registerVariableRequest struct {
	SessionID   string                      `json:"session_id"`
	Name        string                      `json:"name"`
	Value       vartype.AnyValue            `json:"value"`
	Constraints map[string]vartype.AnyValue `json:"constraints,omitempty"`
	Metadata    map[string]string           `json:"metadata,omitempty"`
	Optimizing  bool                        `json:"optimizing,omitempty"`
	Source      string                      `json:"source,omitempty"`
	SessionTTL  int64                       `json:"session_ttl_seconds,omitempty"`
	SessionTags map[string]string           `json:"session_tags,omitempty"`
}

type registerVariableResponse struct {
	result
	VariableID string `json:"variable_id,omitempty"`
}


func (s *Service) registerVariable(ctx context.Context, req *registerVariableRequest) (*registerVariableResponse, error) {
	typ, value, err := vartype.DecodeAnyTag(req.Value)
	if err != nil {
		return &registerVariableResponse{result: result{Error: errString(err)}}, nil
	}
	constraints, err := decodeConstraints(req.Constraints)
	if err != nil {
		return &registerVariableResponse{result: result{Error: errString(err)}}, nil
	}
	id, err := s.store.RegisterVariable(req.SessionID, req.Name, typ, value, store.RegisterOpts{
		Constraints: constraints,
		Metadata:    req.Metadata,
		Optimizing:  req.Optimizing,
		Source:      req.Source,
		SessionTTL:  time.Duration(req.SessionTTL) * time.Second,
		SessionTags: req.SessionTags,
	})
	if err != nil {
		return &registerVariableResponse{result: result{Error: errString(err)}}, nil
	}
	return &registerVariableResponse{VariableID: id}, nil
}

func decodeConstraints(wire map[string]vartype.AnyValue) (vartype.Constraints, error) {
	if len(wire) == 0 {
		return nil, nil
	}
	out := make(vartype.Constraints, len(wire))
	for k, av := range wire {
		_, v, err := vartype.DecodeAnyTag(av)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// --- GetVariable --------------------------------------------------------

type identifierRequest struct {
	SessionID  string `json:"session_id"`
	Identifier string `json:"identifier"`
}

type variableResponse struct {
	result
	Variable *Variable `json:"variable,omitempty"`
}


func (s *Service) getVariable(ctx context.Context, req *identifierRequest) (*variableResponse, error) {
	v, err := s.store.GetVariable(req.SessionID, req.Identifier)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	wv, err := toWireVariable(v)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	return &variableResponse{Variable: &wv}, nil
}

// --- UpdateVariable ------------------------------------------------------

type updateVariableRequest struct {
	SessionID  string            `json:"session_id"`
	Identifier string            `json:"identifier"`
	Value      vartype.AnyValue  `json:"value"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}


func (s *Service) updateVariable(ctx context.Context, req *updateVariableRequest) (*variableResponse, error) {
	// The update path must reject a cross-type value the same way the
	// registry does: decode against the variable's already-registered
	// type, not whatever the client tagged it with, so a "type_mismatch"
	// is surfaced instead of silently coercing (§7 TypeMismatch kind).
	existing, err := s.store.GetVariable(req.SessionID, req.Identifier)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	value, err := vartype.DecodeAny(req.Value, existing.Type)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	v, err := s.store.UpdateVariable(req.SessionID, req.Identifier, value, req.Metadata)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	wv, err := toWireVariable(v)
	if err != nil {
		return &variableResponse{result: result{Error: errString(err)}}, nil
	}
	return &variableResponse{Variable: &wv}, nil
}

// --- ListVariables ------------------------------------------------------

type listVariablesRequest struct {
	SessionID string `json:"session_id"`
	Pattern   string `json:"pattern,omitempty"`
}

type listVariablesResponse struct {
	result
	Variables []Variable `json:"variables,omitempty"`
}


func (s *Service) listVariables(ctx context.Context, req *listVariablesRequest) (*listVariablesResponse, error) {
	vars, err := s.store.ListVariables(req.SessionID, req.Pattern)
	if err != nil {
		return &listVariablesResponse{result: result{Error: errString(err)}}, nil
	}
	out := make([]Variable, 0, len(vars))
	for _, v := range vars {
		wv, err := toWireVariable(v)
		if err != nil {
			return &listVariablesResponse{result: result{Error: errString(err)}}, nil
		}
		out = append(out, wv)
	}
	return &listVariablesResponse{Variables: out}, nil
}

// --- DeleteVariable -------------------------------------------------------


func (s *Service) deleteVariable(ctx context.Context, req *identifierRequest) (*result, error) {
	if err := s.store.DeleteVariable(req.SessionID, req.Identifier); err != nil {
		return &result{Error: errString(err)}, nil
	}
	return &result{}, nil
}

// --- GetVariables (batch read) --------------------------------------------

type getVariablesRequest struct {
	SessionID   string   `json:"session_id"`
	Identifiers []string `json:"identifiers"`
}

type getVariablesResponse struct {
	result
	Found   map[string]Variable `json:"found,omitempty"`
	Missing []string            `json:"missing,omitempty"`
}


func (s *Service) getVariables(ctx context.Context, req *getVariablesRequest) (*getVariablesResponse, error) {
	res, err := s.store.GetVariables(req.SessionID, req.Identifiers)
	if err != nil {
		return &getVariablesResponse{result: result{Error: errString(err)}}, nil
	}
	found := make(map[string]Variable, len(res.Found))
	for k, v := range res.Found {
		wv, err := toWireVariable(v)
		if err != nil {
			return &getVariablesResponse{result: result{Error: errString(err)}}, nil
		}
		found[k] = wv
	}
	return &getVariablesResponse{Found: found, Missing: res.Missing}, nil
}

// --- UpdateVariables (batch write) -----------------------------------------

type batchUpdateEntry struct {
	Identifier string           `json:"identifier"`
	Value      vartype.AnyValue `json:"value"`
}

type updateVariablesRequest struct {
	SessionID string             `json:"session_id"`
	Updates   []batchUpdateEntry `json:"updates"`
	Atomic    bool               `json:"atomic"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

type batchResultEntry struct {
	Identifier string    `json:"identifier"`
	Variable   *Variable `json:"variable,omitempty"`
	Error      string    `json:"error,omitempty"`
}

type updateVariablesResponse struct {
	result
	Results []batchResultEntry `json:"results,omitempty"`
}


func (s *Service) updateVariables(ctx context.Context, req *updateVariablesRequest) (*updateVariablesResponse, error) {
	updates := make([]store.BatchUpdate, 0, len(req.Updates))
	for _, u := range req.Updates {
		_, v, err := vartype.DecodeAnyTag(u.Value)
		if err != nil {
			return &updateVariablesResponse{result: result{Error: errString(err)}}, nil
		}
		updates = append(updates, store.BatchUpdate{Identifier: u.Identifier, Value: v})
	}

	results, err := s.store.UpdateVariables(req.SessionID, updates, store.BatchOpts{
		Atomic:   req.Atomic,
		Metadata: req.Metadata,
	})
	if err != nil {
		// Atomic all-or-nothing failure: §7 "return ValidationFailed{map<id,
		// reason>} and apply none" — surfaced as the top-level error, no
		// per-key results.
		return &updateVariablesResponse{result: result{Error: errString(err)}}, nil
	}

	out := make([]batchResultEntry, 0, len(results))
	for _, r := range results {
		entry := batchResultEntry{Identifier: r.Identifier}
		if r.Err != nil {
			entry.Error = errString(r.Err)
		} else if r.Variable != nil {
			wv, err := toWireVariable(r.Variable)
			if err != nil {
				entry.Error = errString(err)
			} else {
				entry.Variable = &wv
			}
		}
		out = append(out, entry)
	}
	return &updateVariablesResponse{Results: out}, nil
}
