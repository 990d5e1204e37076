/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import "encoding/json"

// Constraints is the native form of a variable's type-specific constraint
// map (min/max, pattern, enum, dimension, shape, ...).
type Constraints map[string]interface{}

// Handler is the four-operation contract every type module implements, per
// §4.2: validate, validate_constraints, serialize, deserialize.
type Handler interface {
	// Validate normalizes raw into the type's canonical in-memory form, or
	// fails with ValidationFailed/TypeMismatch.
	Validate(raw interface{}) (interface{}, error)
	// ValidateConstraints checks an already-normalized value against the
	// type's constraint map, failing with ConstraintViolation.
	ValidateConstraints(value interface{}, c Constraints) error
	// Serialize renders a normalized value as canonical bytes (JSON).
	Serialize(value interface{}) ([]byte, error)
	// Deserialize parses canonical bytes back into a normalized value.
	Deserialize(data []byte) (interface{}, error)
}

// Registry dispatches to the Handler for each of the eight closed types.
// It is immutable after construction and safe for concurrent use by every
// caller (it holds no mutable state of its own).
type Registry struct {
	handlers map[Type]Handler
}

// NewRegistry builds the registry with the fixed, closed type set. There is
// no registration API by design: spec.md's Non-goals exclude arbitrary
// user-defined types.
func NewRegistry() *Registry {
	return &Registry{
		handlers: map[Type]Handler{
			Float:     floatHandler{},
			Integer:   integerHandler{},
			String:    stringHandler{},
			Boolean:   booleanHandler{},
			Choice:    choiceHandler{},
			Module:    moduleHandler{},
			Embedding: embeddingHandler{},
			Tensor:    tensorHandler{},
		},
	}
}

func (r *Registry) handler(t Type) (Handler, error) {
	h, ok := r.handlers[t]
	if !ok {
		return nil, NewError(KindInvalidType, "unknown variable type %q", t)
	}
	return h, nil
}

// Validate normalizes raw against type t.
func (r *Registry) Validate(t Type, raw interface{}) (interface{}, error) {
	h, err := r.handler(t)
	if err != nil {
		return nil, err
	}
	return h.Validate(raw)
}

// ValidateConstraints checks an already-normalized value against c.
func (r *Registry) ValidateConstraints(t Type, value interface{}, c Constraints) error {
	h, err := r.handler(t)
	if err != nil {
		return err
	}
	return h.ValidateConstraints(value, c)
}

// ValidateValue is the derived predicate from §4.2: validate then
// validate_constraints in one call, returning the normalized value.
func (r *Registry) ValidateValue(t Type, raw interface{}, c Constraints) (interface{}, error) {
	v, err := r.Validate(t, raw)
	if err != nil {
		return nil, err
	}
	if err := r.ValidateConstraints(t, v, c); err != nil {
		return nil, err
	}
	return v, nil
}

// Serialize renders value as canonical bytes for type t.
func (r *Registry) Serialize(t Type, value interface{}) ([]byte, error) {
	h, err := r.handler(t)
	if err != nil {
		return nil, err
	}
	return h.Serialize(value)
}

// Deserialize parses data back into a value of type t.
func (r *Registry) Deserialize(t Type, data []byte) (interface{}, error) {
	h, err := r.handler(t)
	if err != nil {
		return nil, err
	}
	return h.Deserialize(data)
}

// jsonSerialize is shared by the simple scalar handlers.
func jsonSerialize(v interface{}) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, NewError(KindInternal, "serialize: %v", err)
	}
	return b, nil
}
