/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package vartype implements the closed variable type system (C1 value
// codec and C2 type registry): the canonical (tag, JSON payload) envelope
// used on the wire, and the per-type validate/constrain/serialize contract
// each of the eight variable types implements.
package vartype

import (
	"errors"
	"fmt"
)

// Type is one of the closed set of variable types the store understands.
type Type string

const (
	Unspecified Type = ""
	Float       Type = "float"
	Integer     Type = "integer"
	String      Type = "string"
	Boolean     Type = "boolean"
	Choice      Type = "choice"
	Module      Type = "module"
	Embedding   Type = "embedding"
	Tensor      Type = "tensor"
)

// Valid reports whether t is a member of the closed type set.
func (t Type) Valid() bool {
	switch t {
	case Float, Integer, String, Boolean, Choice, Module, Embedding, Tensor:
		return true
	}
	return false
}

func (t Type) String() string {
	if t == Unspecified {
		return "unspecified"
	}
	return string(t)
}

// ParseType maps a wire-level type tag to a Type, failing closed on anything
// outside the eight known tags.
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.Valid() {
		return Unspecified, fmt.Errorf("%w: %q", ErrInvalidType, s)
	}
	return t, nil
}

// Kind enumerates the error taxonomy from the specification's error-handling
// design (kinds, not Go types, per §7). Handlers map a Kind to a stable
// string prefix before it crosses the gRPC boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidType
	KindTypeMismatch
	KindValidationFailed
	KindConstraintViolation
	KindNotFound
	KindSessionNotFound
	KindSessionExpired
	KindAlreadyExists
	KindPartialFailure
	KindTransport
)

// Prefix returns the stable, user-visible string prefix for the kind, as
// required by §7 ("not_found:", "validation_failed:", ...).
func (k Kind) Prefix() string {
	switch k {
	case KindInvalidType:
		return "invalid_type"
	case KindTypeMismatch:
		return "type_mismatch"
	case KindValidationFailed:
		return "validation_failed"
	case KindConstraintViolation:
		return "constraint_violation"
	case KindNotFound:
		return "not_found"
	case KindSessionNotFound:
		return "session_not_found"
	case KindSessionExpired:
		return "session_expired"
	case KindAlreadyExists:
		return "already_exists"
	case KindPartialFailure:
		return "partial_failure"
	case KindTransport:
		return "transport"
	default:
		return "internal"
	}
}

// Error is a typed, boundary-recoverable error carrying a Kind so handlers
// can render the stable string prefixes §7 mandates without string-matching
// error text.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Kind.Prefix() + ":"
	}
	return e.Kind.Prefix() + ": " + e.Msg
}

func NewError(k Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindInternal for
// unrecognized errors so a handler never has to special-case a nil type
// assertion.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

var (
	ErrInvalidType = errors.New("invalid type tag")
)
