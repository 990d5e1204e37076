/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import "github.com/varbridge/varbridge/internal/vartype"

// BatchUpdate is one entry of an update_variables call.
type BatchUpdate struct {
	Identifier string
	Value      interface{}
}

// BatchOpts controls update_variables' atomicity and shared metadata.
type BatchOpts struct {
	Atomic   bool
	Metadata map[string]string
}

// BatchResult is the per-key outcome of a non-atomic update_variables
// call.
type BatchResult struct {
	Identifier string
	Variable   *Variable
	Err        error
}

// UpdateVariables applies a batch of updates to session sessionID.
//
// Non-atomic (opts.Atomic == false): each update is attempted
// independently; the result slice records a per-key Ok/Error outcome and
// the call as a whole always succeeds (§4.3). The relative version
// ordering between different variables within the same non-atomic batch
// is intentionally left unspecified by §9's open question; this
// implementation applies them in the order given, each individual
// variable's own version still increasing by exactly one on success.
//
// Atomic (opts.Atomic == true): every update is validated against its
// variable's current type/constraints before any value is applied; if any
// validation fails, ValidationFailed{errors} is returned and the session
// state is left completely unchanged (§8 property 4, all-or-nothing).
func (s *Store) UpdateVariables(sessionID string, updates []BatchUpdate, opts BatchOpts) ([]BatchResult, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}

	if opts.Atomic {
		return s.updateVariablesAtomic(sess, updates, opts)
	}
	return s.updateVariablesIndependent(sess, updates, opts), nil
}

func (s *Store) updateVariablesIndependent(sess *session, updates []BatchUpdate, opts BatchOpts) []BatchResult {
	out := make([]BatchResult, 0, len(updates))
	for _, u := range updates {
		v, err := s.UpdateVariable(sess.id, u.Identifier, u.Value, opts.Metadata)
		out = append(out, BatchResult{Identifier: u.Identifier, Variable: v, Err: err})
	}
	return out
}

// updateVariablesAtomic validates every update under a single
// session-lock critical section before applying any of them, satisfying
// §8 property 4 and §5's "atomic batch updates observe a consistent
// pre-state."
func (s *Store) updateVariablesAtomic(sess *session, updates []BatchUpdate, opts BatchOpts) ([]BatchResult, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()

	type planned struct {
		v          *Variable
		normalized interface{}
	}
	plan := make([]planned, 0, len(updates))
	errs := make(map[string]string)

	for _, u := range updates {
		v, err := resolveLocked(sess, u.Identifier)
		if err != nil {
			errs[u.Identifier] = err.Error()
			continue
		}
		normalized, err := s.registry.ValidateValue(v.Type, u.Value, v.Constraints)
		if err != nil {
			errs[u.Identifier] = err.Error()
			continue
		}
		plan = append(plan, planned{v: v, normalized: normalized})
	}

	if len(errs) > 0 {
		return nil, &AtomicValidationError{Errors: errs}
	}

	now := s.now()
	results := make([]BatchResult, 0, len(plan))
	for _, p := range plan {
		old := p.v.Clone()
		p.v.Value = p.normalized
		p.v.Version++
		p.v.LastUpdatedAt = now
		p.v.Metadata = mergeMetadata(p.v.Metadata, opts.Metadata)
		sess.touch(now)
		s.emit(sess.id, p.v, old.Value, old.Type.String(), now)
		results = append(results, BatchResult{Identifier: p.v.Name, Variable: p.v.Clone()})
	}
	return results, nil
}

// AtomicValidationError is returned by an atomic update_variables call
// when any single update fails validation; it carries a per-identifier
// reason map and no session state is changed, per §7.
type AtomicValidationError struct {
	Errors map[string]string
}

func (e *AtomicValidationError) Error() string {
	return "validation_failed: one or more updates in the atomic batch failed"
}

// Kind satisfies the same lookup surface as vartype.Error so handlers can
// treat it uniformly.
func (e *AtomicValidationError) Kind() vartype.Kind { return vartype.KindValidationFailed }
