/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import (
	"fmt"
	"time"

	"github.com/gobwas/glob"
	"github.com/google/uuid"

	"github.com/varbridge/varbridge/internal/vartype"
)

// RegisterOpts bundles the optional fields of register_variable.
type RegisterOpts struct {
	Constraints vartype.Constraints
	Metadata    map[string]string
	Optimizing  bool
	Source      string

	// SessionTTL and SessionTags apply only when RegisterVariable
	// implicitly creates sessionID; they are ignored against a session
	// that already exists live, matching CreateSession's idempotency.
	SessionTTL  time.Duration
	SessionTags map[string]string
}

// RegisterVariable allocates a var_id and stores a new variable, per
// §4.3. Implicitly creates the session on first use.
func (s *Store) RegisterVariable(sessionID, name string, typ vartype.Type, initial interface{}, opts RegisterOpts) (string, error) {
	if name == "" {
		return "", vartype.NewError(vartype.KindValidationFailed, "variable name must not be empty")
	}
	if !typ.Valid() {
		return "", vartype.NewError(vartype.KindInvalidType, "unknown variable type %q", typ)
	}
	sess, err := s.ensureSession(sessionID, opts.SessionTTL, opts.SessionTags)
	if err != nil {
		return "", err
	}

	normalized, err := s.registry.ValidateValue(typ, initial, opts.Constraints)
	if err != nil {
		return "", err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, exists := sess.byName[name]; exists {
		return "", vartype.NewError(vartype.KindAlreadyExists, "variable %q already exists in session", name)
	}
	now := s.now()
	varID := fmt.Sprintf("var_%s_%s", name, uuid.NewString())
	v := &Variable{
		ID:            varID,
		Name:          name,
		Type:          typ,
		Value:         normalized,
		Constraints:   opts.Constraints,
		Metadata:      opts.Metadata,
		Version:       0,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Optimizing:    opts.Optimizing,
		Source:        opts.Source,
	}
	sess.byID[varID] = v
	sess.byName[name] = varID
	sess.touch(now)
	return varID, nil
}

// resolveLocked looks up a variable by name or id within an already-locked
// session.
func resolveLocked(sess *session, identifier string) (*Variable, error) {
	if id, ok := sess.byName[identifier]; ok {
		if v, ok := sess.byID[id]; ok {
			return v, nil
		}
	}
	if v, ok := sess.byID[identifier]; ok {
		return v, nil
	}
	return nil, vartype.NewError(vartype.KindNotFound, "variable %q not found", identifier)
}

// GetVariable returns a snapshot of the named/identified variable.
func (s *Store) GetVariable(sessionID, identifier string) (*Variable, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())
	v, err := resolveLocked(sess, identifier)
	if err != nil {
		return nil, err
	}
	return v.Clone(), nil
}

// UpdateVariable re-validates value against the current type and
// constraints; on success value/metadata change, version increments by
// exactly one, and an update event is emitted. On failure nothing changes.
func (s *Store) UpdateVariable(sessionID, identifier string, value interface{}, metadata map[string]string) (*Variable, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	v, err := resolveLocked(sess, identifier)
	if err != nil {
		return nil, err
	}
	normalized, err := s.registry.ValidateValue(v.Type, value, v.Constraints)
	if err != nil {
		return nil, err
	}

	now := s.now()
	old := v.Clone()
	v.Value = normalized
	v.Version++
	v.LastUpdatedAt = now
	v.Metadata = mergeMetadata(v.Metadata, metadata)
	sess.touch(now)

	s.emit(sess.id, v, old.Value, old.Type.String(), now)
	return v.Clone(), nil
}

// ListVariables returns all variables whose name matches pattern (a glob
// with "*" wildcard support); an empty/absent pattern lists all.
func (s *Store) ListVariables(sessionID, pattern string) ([]*Variable, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return nil, err
	}
	var g glob.Glob
	if pattern != "" {
		g, err = glob.Compile(pattern)
		if err != nil {
			return nil, vartype.NewError(vartype.KindValidationFailed, "invalid pattern %q: %v", pattern, err)
		}
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())
	out := make([]*Variable, 0, len(sess.byID))
	for _, v := range sess.byID {
		if g == nil || g.Match(v.Name) {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

// DeleteVariable removes a variable and emits a Deleted update event to
// its observers.
func (s *Store) DeleteVariable(sessionID, identifier string) error {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	v, err := resolveLocked(sess, identifier)
	if err != nil {
		sess.mu.Unlock()
		return err
	}
	delete(sess.byID, v.ID)
	delete(sess.byName, v.Name)
	now := s.now()
	sess.touch(now)
	sess.mu.Unlock()

	s.notifier.Notify(UpdateEvent{
		Kind:      EventDeleted,
		SessionID: sess.id,
		VarID:     v.ID,
		Name:      v.Name,
		OldValue:  v.Value,
		OldType:   v.Type.String(),
		Version:   v.Version,
		Timestamp: now,
	})
	return nil
}

// GetVariablesResult is the partial-success return shape of
// get_variables, per §4.3.
type GetVariablesResult struct {
	Found   map[string]*Variable
	Missing []string
}

// GetVariables resolves a batch of identifiers, reporting found/missing
// separately rather than failing the whole call on one miss.
func (s *Store) GetVariables(sessionID string, identifiers []string) (GetVariablesResult, error) {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return GetVariablesResult{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())

	res := GetVariablesResult{Found: make(map[string]*Variable, len(identifiers))}
	for _, id := range identifiers {
		if v, err := resolveLocked(sess, id); err == nil {
			res.Found[id] = v.Clone()
		} else {
			res.Missing = append(res.Missing, id)
		}
	}
	return res, nil
}

func mergeMetadata(existing, update map[string]string) map[string]string {
	if len(update) == 0 {
		return existing
	}
	out := make(map[string]string, len(existing)+len(update))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range update {
		out[k] = v
	}
	return out
}

// emit must be called with sess.mu held, and builds+dispatches the update
// event for a just-mutated variable v.
func (s *Store) emit(sessionID string, v *Variable, oldValue interface{}, oldType string, ts time.Time) {
	s.notifier.Notify(UpdateEvent{
		Kind:      EventUpdated,
		SessionID: sessionID,
		VarID:     v.ID,
		Name:      v.Name,
		OldValue:  oldValue,
		OldType:   oldType,
		NewValue:  v.Value,
		NewType:   v.Type.String(),
		Version:   v.Version,
		Metadata:  cloneStringMap(v.Metadata),
		Timestamp: ts,
	})
}
