/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package store

import "github.com/gobwas/glob"

// AtomicSnapshotAndRegister resolves patterns to variables and invokes
// register while still holding the session's lock, so that no mutation
// can land between the snapshot and the observer manager's registration
// of it — the "no stale read" requirement of §4.4/§9. register must not
// call back into the store (it would deadlock on the same lock).
func (s *Store) AtomicSnapshotAndRegister(sessionID string, patterns []string, register func(vars []*Variable)) error {
	sess, err := s.lookupSession(sessionID)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.touch(s.now())

	vars := resolvePatternsLocked(sess, patterns)
	register(vars)
	return nil
}

// resolvePatternsLocked resolves a set of name/id/glob patterns to
// variables. Unknown identifiers are silently dropped, per §4.5's
// "unknowns are not errors (empty result)." Results are de-duplicated by
// variable id and returned as clones (safe to hand outside the lock).
func resolvePatternsLocked(sess *session, patterns []string) []*Variable {
	seen := make(map[string]bool)
	var out []*Variable
	add := func(v *Variable) {
		if !seen[v.ID] {
			seen[v.ID] = true
			out = append(out, v.Clone())
		}
	}

	for _, p := range patterns {
		if p == "" {
			continue
		}
		if !containsGlobMeta(p) {
			if v, err := resolveLocked(sess, p); err == nil {
				add(v)
			}
			continue
		}
		g, err := glob.Compile(p)
		if err != nil {
			continue
		}
		for _, v := range sess.byID {
			if g.Match(v.Name) {
				add(v)
			}
		}
	}
	return out
}

func containsGlobMeta(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}':
			return true
		}
	}
	return false
}
