/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/varbridge/varbridge/internal/store"
	"github.com/varbridge/varbridge/internal/vartype"
)

// errString renders err as the stable-prefixed human-readable string §7
// mandates for the response union's error arm ("not_found:",
// "validation_failed:", "type_mismatch:", "session_expired:", ...).
// *store.AtomicValidationError is special-cased since it is not a
// *vartype.Error but carries its own per-key reasons.
func errString(err error) string {
	if err == nil {
		return ""
	}
	if ave, ok := err.(*store.AtomicValidationError); ok {
		return atomicValidationErrString(ave)
	}
	return fmt.Sprintf("%s: %s", vartype.KindOf(err).Prefix(), err.Error())
}

func atomicValidationErrString(ave *store.AtomicValidationError) string {
	b, err := json.Marshal(ave.Errors)
	if err != nil {
		return vartype.KindValidationFailed.Prefix() + ": " + ave.Error()
	}
	return vartype.KindValidationFailed.Prefix() + ": " + string(b)
}

// rateLimitedPrefix is the one stable prefix not backed by a
// vartype.Kind (§6 AMBIENT env table / §7 note: surfaced under Internal
// for taxonomy bookkeeping, but rendered with its own wire prefix since
// callers should be able to distinguish it from a bare internal error).
const rateLimitedPrefix = "rate_limited"

func rateLimitedErrString(msg string) string {
	return rateLimitedPrefix + ": " + msg
}
