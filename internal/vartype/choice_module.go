/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import (
	"strings"
)

// choiceHandler: a string that must appear in constraint "choices";
// otherwise follows the same rules as string (§4.2).
type choiceHandler struct{}

func (choiceHandler) Validate(raw interface{}) (interface{}, error) {
	return validateStringLike(raw)
}

func (choiceHandler) ValidateConstraints(value interface{}, c Constraints) error {
	s, ok := value.(string)
	if !ok {
		return NewError(KindInternal, "choice constraint check given non-string %T", value)
	}
	choices, ok := c["choices"]
	if !ok {
		return NewError(KindConstraintViolation, "choice type requires a \"choices\" constraint")
	}
	if !memberOfEnum(s, choices) {
		return NewError(KindConstraintViolation, "%q is not among the allowed choices", s)
	}
	return validateStringConstraints(value, withoutKey(c, "choices"))
}

func (choiceHandler) Serialize(value interface{}) ([]byte, error) {
	return stringHandler{}.Serialize(value)
}

func (choiceHandler) Deserialize(data []byte) (interface{}, error) {
	return stringHandler{}.Deserialize(data)
}

// moduleHandler: a string naming a component, constrained by "choices",
// "namespace" (required prefix), and "pattern" (§4.2).
type moduleHandler struct{}

func (moduleHandler) Validate(raw interface{}) (interface{}, error) {
	return validateStringLike(raw)
}

func (moduleHandler) ValidateConstraints(value interface{}, c Constraints) error {
	s, ok := value.(string)
	if !ok {
		return NewError(KindInternal, "module constraint check given non-string %T", value)
	}
	if choices, ok := c["choices"]; ok {
		if !memberOfEnum(s, choices) {
			return NewError(KindConstraintViolation, "module %q is not among the allowed choices", s)
		}
	}
	if ns, ok := c["namespace"]; ok {
		prefix, _ := ns.(string)
		if prefix != "" && !strings.HasPrefix(s, prefix) {
			return NewError(KindConstraintViolation, "module %q does not have required namespace %q", s, prefix)
		}
	}
	return validateStringConstraints(value, withoutKeys(c, "choices", "namespace"))
}

func (moduleHandler) Serialize(value interface{}) ([]byte, error) {
	return stringHandler{}.Serialize(value)
}

func (moduleHandler) Deserialize(data []byte) (interface{}, error) {
	return stringHandler{}.Deserialize(data)
}

func withoutKey(c Constraints, key string) Constraints {
	return withoutKeys(c, key)
}

func withoutKeys(c Constraints, keys ...string) Constraints {
	if c == nil {
		return nil
	}
	skip := make(map[string]bool, len(keys))
	for _, k := range keys {
		skip[k] = true
	}
	out := make(Constraints, len(c))
	for k, v := range c {
		if !skip[k] {
			out[k] = v
		}
	}
	return out
}
