/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import (
	"encoding/json"
	"fmt"
	"regexp"
)

type stringHandler struct{}

func (stringHandler) Validate(raw interface{}) (interface{}, error) {
	return validateStringLike(raw)
}

// validateStringLike implements §4.2's "a symbolic value is coerced to
// text; reject null" rule shared by string, choice, and module.
func validateStringLike(raw interface{}) (interface{}, error) {
	if raw == nil {
		return nil, NewError(KindValidationFailed, "string: null is not a valid value")
	}
	switch v := raw.(type) {
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	case bool, int, int32, int64, float64:
		return fmt.Sprintf("%v", v), nil
	}
	return nil, NewError(KindValidationFailed, "string: %v (%T) cannot be coerced to text", raw, raw)
}

func (stringHandler) ValidateConstraints(value interface{}, c Constraints) error {
	return validateStringConstraints(value, c)
}

func validateStringConstraints(value interface{}, c Constraints) error {
	s, ok := value.(string)
	if !ok {
		return NewError(KindInternal, "string constraint check given non-string %T", value)
	}
	if minLen, ok := constraintInt(c, "min_length"); ok && int64(len(s)) < minLen {
		return NewError(KindConstraintViolation, "string length %d below min_length %d", len(s), minLen)
	}
	if maxLen, ok := constraintInt(c, "max_length"); ok && int64(len(s)) > maxLen {
		return NewError(KindConstraintViolation, "string length %d above max_length %d", len(s), maxLen)
	}
	if pat, ok := c["pattern"]; ok {
		ps, _ := pat.(string)
		re, err := compilePattern(ps)
		if err != nil {
			return NewError(KindConstraintViolation, "string pattern %q invalid: %v", ps, err)
		}
		if !re.MatchString(s) {
			return NewError(KindConstraintViolation, "string %q does not match pattern %q", s, ps)
		}
	}
	if enumVals, ok := c["enum"]; ok {
		if !memberOfEnum(s, enumVals) {
			return NewError(KindConstraintViolation, "string %q is not in enum", s)
		}
	}
	return nil
}

// compilePattern compiles ps as a regexp; if it fails to compile (an
// invalid regex), it falls back to matching ps as a literal string via
// regexp.QuoteMeta, per §4.2's "fall back to literal escape if
// uncompilable".
func compilePattern(ps string) (*regexp.Regexp, error) {
	if re, err := regexp.Compile(ps); err == nil {
		return re, nil
	}
	return regexp.Compile(regexp.QuoteMeta(ps))
}

func memberOfEnum(s string, enumVals interface{}) bool {
	switch vs := enumVals.(type) {
	case []interface{}:
		for _, v := range vs {
			if str, ok := v.(string); ok && str == s {
				return true
			}
		}
	case []string:
		for _, v := range vs {
			if v == s {
				return true
			}
		}
	}
	return false
}

func (stringHandler) Serialize(value interface{}) ([]byte, error) {
	s, ok := value.(string)
	if !ok {
		return nil, NewError(KindInternal, "string serialize given non-string %T", value)
	}
	return jsonSerialize(s)
}

func (stringHandler) Deserialize(data []byte) (interface{}, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, NewError(KindInternal, "string deserialize: %v", err)
	}
	return s, nil
}
