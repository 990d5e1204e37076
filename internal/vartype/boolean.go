/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import "encoding/json"

type booleanHandler struct{}

func (booleanHandler) Validate(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		b, err := parseBoolText(v)
		if err != nil {
			return nil, NewError(KindValidationFailed, "boolean: %v", err)
		}
		return b, nil
	case float64:
		if v == 0 {
			return false, nil
		}
		if v == 1 {
			return true, nil
		}
	case int64:
		if v == 0 {
			return false, nil
		}
		if v == 1 {
			return true, nil
		}
	}
	return nil, NewError(KindValidationFailed, "boolean: %v is not a recognized boolean form", raw)
}

// ValidateConstraints is a no-op: §4.2 defines no constraints for boolean.
func (booleanHandler) ValidateConstraints(value interface{}, c Constraints) error {
	if _, ok := value.(bool); !ok {
		return NewError(KindInternal, "boolean constraint check given non-bool %T", value)
	}
	return nil
}

func (booleanHandler) Serialize(value interface{}) ([]byte, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, NewError(KindInternal, "boolean serialize given non-bool %T", value)
	}
	return jsonSerialize(b)
}

func (booleanHandler) Deserialize(data []byte) (interface{}, error) {
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, NewError(KindInternal, "boolean deserialize: %v", err)
	}
	return b, nil
}
