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
	"math"
)

type integerHandler struct{}

func (integerHandler) Validate(raw interface{}) (interface{}, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, NewError(KindValidationFailed, "integer: %v is not finite", v)
		}
		if v != math.Trunc(v) {
			return nil, NewError(KindValidationFailed, "integer: %v has a fractional part", v)
		}
		return int64(v), nil
	}
	return nil, NewError(KindValidationFailed, "integer: %v is not an integer", raw)
}

func (integerHandler) ValidateConstraints(value interface{}, c Constraints) error {
	i, ok := value.(int64)
	if !ok {
		return NewError(KindInternal, "integer constraint check given non-int %T", value)
	}
	if min, ok := constraintInt(c, "min"); ok && i < min {
		return NewError(KindConstraintViolation, "integer %d below min %d", i, min)
	}
	if max, ok := constraintInt(c, "max"); ok && i > max {
		return NewError(KindConstraintViolation, "integer %d above max %d", i, max)
	}
	return nil
}

func (integerHandler) Serialize(value interface{}) ([]byte, error) {
	i, ok := value.(int64)
	if !ok {
		return nil, NewError(KindInternal, "integer serialize given non-int %T", value)
	}
	return jsonSerialize(i)
}

func (integerHandler) Deserialize(data []byte) (interface{}, error) {
	var i int64
	if err := json.Unmarshal(data, &i); err != nil {
		return nil, NewError(KindInternal, "integer deserialize: %v", err)
	}
	return i, nil
}

func constraintInt(c Constraints, key string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	return toInt64(v)
}
