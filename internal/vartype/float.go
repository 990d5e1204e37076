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

type floatHandler struct{}

func (floatHandler) Validate(raw interface{}) (interface{}, error) {
	if f, ok := toFloat64(raw); ok {
		return f, nil
	}
	return nil, NewError(KindValidationFailed, "float: %v is not numeric", raw)
}

func (floatHandler) ValidateConstraints(value interface{}, c Constraints) error {
	f, ok := value.(float64)
	if !ok {
		return NewError(KindInternal, "float constraint check given non-float %T", value)
	}
	// Special values always bypass bounds per §4.2.
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return nil
	}
	if min, ok := constraintFloat(c, "min"); ok && f < min {
		return NewError(KindConstraintViolation, "float %.17g below min %.17g", f, min)
	}
	if max, ok := constraintFloat(c, "max"); ok && f > max {
		return NewError(KindConstraintViolation, "float %.17g above max %.17g", f, max)
	}
	return nil
}

func (floatHandler) Serialize(value interface{}) ([]byte, error) {
	f, ok := value.(float64)
	if !ok {
		return nil, NewError(KindInternal, "float serialize given non-float %T", value)
	}
	return jsonSerialize(floatWire(f))
}

func (floatHandler) Deserialize(data []byte) (interface{}, error) {
	var jv interface{}
	if err := json.Unmarshal(data, &jv); err != nil {
		return nil, NewError(KindInternal, "float deserialize: %v", err)
	}
	f, ok := decodeFloatWire(jv)
	if !ok {
		return nil, NewError(KindInternal, "float deserialize: %v is not numeric", jv)
	}
	return f, nil
}

// constraintFloat extracts a numeric constraint value regardless of whether
// it arrived as a JSON number (float64) or an integer literal.
func constraintFloat(c Constraints, key string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	v, ok := c[key]
	if !ok {
		return 0, false
	}
	return toFloat64(v)
}
