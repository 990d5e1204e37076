/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import "encoding/json"

// tensorHandler: a nested numeric array, constrained by an ordered "shape"
// (dimensions matched recursively) and an informational "dtype" (§4.2).
// The normalized in-memory form is a tree of []interface{} with float64
// leaves, mirroring the JSON shape exactly.
type tensorHandler struct{}

func (tensorHandler) Validate(raw interface{}) (interface{}, error) {
	return normalizeTensor(raw, 0)
}

func normalizeTensor(raw interface{}, depth int) (interface{}, error) {
	if depth > 64 {
		return nil, NewError(KindValidationFailed, "tensor: nesting too deep")
	}
	switch vs := raw.(type) {
	case []interface{}:
		out := make([]interface{}, len(vs))
		for i, v := range vs {
			n, err := normalizeTensor(v, depth+1)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case []float64:
		out := make([]interface{}, len(vs))
		for i, v := range vs {
			out[i] = v
		}
		return out, nil
	default:
		f, ok := toFloat64(raw)
		if !ok {
			return nil, NewError(KindValidationFailed, "tensor: leaf %v is not numeric", raw)
		}
		return f, nil
	}
}

func (tensorHandler) ValidateConstraints(value interface{}, c Constraints) error {
	if dtype, ok := c["dtype"]; ok {
		if s, ok := dtype.(string); ok {
			switch s {
			case "float32", "float64", "int32", "int64":
			default:
				return NewError(KindConstraintViolation, "tensor: unrecognized dtype %q", s)
			}
		}
	}
	shapeRaw, ok := c["shape"]
	if !ok {
		return nil
	}
	shape, err := toIntSlice(shapeRaw)
	if err != nil {
		return NewError(KindConstraintViolation, "tensor: invalid shape constraint: %v", err)
	}
	return checkShape(value, shape)
}

func checkShape(value interface{}, shape []int64) error {
	if len(shape) == 0 {
		// A scalar leaf is expected here.
		if _, ok := value.(float64); !ok {
			return NewError(KindConstraintViolation, "tensor: expected scalar leaf at full depth, got %T", value)
		}
		return nil
	}
	vs, ok := value.([]interface{})
	if !ok {
		return NewError(KindConstraintViolation, "tensor: expected a dimension of length %d, got %T", shape[0], value)
	}
	if int64(len(vs)) != shape[0] {
		return NewError(KindConstraintViolation, "tensor: dimension length %d does not match required %d", len(vs), shape[0])
	}
	for _, v := range vs {
		if err := checkShape(v, shape[1:]); err != nil {
			return err
		}
	}
	return nil
}

func toIntSlice(v interface{}) ([]int64, error) {
	switch vs := v.(type) {
	case []interface{}:
		out := make([]int64, len(vs))
		for i, e := range vs {
			n, ok := toInt64(e)
			if !ok {
				return nil, NewError(KindValidationFailed, "shape element %v is not an integer", e)
			}
			out[i] = n
		}
		return out, nil
	case []int64:
		return vs, nil
	case []int:
		out := make([]int64, len(vs))
		for i, e := range vs {
			out[i] = int64(e)
		}
		return out, nil
	}
	return nil, NewError(KindValidationFailed, "shape constraint is not a sequence")
}

func (tensorHandler) Serialize(value interface{}) ([]byte, error) {
	return jsonSerialize(value)
}

func (tensorHandler) Deserialize(data []byte) (interface{}, error) {
	var jv interface{}
	if err := json.Unmarshal(data, &jv); err != nil {
		return nil, NewError(KindInternal, "tensor deserialize: %v", err)
	}
	return normalizeTensor(jv, 0)
}
