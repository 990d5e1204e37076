/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import "encoding/json"

// embeddingHandler: an ordered sequence of floats, constrained by an exact
// "dimension" (§4.2). The JSON wire form is the required representation;
// a compact binary form is optional per §9 and lives in the codec's binary
// path (internal/vartype/binary.go), not here.
type embeddingHandler struct{}

func (embeddingHandler) Validate(raw interface{}) (interface{}, error) {
	switch vs := raw.(type) {
	case []float64:
		out := make([]float64, len(vs))
		copy(out, vs)
		return out, nil
	case []interface{}:
		out := make([]float64, len(vs))
		for i, v := range vs {
			f, ok := toFloat64(v)
			if !ok {
				return nil, NewError(KindValidationFailed, "embedding: element %d (%v) is not numeric", i, v)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, NewError(KindValidationFailed, "embedding: %v is not a numeric sequence", raw)
}

func (embeddingHandler) ValidateConstraints(value interface{}, c Constraints) error {
	fs, ok := value.([]float64)
	if !ok {
		return NewError(KindInternal, "embedding constraint check given %T", value)
	}
	if dim, ok := constraintInt(c, "dimension"); ok && int64(len(fs)) != dim {
		return NewError(KindConstraintViolation, "embedding dimension %d does not match required %d", len(fs), dim)
	}
	return nil
}

func (embeddingHandler) Serialize(value interface{}) ([]byte, error) {
	fs, ok := value.([]float64)
	if !ok {
		return nil, NewError(KindInternal, "embedding serialize given %T", value)
	}
	wire := make([]interface{}, len(fs))
	for i, f := range fs {
		wire[i] = floatWire(f)
	}
	return jsonSerialize(wire)
}

func (embeddingHandler) Deserialize(data []byte) (interface{}, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, NewError(KindInternal, "embedding deserialize: %v", err)
	}
	out := make([]float64, len(raws))
	for i, r := range raws {
		var jv interface{}
		if err := json.Unmarshal(r, &jv); err != nil {
			return nil, NewError(KindInternal, "embedding deserialize element %d: %v", i, err)
		}
		f, ok := decodeFloatWire(jv)
		if !ok {
			return nil, NewError(KindInternal, "embedding deserialize: element %d not numeric", i)
		}
		out[i] = f
	}
	return out, nil
}
