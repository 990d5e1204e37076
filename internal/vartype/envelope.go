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

// specialFloat strings that MUST round-trip through the wire rather than
// through JSON's native (lossy, non-conformant) number encoding.
const (
	posInf = "Infinity"
	negInf = "-Infinity"
	nanStr = "NaN"
)

// AnyValue is the wire envelope described in §4.1/§6: a type tag plus a
// JSON-encoded payload. TypeURL is the generic-proto "any" message's
// redundant fast-rejection field; its final path segment must repeat Tag.
type AnyValue struct {
	TypeURL string          `json:"type_url"`
	Value   json.RawMessage `json:"value"`
}

// wirePayload is the inner JSON object carried as AnyValue.Value.
type wirePayload struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// typeURLFor builds the conventional type_url for a tag: any real protobuf
// type URL convention (a "/" separated path) with the tag as the final
// segment, so a decoder can fast-reject on a split("/") without parsing
// the JSON payload.
func typeURLFor(t Type) string {
	return "type.googleapis.com/varbridge.v1/" + string(t)
}

// TagFromTypeURL extracts the final path segment of a type_url.
func TagFromTypeURL(typeURL string) string {
	for i := len(typeURL) - 1; i >= 0; i-- {
		if typeURL[i] == '/' {
			return typeURL[i+1:]
		}
	}
	return typeURL
}

// EncodeAny encodes a native Go value of the given type into the wire
// envelope. It performs no constraint checking — that is the registry's
// job — only the (tag, payload) <-> native mapping and the special-float
// string substitution required by §4.1.
func EncodeAny(t Type, v interface{}) (AnyValue, error) {
	jv, err := encodeJSONValue(t, v)
	if err != nil {
		return AnyValue{}, err
	}
	wp := wirePayload{Type: string(t), Value: jv}
	raw, err := json.Marshal(wp)
	if err != nil {
		return AnyValue{}, NewError(KindInternal, "marshal envelope: %v", err)
	}
	return AnyValue{TypeURL: typeURLFor(t), Value: raw}, nil
}

// DecodeAny decodes the wire envelope, verifying it declares `expect` both
// in the type_url fast-path and in the payload's own "type" field. A
// mismatch on either axis fails closed with TypeMismatch. A type_url
// carrying the "+binary" suffix (see binary.go) is detected here and
// dispatched to the compact s2-compressed decoder instead of the default
// JSON wirePayload path.
func DecodeAny(a AnyValue, expect Type) (interface{}, error) {
	if IsBinaryEnvelope(a) {
		if base := BaseType(a); base != expect {
			return nil, NewError(KindTypeMismatch, "type_url declares %q, expected %q", base, expect)
		}
		return decodeBinaryEnvelope(a)
	}
	if tag := TagFromTypeURL(a.TypeURL); tag != "" && tag != string(expect) {
		return nil, NewError(KindTypeMismatch, "type_url declares %q, expected %q", tag, expect)
	}
	var wp wirePayload
	if err := json.Unmarshal(a.Value, &wp); err != nil {
		return nil, NewError(KindInternal, "unmarshal envelope: %v", err)
	}
	if wp.Type != string(expect) {
		return nil, NewError(KindTypeMismatch, "payload declares %q, expected %q", wp.Type, expect)
	}
	return decodeJSONValue(expect, wp.Value)
}

// DecodeAnyTag decodes the envelope using the tag it declares itself,
// returning the resolved Type alongside the native value. Used where the
// caller does not yet know the expected type (e.g. RegisterVariable). A
// "+binary" type_url suffix is detected and dispatched the same way as in
// DecodeAny, so RegisterVariable/UpdateVariable accept either wire form.
func DecodeAnyTag(a AnyValue) (Type, interface{}, error) {
	if IsBinaryEnvelope(a) {
		base := BaseType(a)
		if !base.Valid() {
			return Unspecified, nil, NewError(KindInvalidType, "unknown type %q", base)
		}
		v, err := decodeBinaryEnvelope(a)
		if err != nil {
			return Unspecified, nil, err
		}
		return base, v, nil
	}

	var wp wirePayload
	if err := json.Unmarshal(a.Value, &wp); err != nil {
		return Unspecified, nil, NewError(KindInternal, "unmarshal envelope: %v", err)
	}
	t, err := ParseType(wp.Type)
	if err != nil {
		return Unspecified, nil, err
	}
	if tag := TagFromTypeURL(a.TypeURL); tag != "" && tag != wp.Type {
		return Unspecified, nil, NewError(KindTypeMismatch, "type_url declares %q, payload declares %q", tag, wp.Type)
	}
	v, err := decodeJSONValue(t, wp.Value)
	if err != nil {
		return Unspecified, nil, err
	}
	return t, v, nil
}

// decodeBinaryEnvelope dispatches a "+binary" envelope to the codec for
// its base type. Embedding is the only type EncodeEmbeddingBinary
// supports today; the suffix is defined generically in binary.go so a
// future Tensor binary codec can join it here.
func decodeBinaryEnvelope(a AnyValue) (interface{}, error) {
	switch BaseType(a) {
	case Embedding:
		return DecodeEmbeddingBinary(a)
	default:
		return nil, NewError(KindInvalidType, "no binary codec for type %q", BaseType(a))
	}
}

func encodeJSONValue(t Type, v interface{}) (json.RawMessage, error) {
	switch t {
	case Float:
		f, ok := toFloat64(v)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected numeric value for float, got %T", v)
		}
		return json.Marshal(floatWire(f))
	case Integer:
		i, ok := toInt64(v)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected integral value for integer, got %T", v)
		}
		return json.Marshal(i)
	case String, Choice, Module:
		s, ok := v.(string)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected string value, got %T", v)
		}
		return json.Marshal(s)
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected bool value, got %T", v)
		}
		return json.Marshal(b)
	case Embedding:
		fs, ok := v.([]float64)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected []float64 for embedding, got %T", v)
		}
		wire := make([]interface{}, len(fs))
		for i, f := range fs {
			wire[i] = floatWire(f)
		}
		return json.Marshal(wire)
	case Tensor:
		return json.Marshal(v)
	default:
		return nil, NewError(KindInvalidType, "unknown type %q", t)
	}
}

func decodeJSONValue(t Type, raw json.RawMessage) (interface{}, error) {
	switch t {
	case Float:
		var jv interface{}
		if err := json.Unmarshal(raw, &jv); err != nil {
			return nil, NewError(KindTypeMismatch, "decode float payload: %v", err)
		}
		f, ok := decodeFloatWire(jv)
		if !ok {
			return nil, NewError(KindTypeMismatch, "expected numeric or special-float string, got %v", jv)
		}
		return f, nil
	case Integer:
		var i int64
		if err := json.Unmarshal(raw, &i); err != nil {
			var f float64
			if jerr := json.Unmarshal(raw, &f); jerr == nil {
				return nil, NewError(KindTypeMismatch, "integer payload %v is not integral", f)
			}
			return nil, NewError(KindTypeMismatch, "decode integer payload: %v", err)
		}
		return i, nil
	case String, Choice, Module:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, NewError(KindTypeMismatch, "decode string payload: %v", err)
		}
		return s, nil
	case Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return b, nil
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return parseBoolText(s)
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err == nil {
			return f != 0, nil
		}
		return nil, NewError(KindTypeMismatch, "decode boolean payload")
	case Embedding:
		var raws []json.RawMessage
		if err := json.Unmarshal(raw, &raws); err != nil {
			return nil, NewError(KindTypeMismatch, "decode embedding payload: %v", err)
		}
		out := make([]float64, len(raws))
		for i, r := range raws {
			var jv interface{}
			if err := json.Unmarshal(r, &jv); err != nil {
				return nil, NewError(KindTypeMismatch, "decode embedding element %d: %v", i, err)
			}
			f, ok := decodeFloatWire(jv)
			if !ok {
				return nil, NewError(KindTypeMismatch, "embedding element %d is not numeric", i)
			}
			out[i] = f
		}
		return out, nil
	case Tensor:
		var jv interface{}
		if err := json.Unmarshal(raw, &jv); err != nil {
			return nil, NewError(KindTypeMismatch, "decode tensor payload: %v", err)
		}
		return jv, nil
	default:
		return nil, NewError(KindInvalidType, "unknown type %q", t)
	}
}

// floatWire renders f as its wire form: the special strings for
// +/-Inf and NaN, otherwise the float itself (json.Marshal already picks
// the shortest exact decimal representation for float64).
func floatWire(f float64) interface{} {
	switch {
	case math.IsInf(f, 1):
		return posInf
	case math.IsInf(f, -1):
		return negInf
	case math.IsNaN(f):
		return nanStr
	default:
		return f
	}
}

func decodeFloatWire(jv interface{}) (float64, bool) {
	switch v := jv.(type) {
	case float64:
		return v, true
	case string:
		switch v {
		case posInf:
			return math.Inf(1), true
		case negInf:
			return math.Inf(-1), true
		case nanStr:
			return math.NaN(), true
		}
	}
	return 0, false
}

func toFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, ok := decodeFloatWire(n)
		return f, ok
	}
	return 0, false
}

func toInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n), true
		}
	}
	return 0, false
}

func parseBoolText(s string) (bool, error) {
	switch s {
	case "true", "True", "TRUE":
		return true, nil
	case "false", "False", "FALSE":
		return false, nil
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, NewError(KindTypeMismatch, "cannot parse %q as boolean", s)
}
