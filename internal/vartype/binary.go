/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import (
	"encoding/binary"
	"math"

	"github.com/klauspost/compress/s2"
)

// binaryTypeSuffix marks a type_url as carrying the optional compact
// binary payload for large values, per §9's design note. Only embedding
// has a binary codec; a "+binary" envelope of any other type is rejected.
// JSON remains the default and the only form required for correctness.
const binaryTypeSuffix = "+binary"

// EncodeEmbeddingBinary renders an embedding as s2-compressed
// little-endian float64 data, wrapped in the AnyValue envelope with a
// "+binary" type_url suffix. Callers choose this path only when the JSON
// form would exceed a size threshold; decode is transparent either way.
func EncodeEmbeddingBinary(fs []float64) (AnyValue, error) {
	raw := make([]byte, 8*len(fs))
	for i, f := range fs {
		binary.LittleEndian.PutUint64(raw[i*8:], math.Float64bits(f))
	}
	compressed := s2.Encode(nil, raw)
	return AnyValue{
		TypeURL: typeURLFor(Embedding) + binaryTypeSuffix,
		Value:   compressed,
	}, nil
}

// DecodeEmbeddingBinary reverses EncodeEmbeddingBinary.
func DecodeEmbeddingBinary(a AnyValue) ([]float64, error) {
	raw, err := s2.Decode(nil, a.Value)
	if err != nil {
		return nil, NewError(KindTypeMismatch, "decode binary embedding: %v", err)
	}
	if len(raw)%8 != 0 {
		return nil, NewError(KindTypeMismatch, "decode binary embedding: length %d not a multiple of 8", len(raw))
	}
	out := make([]float64, len(raw)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return out, nil
}

// IsBinaryEnvelope reports whether a's type_url carries the binary suffix.
func IsBinaryEnvelope(a AnyValue) bool {
	return len(a.TypeURL) > len(binaryTypeSuffix) &&
		a.TypeURL[len(a.TypeURL)-len(binaryTypeSuffix):] == binaryTypeSuffix
}

// BaseType strips a "+binary" suffix (if present) and returns the
// underlying declared type.
func BaseType(a AnyValue) Type {
	tag := TagFromTypeURL(a.TypeURL)
	if len(tag) > len(binaryTypeSuffix) && tag[len(tag)-len(binaryTypeSuffix):] == binaryTypeSuffix {
		tag = tag[:len(tag)-len(binaryTypeSuffix)]
	}
	return Type(tag)
}
