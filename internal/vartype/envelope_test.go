/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import (
	"math"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		typ  Type
		v    interface{}
	}{
		{"float", Float, 1.5},
		{"integer", Integer, int64(42)},
		{"string", String, "hello"},
		{"boolean", Boolean, true},
		{"choice", Choice, "red"},
		{"module", Module, "optimizer.bayes"},
		{"embedding", Embedding, []float64{1, 2, 3}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			env, err := EncodeAny(c.typ, c.v)
			if err != nil {
				t.Fatalf("encode: %v", err)
			}
			got, err := DecodeAny(env, c.typ)
			if err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !valuesEqual(got, c.v) {
				t.Fatalf("round trip mismatch: got %#v want %#v", got, c.v)
			}
		})
	}
}

func valuesEqual(a, b interface{}) bool {
	af, aok := a.([]float64)
	bf, bok := b.([]float64)
	if aok && bok {
		if len(af) != len(bf) {
			return false
		}
		for i := range af {
			if af[i] != bf[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

func TestSpecialFloatsRoundTrip(t *testing.T) {
	for _, f := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		env, err := EncodeAny(Float, f)
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		got, err := DecodeAny(env, Float)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		gf := got.(float64)
		if math.IsNaN(f) {
			if !math.IsNaN(gf) {
				t.Fatalf("expected NaN, got %v", gf)
			}
			continue
		}
		if gf != f {
			t.Fatalf("expected %v, got %v", f, gf)
		}
	}
}

func TestSpecialFloatWireStrings(t *testing.T) {
	env, err := EncodeAny(Float, math.Inf(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !jsonContains(env.Value, `"Infinity"`) {
		t.Fatalf("expected wire payload to contain the literal string Infinity, got %s", env.Value)
	}
}

func jsonContains(raw []byte, sub string) bool {
	s := string(raw)
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

func TestDecodeTypeMismatch(t *testing.T) {
	env, err := EncodeAny(String, "x")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	_, err = DecodeAny(env, Integer)
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if KindOf(err) != KindTypeMismatch {
		t.Fatalf("expected KindTypeMismatch, got %v", KindOf(err))
	}
}

func TestBinaryEmbeddingRoundTrip(t *testing.T) {
	fs := []float64{1.5, -2.25, 0, 3.75}
	env, err := EncodeEmbeddingBinary(fs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !IsBinaryEnvelope(env) {
		t.Fatal("expected binary envelope marker")
	}
	if BaseType(env) != Embedding {
		t.Fatalf("expected base type embedding, got %v", BaseType(env))
	}
	got, err := DecodeEmbeddingBinary(env)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(fs) {
		t.Fatalf("length mismatch: got %d want %d", len(got), len(fs))
	}
	for i := range fs {
		if got[i] != fs[i] {
			t.Fatalf("element %d: got %v want %v", i, got[i], fs[i])
		}
	}
}

func TestDecodeAnyTagDispatchesBinaryEnvelope(t *testing.T) {
	fs := []float64{4, 5, 6}
	env, err := EncodeEmbeddingBinary(fs)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	typ, v, err := DecodeAnyTag(env)
	if err != nil {
		t.Fatalf("DecodeAnyTag: %v", err)
	}
	if typ != Embedding {
		t.Fatalf("expected Embedding, got %v", typ)
	}
	got, ok := v.([]float64)
	if !ok || len(got) != len(fs) {
		t.Fatalf("expected []float64 of length %d, got %T %v", len(fs), v, v)
	}
	for i := range fs {
		if got[i] != fs[i] {
			t.Fatalf("element %d: got %v want %v", i, got[i], fs[i])
		}
	}

	got2, err := DecodeAny(env, Embedding)
	if err != nil {
		t.Fatalf("DecodeAny: %v", err)
	}
	if fsGot, ok := got2.([]float64); !ok || len(fsGot) != len(fs) {
		t.Fatalf("DecodeAny: expected []float64 of length %d, got %T %v", len(fs), got2, got2)
	}

	if _, err := DecodeAny(env, Tensor); KindOf(err) != KindTypeMismatch {
		t.Fatalf("expected TypeMismatch decoding binary embedding as tensor, got %v", err)
	}
}
