/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package vartype

import "testing"

func TestFloatConstraints(t *testing.T) {
	r := NewRegistry()
	v, err := r.ValidateValue(Float, 1.5, Constraints{"min": 0.0, "max": 2.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(float64) != 1.5 {
		t.Fatalf("unexpected normalized value: %v", v)
	}
	if _, err := r.ValidateValue(Float, 3.0, Constraints{"min": 0.0, "max": 2.0}); err == nil {
		t.Fatal("expected constraint violation")
	} else if KindOf(err) != KindConstraintViolation {
		t.Fatalf("expected KindConstraintViolation, got %v", KindOf(err))
	}
}

func TestIntegerRejectsTruncation(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Validate(Integer, 1.5); err == nil {
		t.Fatal("expected validation failure for fractional integer")
	}
	v, err := r.Validate(Integer, 4.0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.(int64) != 4 {
		t.Fatalf("unexpected value: %v", v)
	}
}

func TestStringConstraintsPatternAndEnum(t *testing.T) {
	r := NewRegistry()
	if err := r.ValidateConstraints(String, "abc", Constraints{"min_length": int64(1), "max_length": int64(5)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateConstraints(String, "toolong", Constraints{"max_length": int64(3)}); err == nil {
		t.Fatal("expected max_length violation")
	}
	if err := r.ValidateConstraints(String, "abc123", Constraints{"pattern": `^[a-z]+\d+$`}); err != nil {
		t.Fatalf("unexpected pattern failure: %v", err)
	}
	if err := r.ValidateConstraints(String, "xyz", Constraints{"enum": []interface{}{"abc", "def"}}); err == nil {
		t.Fatal("expected enum violation")
	}
}

func TestChoiceRequiresChoicesConstraint(t *testing.T) {
	r := NewRegistry()
	if err := r.ValidateConstraints(Choice, "red", Constraints{"choices": []interface{}{"red", "blue"}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateConstraints(Choice, "green", Constraints{"choices": []interface{}{"red", "blue"}}); err == nil {
		t.Fatal("expected constraint violation for value outside choices")
	}
}

func TestModuleNamespace(t *testing.T) {
	r := NewRegistry()
	if err := r.ValidateConstraints(Module, "optimizer.bayes", Constraints{"namespace": "optimizer."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateConstraints(Module, "sampler.grid", Constraints{"namespace": "optimizer."}); err == nil {
		t.Fatal("expected namespace violation")
	}
}

func TestEmbeddingDimension(t *testing.T) {
	r := NewRegistry()
	v, err := r.Validate(Embedding, []interface{}{1.0, 2.0, 3.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateConstraints(Embedding, v, Constraints{"dimension": int64(3)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.ValidateConstraints(Embedding, v, Constraints{"dimension": int64(4)}); err == nil {
		t.Fatal("expected dimension mismatch")
	}
}

func TestTensorShape(t *testing.T) {
	r := NewRegistry()
	raw := []interface{}{
		[]interface{}{1.0, 2.0},
		[]interface{}{3.0, 4.0},
	}
	v, err := r.Validate(Tensor, raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	shape := []interface{}{int64(2), int64(2)}
	if err := r.ValidateConstraints(Tensor, v, Constraints{"shape": shape}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	badShape := []interface{}{int64(3), int64(2)}
	if err := r.ValidateConstraints(Tensor, v, Constraints{"shape": badShape}); err == nil {
		t.Fatal("expected shape mismatch")
	}
}

func TestBooleanForms(t *testing.T) {
	r := NewRegistry()
	for _, raw := range []interface{}{true, "true", "TRUE", float64(1), int64(1)} {
		v, err := r.Validate(Boolean, raw)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", raw, err)
		}
		if v.(bool) != true {
			t.Fatalf("expected true for %v, got %v", raw, v)
		}
	}
	for _, raw := range []interface{}{false, "false", "FALSE", float64(0), int64(0)} {
		v, err := r.Validate(Boolean, raw)
		if err != nil {
			t.Fatalf("unexpected error for %v: %v", raw, err)
		}
		if v.(bool) != false {
			t.Fatalf("expected false for %v, got %v", raw, v)
		}
	}
}
