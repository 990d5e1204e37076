/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package rpc

import (
	"context"
	"strings"
	"testing"

	"google.golang.org/grpc"
)

func TestRateLimiterThrottlesUpdateVariable(t *testing.T) {
	rl := NewRateLimiter(1)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + serviceName + "/UpdateVariable"}
	req := &updateVariableRequest{SessionID: "s1"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	if _, err := rl.Unary()(context.Background(), req, info, handler); err != nil {
		t.Fatalf("first call should pass: %v", err)
	}
	resp, err := rl.Unary()(context.Background(), req, info, handler)
	if err != nil {
		t.Fatalf("rate-limited call should be a wire error, not a transport error: %v", err)
	}
	r, ok := resp.(*result)
	if !ok || !strings.HasPrefix(r.Error, rateLimitedPrefix+":") {
		t.Fatalf("expected a rate_limited: wire error, got %#v", resp)
	}
}

func TestRateLimiterScopesPerSession(t *testing.T) {
	rl := NewRateLimiter(1)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + serviceName + "/UpdateVariable"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	if _, err := rl.Unary()(context.Background(), &updateVariableRequest{SessionID: "s1"}, info, handler); err != nil {
		t.Fatalf("s1 first call: %v", err)
	}
	if _, err := rl.Unary()(context.Background(), &updateVariableRequest{SessionID: "s2"}, info, handler); err != nil {
		t.Fatalf("a different session must have its own bucket: %v", err)
	}
}

func TestRateLimiterSkipsReadMethods(t *testing.T) {
	rl := NewRateLimiter(0.0001)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + serviceName + "/GetVariable"}
	req := &identifierRequest{SessionID: "s1"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	for i := 0; i < 5; i++ {
		if _, err := rl.Unary()(context.Background(), req, info, handler); err != nil {
			t.Fatalf("read ops must never be rate limited, call %d: %v", i, err)
		}
	}
}

func TestRateLimiterDisabledWhenRateNonPositive(t *testing.T) {
	rl := NewRateLimiter(0)
	info := &grpc.UnaryServerInfo{FullMethod: "/" + serviceName + "/UpdateVariable"}
	req := &updateVariableRequest{SessionID: "s1"}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) { return "ok", nil }

	for i := 0; i < 10; i++ {
		if _, err := rl.Unary()(context.Background(), req, info, handler); err != nil {
			t.Fatalf("disabled limiter must never throttle, call %d: %v", i, err)
		}
	}
}
