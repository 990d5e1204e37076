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
	"sync"

	"google.golang.org/grpc"

	"golang.org/x/time/rate"
)

// RateLimiter throttles update_variable/update_variables calls per
// session, per §6 AMBIENT's SESSION_UPDATE_RATE_LIMIT. A zero rate
// disables it. Sessions are bucketed lazily; stale buckets outlive their
// session, which is acceptable since the resulting map growth is bounded
// by a server's total distinct session count over its lifetime and this
// is a development/ops knob, not a hard resource guarantee.
type RateLimiter struct {
	ratePerSec float64

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewRateLimiter builds a limiter; ratePerSec <= 0 disables limiting.
func NewRateLimiter(ratePerSec float64) *RateLimiter {
	return &RateLimiter{ratePerSec: ratePerSec, buckets: make(map[string]*rate.Limiter)}
}

func (rl *RateLimiter) limiterFor(sessionID string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	l, ok := rl.buckets[sessionID]
	if !ok {
		burst := int(rl.ratePerSec)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(rl.ratePerSec), burst)
		rl.buckets[sessionID] = l
	}
	return l
}

// rateLimitedMethods are the only ops subject to SESSION_UPDATE_RATE_LIMIT,
// per §6's name ("update rate limit" scopes writes, not reads).
var rateLimitedMethods = map[string]bool{
	"UpdateVariable":  true,
	"UpdateVariables": true,
}

// hasSessionID is implemented by the two rate-limited request structs via
// their sessionID() accessor below.
type hasSessionID interface {
	sessionID() string
}

func (r *updateVariableRequest) sessionID() string  { return r.SessionID }
func (r *updateVariablesRequest) sessionID() string { return r.SessionID }

// Unary returns a grpc.UnaryServerInterceptor that throttles the two
// write ops by session id. unaryHandler decodes the request before
// invoking the interceptor chain, so req here is already the concrete
// *updateVariableRequest/*updateVariablesRequest, not raw bytes.
func (rl *RateLimiter) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if rl.ratePerSec <= 0 || !rateLimitedMethods[methodNameOf(info.FullMethod)] {
			return handler(ctx, req)
		}
		withSession, ok := req.(hasSessionID)
		if !ok {
			return handler(ctx, req)
		}
		if !rl.limiterFor(withSession.sessionID()).Allow() {
			return &result{Error: rateLimitedErrString("update rate limit exceeded for session")}, nil
		}
		return handler(ctx, req)
	}
}

func methodNameOf(fullMethod string) string {
	for i := len(fullMethod) - 1; i >= 0; i-- {
		if fullMethod[i] == '/' {
			return fullMethod[i+1:]
		}
	}
	return fullMethod
}
