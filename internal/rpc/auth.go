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

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// AuthInterceptor validates an HS256 bearer token on the "authorization"
// metadata key of every unary and streaming RPC (Unary and Stream). This
// is an AMBIENT addition (§6's
// VARBRIDGE_JWT_SECRET); unset secret disables it entirely, so the
// baseline spec behavior (no auth) is unchanged by default.
type AuthInterceptor struct {
	secret []byte
}

// NewAuthInterceptor builds an interceptor keyed on secret. A nil/empty
// secret makes every call pass through unauthenticated.
func NewAuthInterceptor(secret []byte) *AuthInterceptor {
	return &AuthInterceptor{secret: secret}
}

func (a *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if len(a.secret) == 0 {
			return handler(ctx, req)
		}
		if err := a.authenticate(ctx); err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

func (a *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if len(a.secret) == 0 {
			return handler(srv, ss)
		}
		if err := a.authenticate(ss.Context()); err != nil {
			return err
		}
		return handler(srv, ss)
	}
}

func (a *AuthInterceptor) authenticate(ctx context.Context) error {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return status.Error(codes.Unauthenticated, "missing metadata")
	}
	tokens := md.Get("authorization")
	if len(tokens) != 1 || tokens[0] == "" {
		return status.Error(codes.Unauthenticated, "missing authorization token")
	}
	_, err := jwt.Parse(tokens[0], func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, status.Error(codes.Unauthenticated, "unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return status.Errorf(codes.Unauthenticated, "invalid token: %v", err)
	}
	return nil
}
