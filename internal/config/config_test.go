/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package config

import (
	"testing"
	"time"

	"github.com/varbridge/varbridge/internal/log"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"GRPC_BIND_ADDRESS", "GRPC_PORT", "SESSION_DEFAULT_TTL",
		"VARBRIDGE_JWT_SECRET", "SESSION_UPDATE_RATE_LIMIT",
		"VARBRIDGE_LOG_LEVEL", "VARBRIDGE_INTROSPECT_ADDR",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddress != "127.0.0.1" {
		t.Errorf("expected default bind address 127.0.0.1, got %s", cfg.BindAddress)
	}
	if cfg.SessionDefaultTTL != 3600*time.Second {
		t.Errorf("expected default ttl 3600s, got %s", cfg.SessionDefaultTTL)
	}
	if cfg.LogLevel != log.INFO {
		t.Errorf("expected default log level INFO, got %v", cfg.LogLevel)
	}
	if len(cfg.JWTSecret) != 0 {
		t.Errorf("expected no JWT secret by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GRPC_BIND_ADDRESS", "0.0.0.0")
	t.Setenv("GRPC_PORT", "9090")
	t.Setenv("SESSION_DEFAULT_TTL", "120")
	t.Setenv("VARBRIDGE_JWT_SECRET", "topsecret")
	t.Setenv("SESSION_UPDATE_RATE_LIMIT", "5.5")
	t.Setenv("VARBRIDGE_LOG_LEVEL", "DEBUG")
	t.Setenv("VARBRIDGE_INTROSPECT_ADDR", ":9191")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddress != "0.0.0.0" || cfg.Port != 9090 {
		t.Errorf("unexpected bind address/port: %s:%d", cfg.BindAddress, cfg.Port)
	}
	if cfg.SessionDefaultTTL != 120*time.Second {
		t.Errorf("expected 120s ttl, got %s", cfg.SessionDefaultTTL)
	}
	if string(cfg.JWTSecret) != "topsecret" {
		t.Errorf("expected JWT secret to round-trip")
	}
	if cfg.SessionUpdateRateHz != 5.5 {
		t.Errorf("expected rate 5.5, got %v", cfg.SessionUpdateRateHz)
	}
	if cfg.LogLevel != log.DEBUG {
		t.Errorf("expected DEBUG level, got %v", cfg.LogLevel)
	}
	if cfg.IntrospectAddr != ":9191" {
		t.Errorf("expected introspect addr to round-trip")
	}
}

func TestLoadRejectsInvalidTTL(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_DEFAULT_TTL", "-5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected a non-positive TTL to be rejected")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("VARBRIDGE_LOG_LEVEL", "VERBOSE")
	if _, err := Load(); err == nil {
		t.Fatalf("expected an unrecognized log level to be rejected")
	}
}

func TestLoadRejectsNegativeRateLimit(t *testing.T) {
	clearEnv(t)
	t.Setenv("SESSION_UPDATE_RATE_LIMIT", "-1")
	if _, err := Load(); err == nil {
		t.Fatalf("expected a negative rate limit to be rejected")
	}
}
