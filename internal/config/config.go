/*************************************************************************
 * Copyright 2024 Varbridge, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config resolves the server's environment-variable surface, per
// §6's EXTERNAL INTERFACES and its AMBIENT additions. The server has no
// persisted config file (§6 "Persisted state: None"), so every knob is a
// single os.Getenv lookup with a validated default rather than a file
// parser — gravwell reaches for gcfg only where it parses structured ini
// files (gravwell/manager, gravwell/ingest/attach); a half-dozen scalar
// env vars has no file to parse and gets the same direct os.Getenv
// lookups gravwell itself uses for its own environment-variable
// overrides (see manager/config.go).
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/varbridge/varbridge/internal/log"
)

// Config is the fully resolved, validated server configuration.
type Config struct {
	BindAddress string
	Port        int

	SessionDefaultTTL time.Duration

	JWTSecret           []byte
	SessionUpdateRateHz float64
	LogLevel            log.Level
	IntrospectAddr      string
}

// Load resolves Config from the process environment, applying the
// defaults documented in §6.
func Load() (Config, error) {
	c := Config{
		BindAddress:       getEnv("GRPC_BIND_ADDRESS", "127.0.0.1"),
		SessionDefaultTTL: 3600 * time.Second,
	}

	port, err := getEnvInt("GRPC_PORT", 0)
	if err != nil {
		return Config{}, err
	}
	c.Port = port

	if raw := os.Getenv("SESSION_DEFAULT_TTL"); raw != "" {
		secs, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_DEFAULT_TTL: %w", err)
		}
		if secs <= 0 {
			return Config{}, fmt.Errorf("SESSION_DEFAULT_TTL must be positive, got %d", secs)
		}
		c.SessionDefaultTTL = time.Duration(secs) * time.Second
	}

	c.JWTSecret = []byte(os.Getenv("VARBRIDGE_JWT_SECRET"))

	if raw := os.Getenv("SESSION_UPDATE_RATE_LIMIT"); raw != "" {
		rate, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Config{}, fmt.Errorf("SESSION_UPDATE_RATE_LIMIT: %w", err)
		}
		if rate < 0 {
			return Config{}, fmt.Errorf("SESSION_UPDATE_RATE_LIMIT must not be negative, got %v", rate)
		}
		c.SessionUpdateRateHz = rate
	}

	level, err := parseLogLevel(getEnv("VARBRIDGE_LOG_LEVEL", "INFO"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	c.IntrospectAddr = os.Getenv("VARBRIDGE_INTROSPECT_ADDR")

	return c, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func parseLogLevel(s string) (log.Level, error) {
	switch s {
	case "OFF":
		return log.OFF, nil
	case "DEBUG":
		return log.DEBUG, nil
	case "INFO":
		return log.INFO, nil
	case "WARN":
		return log.WARN, nil
	case "ERROR":
		return log.ERROR, nil
	case "CRITICAL":
		return log.CRITICAL, nil
	case "FATAL":
		return log.FATAL, nil
	default:
		return 0, fmt.Errorf("VARBRIDGE_LOG_LEVEL: unrecognized level %q", s)
	}
}
