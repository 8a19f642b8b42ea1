// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/log"
)

// Environment variables read by Load.
const (
	EnvTransport      = "CORERPC_TRANSPORT"
	EnvAddress        = "CORERPC_ADDRESS"
	EnvCommand        = "CORERPC_COMMAND"
	EnvDialTimeout    = "CORERPC_DIAL_TIMEOUT"
	EnvKillOnClose    = "CORERPC_KILL_ON_CLOSE"
	EnvTerminateGrace = "CORERPC_TERMINATE_GRACE"
	EnvCallTimeout    = "CORERPC_CALL_TIMEOUT"
	EnvSendRate       = "CORERPC_SEND_RATE"
	EnvSendBurst      = "CORERPC_SEND_BURST"
	EnvLogLevel       = "CORERPC_LOG_LEVEL"
	EnvLogFormat      = "CORERPC_LOG_FORMAT"
	EnvMetricsEnabled = "CORERPC_METRICS_ENABLED"
	EnvMetricsListen  = "CORERPC_METRICS_LISTEN"
	EnvBreakerEnabled = "CORERPC_BREAKER_ENABLED"
	EnvBreakerLimit   = "CORERPC_BREAKER_THRESHOLD"
	EnvBreakerReset   = "CORERPC_BREAKER_RESET"
	EnvTraceEnabled   = "CORERPC_TELEMETRY_ENABLED"
	EnvTraceExporter  = "CORERPC_OTLP_EXPORTER"
	EnvTraceEndpoint  = "CORERPC_OTLP_ENDPOINT"
	EnvTraceSample    = "CORERPC_TRACE_SAMPLE_RATE"
)

// parseEnv reads key and converts it with parse. Unset, empty and invalid
// values yield defaultValue. The source of every value is logged.
func parseEnv[T any](logger zerolog.Logger, key string, defaultValue T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(key)
	if !ok {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value")
		return defaultValue
	}
	if v == "" {
		logger.Debug().
			Str("key", key).
			Interface("default", defaultValue).
			Str("source", "default").
			Msg("using default value (environment variable is empty)")
		return defaultValue
	}
	parsed, err := parse(v)
	if err != nil {
		logger.Warn().
			Err(err).
			Str("key", key).
			Str("value", v).
			Interface("default", defaultValue).
			Msg("invalid environment variable, using default")
		return defaultValue
	}
	logger.Debug().
		Str("key", key).
		Interface("value", parsed).
		Str("source", "environment").
		Msg("using environment variable")
	return parsed
}

func envLogger() zerolog.Logger {
	return log.WithComponent("config")
}

// ParseString reads a string from environment variable or returns default value.
func ParseString(key, defaultValue string) string {
	return parseEnv(envLogger(), key, defaultValue, func(s string) (string, error) { return s, nil })
}

// ParseInt reads an integer from environment variable or returns default value.
func ParseInt(key string, defaultValue int) int {
	return parseEnv(envLogger(), key, defaultValue, strconv.Atoi)
}

// ParseFloat reads a float64 from environment variable or returns default value.
func ParseFloat(key string, defaultValue float64) float64 {
	return parseEnv(envLogger(), key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// ParseDuration reads a duration in Go format (e.g. "5s") from environment
// variable or returns default value.
func ParseDuration(key string, defaultValue time.Duration) time.Duration {
	return parseEnv(envLogger(), key, defaultValue, time.ParseDuration)
}

// ParseBool reads a boolean from environment variable or returns default value.
// It accepts "true", "false", "1", "0", "yes", "no" (case-insensitive).
func ParseBool(key string, defaultValue bool) bool {
	return parseEnv(envLogger(), key, defaultValue, func(s string) (bool, error) {
		switch strings.ToLower(s) {
		case "true", "1", "yes":
			return true, nil
		case "false", "0", "no":
			return false, nil
		}
		return false, fmt.Errorf("not a boolean: %q", s)
	})
}

// ParseFields reads a whitespace-separated list such as a command line.
func ParseFields(key string, defaultValue []string) []string {
	return parseEnv(envLogger(), key, defaultValue, func(s string) ([]string, error) {
		fields := strings.Fields(s)
		if len(fields) == 0 {
			return nil, fmt.Errorf("no fields in %q", s)
		}
		return fields, nil
	})
}

// applyEnv overlays CORERPC_* variables onto cfg.
func applyEnv(cfg *Config) {
	t := &cfg.Transport
	t.Type = ParseString(EnvTransport, t.Type)
	t.Address = ParseString(EnvAddress, t.Address)
	t.Command = ParseFields(EnvCommand, t.Command)
	t.DialTimeout = ParseDuration(EnvDialTimeout, t.DialTimeout)
	t.KillOnClose = ParseBool(EnvKillOnClose, t.KillOnClose)
	t.TerminateGrace = ParseDuration(EnvTerminateGrace, t.TerminateGrace)

	c := &cfg.Client
	c.CallTimeout = ParseDuration(EnvCallTimeout, c.CallTimeout)
	c.SendRate = ParseFloat(EnvSendRate, c.SendRate)
	c.SendBurst = ParseInt(EnvSendBurst, c.SendBurst)

	cfg.Log.Level = strings.ToLower(ParseString(EnvLogLevel, cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(ParseString(EnvLogFormat, cfg.Log.Format))

	cfg.Metrics.Enabled = ParseBool(EnvMetricsEnabled, cfg.Metrics.Enabled)
	cfg.Metrics.Listen = ParseString(EnvMetricsListen, cfg.Metrics.Listen)

	b := &cfg.Breaker
	b.Enabled = ParseBool(EnvBreakerEnabled, b.Enabled)
	b.Threshold = ParseInt(EnvBreakerLimit, b.Threshold)
	b.ResetTimeout = ParseDuration(EnvBreakerReset, b.ResetTimeout)

	tel := &cfg.Telemetry
	tel.Enabled = ParseBool(EnvTraceEnabled, tel.Enabled)
	tel.Exporter = ParseString(EnvTraceExporter, tel.Exporter)
	tel.Endpoint = ParseString(EnvTraceEndpoint, tel.Endpoint)
	tel.SampleRate = ParseFloat(EnvTraceSample, tel.SampleRate)
}
