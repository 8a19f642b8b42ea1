// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"time"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/transport"
	"github.com/ManuGH/corerpc/internal/validate"
)

var transports = []string{transport.TCP, transport.Unix, transport.Process, transport.Stdio}

// Validate checks cfg and reports every problem at once.
func Validate(cfg Config) error {
	v := validate.New()

	t := cfg.Transport
	v.OneOf("transport.type", t.Type, transports)
	switch t.Type {
	case transport.TCP:
		v.HostPort("transport.address", t.Address)
	case transport.Unix:
		v.NotEmpty("transport.address", t.Address)
	case transport.Process:
		v.Custom("transport.command", t.Command, func(any) error {
			if len(t.Command) == 0 || t.Command[0] == "" {
				return errors.New("required for process transport")
			}
			return nil
		})
		v.Duration("transport.terminateGrace", t.TerminateGrace, time.Millisecond, 0)
	}
	if t.Type == transport.TCP || t.Type == transport.Unix {
		v.Duration("transport.dialTimeout", t.DialTimeout, 0, 0)
	}

	v.Duration("client.callTimeout", cfg.Client.CallTimeout, 0, 0)
	v.NonNegative("client.sendRate", cfg.Client.SendRate)
	if cfg.Client.SendRate > 0 {
		v.Positive("client.sendBurst", cfg.Client.SendBurst)
	}

	v.OneOf("log.level", cfg.Log.Level, validate.LogLevels)
	v.OneOf("log.format", cfg.Log.Format, []string{log.FormatJSON, log.FormatConsole})

	if cfg.Metrics.Enabled {
		v.HostPort("metrics.listen", cfg.Metrics.Listen)
		v.Positive("metrics.requestsPerMinute", cfg.Metrics.RequestsPerMinute)
	}

	if cfg.Breaker.Enabled {
		v.Positive("breaker.threshold", cfg.Breaker.Threshold)
		v.Duration("breaker.resetTimeout", cfg.Breaker.ResetTimeout, time.Millisecond, 0)
	}

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.Fraction("telemetry.sampleRate", cfg.Telemetry.SampleRate)
	}

	return v.Err()
}
