// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the endpoint configuration: defaults, then an
// optional YAML file, then CORERPC_* environment variables.
package config

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/ManuGH/corerpc/internal/telemetry"
	"github.com/ManuGH/corerpc/internal/transport"
)

// Config is the complete endpoint configuration.
type Config struct {
	Transport TransportConfig `yaml:"transport"`
	Client    ClientConfig    `yaml:"client"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Breaker   BreakerConfig   `yaml:"breaker"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// TransportConfig selects and parameterises the connection.
type TransportConfig struct {
	// Type is one of tcp, unix, process, stdio.
	Type           string        `yaml:"type"`
	Address        string        `yaml:"address"`
	Command        []string      `yaml:"command"`
	DialTimeout    time.Duration `yaml:"dialTimeout"`
	KillOnClose    bool          `yaml:"killOnClose"`
	TerminateGrace time.Duration `yaml:"terminateGrace"`
}

type ClientConfig struct {
	CallTimeout time.Duration `yaml:"callTimeout"`
	// SendRate limits outgoing messages per second. Zero disables the limit.
	SendRate  float64 `yaml:"sendRate"`
	SendBurst int     `yaml:"sendBurst"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	// Format is json or console.
	Format string `yaml:"format"`
}

// MetricsConfig controls the admin HTTP endpoint of long-running commands.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	// RequestsPerMinute limits admin requests per client IP.
	RequestsPerMinute int `yaml:"requestsPerMinute"`
}

type BreakerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Threshold    int           `yaml:"threshold"`
	ResetTimeout time.Duration `yaml:"resetTimeout"`
}

type TelemetryConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Exporter   string  `yaml:"exporter"`
	Endpoint   string  `yaml:"endpoint"`
	SampleRate float64 `yaml:"sampleRate"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Transport: TransportConfig{
			Type:           transport.TCP,
			Address:        "127.0.0.1:6666",
			DialTimeout:    5 * time.Second,
			KillOnClose:    true,
			TerminateGrace: 2 * time.Second,
		},
		Client: ClientConfig{
			CallTimeout: 30 * time.Second,
			SendBurst:   1,
		},
		Log: LogConfig{Level: "info", Format: "json"},
		Metrics: MetricsConfig{
			Listen:            "127.0.0.1:9464",
			RequestsPerMinute: 120,
		},
		Breaker: BreakerConfig{
			Threshold:    5,
			ResetTimeout: 30 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Exporter:   "grpc",
			Endpoint:   "localhost:4317",
			SampleRate: 1.0,
		},
	}
}

// TransportOptions converts the transport section for transport.Open.
func (c Config) TransportOptions() transport.Options {
	return transport.Options{
		Transport:   c.Transport.Type,
		Address:     c.Transport.Address,
		Command:     c.Transport.Command,
		DialTimeout: c.Transport.DialTimeout,
		KillOnClose: c.Transport.KillOnClose,
		Grace:       c.Transport.TerminateGrace,
	}
}

// SendLimit returns the outgoing rate limit, or zero when disabled.
func (c Config) SendLimit() rate.Limit {
	return rate.Limit(c.Client.SendRate)
}

// TelemetryOptions converts the telemetry section for telemetry.NewProvider.
func (c Config) TelemetryOptions(service, version string) telemetry.Config {
	return telemetry.Config{
		Enabled:        c.Telemetry.Enabled,
		ServiceName:    service,
		ServiceVersion: version,
		ExporterType:   c.Telemetry.Exporter,
		Endpoint:       c.Telemetry.Endpoint,
		SamplingRate:   c.Telemetry.SampleRate,
	}
}
