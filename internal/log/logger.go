// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"cmp"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Output formats accepted by Config.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config captures options for configuring the global logger.
type Config struct {
	Level   string    // log level; falls back to LOG_LEVEL, then info
	Format  string    // FormatJSON (default) or FormatConsole
	Output  io.Writer // defaults to os.Stderr
	Service string    // falls back to LOG_SERVICE, then "corerpc"
	Version string
}

var (
	mu         sync.RWMutex
	base       zerolog.Logger
	configured bool
)

// Configure (re)initialises the global zerolog logger.
//
// Output defaults to stderr: stdout may carry the RPC stream when the
// process is attached to its parent over stdio.
func Configure(cfg Config) {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level, os.Getenv("LOG_LEVEL")))
	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = os.Stderr
	if cfg.Output != nil {
		w = cfg.Output
	}
	if cfg.Format == FormatConsole {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	service := cmp.Or(cfg.Service, os.Getenv("LOG_SERVICE"), "corerpc")
	zctx := zerolog.New(w).With().Timestamp().Str(FieldService, service)
	if cfg.Version != "" {
		zctx = zctx.Str(FieldVersion, cfg.Version)
	}

	mu.Lock()
	base = zctx.Logger()
	configured = true
	mu.Unlock()
}

// parseLevel returns the first parseable level among candidates, or info.
func parseLevel(candidates ...string) zerolog.Level {
	for _, c := range candidates {
		if c == "" {
			continue
		}
		if lvl, err := zerolog.ParseLevel(c); err == nil {
			return lvl
		}
	}
	return zerolog.InfoLevel
}

func logger() zerolog.Logger {
	mu.RLock()
	if configured {
		l := base
		mu.RUnlock()
		return l
	}
	mu.RUnlock()
	Configure(Config{})
	return logger()
}

// Base returns the configured base logger instance.
func Base() zerolog.Logger {
	return logger()
}

// WithComponent returns a child logger annotated with the given component name.
func WithComponent(component string) zerolog.Logger {
	return logger().With().Str(FieldComponent, component).Logger()
}

// Derive attaches arbitrary fields to a child logger using the provided builder function.
func Derive(build func(*zerolog.Context)) zerolog.Logger {
	ctx := logger().With()
	if build != nil {
		build(&ctx)
	}
	return ctx.Logger()
}
