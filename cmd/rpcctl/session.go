// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/ManuGH/corerpc/internal/client"
	"github.com/ManuGH/corerpc/internal/config"
	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/resilience"
	"github.com/ManuGH/corerpc/internal/telemetry"
	"github.com/ManuGH/corerpc/internal/transport"
	"github.com/ManuGH/corerpc/internal/version"
)

// session is one configured, attached client.
type session struct {
	cfg      config.Config
	client   *client.Client
	breaker  *resilience.CircuitBreaker
	provider *telemetry.Provider
	logger   zerolog.Logger
}

// openSession loads configuration, sets up logging and tracing, connects
// and attaches a client. Logs go to logOut so stdout stays free for the
// RPC stream or command output.
func openSession(ctx context.Context, configPath string, logOut io.Writer) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	log.Configure(log.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  logOut,
		Service: "rpcctl",
		Version: version.Version,
	})
	logger := log.WithComponent("rpcctl")

	provider, err := telemetry.NewProvider(ctx, cfg.TelemetryOptions("rpcctl", version.Version))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	opts := []client.Option{
		client.WithCallTimeout(cfg.Client.CallTimeout),
		client.WithSendRate(cfg.SendLimit(), cfg.Client.SendBurst),
	}
	var breaker *resilience.CircuitBreaker
	if cfg.Breaker.Enabled {
		breaker = resilience.NewCircuitBreaker("rpcctl", cfg.Breaker.Threshold, cfg.Breaker.ResetTimeout)
		opts = append(opts, client.WithBreaker(breaker))
	}

	conn, err := transport.Open(ctx, cfg.TransportOptions())
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return nil, err
	}
	c := client.New(opts...)
	if err := c.Attach(conn); err != nil {
		_ = conn.Close()
		_ = provider.Shutdown(context.Background())
		return nil, err
	}

	logger = logger.With().Str(log.FieldConnID, c.ConnID()).Logger()
	logger.Info().
		Str(log.FieldEvent, "session.opened").
		Str(log.FieldTransport, cfg.Transport.Type).
		Msg("connected to peer")

	return &session{
		cfg:      cfg,
		client:   c,
		breaker:  breaker,
		provider: provider,
		logger:   logger,
	}, nil
}

func (s *session) Close() {
	if err := s.client.Close(); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, "session.close_failed").Msg("closing connection failed")
	}
	if err := s.provider.Shutdown(context.Background()); err != nil {
		s.logger.Warn().Err(err).Str(log.FieldEvent, "telemetry.shutdown_failed").Msg("flushing traces failed")
	}
}
