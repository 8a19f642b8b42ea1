// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/corerpc/internal/health"
	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
	"github.com/ManuGH/corerpc/internal/version"
)

// pingMethod is answered while watching so peers can probe liveness.
const pingMethod = "rpcctl_ping"

const shutdownTimeout = 5 * time.Second

func runWatchCLI(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("rpcctl watch", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML config file")
	initMethod := fs.String("init", "", "Request to send after connecting, e.g. a subscribe call")
	initArgs := fs.String("init-args", "", "JSON arguments for -init")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "Usage: rpcctl watch [-config file.yaml] [-init method] [-init-args json]")
		return 2
	}
	params, err := parseArgs(*initArgs)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, *configPath, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	defer s.Close()

	if err := watch(ctx, s, *initMethod, params); err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}
	return 0
}

// watch logs notifications until ctx ends or the peer goes away.
func watch(ctx context.Context, s *session, initMethod string, initParams []any) error {
	s.client.Handle(pingMethod, func(ctx context.Context, _ []any) (any, error) {
		logger := log.WithComponentFromContext(ctx, "rpcctl")
		logger.Debug().
			Str(log.FieldEvent, "watch.ping").
			Msg("answering ping")
		return "pong", nil
	})
	s.client.AddNotificationHandler(func(n *message.Notification) {
		s.logger.Info().
			Str(log.FieldEvent, "watch.notification").
			Str(log.FieldMethod, n.Method).
			Interface("args", textify(n.Args)).
			Msg("notification")
	})

	if initMethod != "" {
		var result any
		if err := s.client.Call(ctx, initMethod, &result, initParams...); err != nil {
			return fmt.Errorf("init %s: %w", initMethod, err)
		}
		s.logger.Info().
			Str(log.FieldEvent, "watch.init_done").
			Str(log.FieldMethod, initMethod).
			Interface("result", textify(result)).
			Msg("init request answered")
	}

	var srv *http.Server
	if s.cfg.Metrics.Enabled {
		hm := health.NewManager(version.Version)
		hm.RegisterChecker(health.NewConnectionChecker(s.client))
		if s.breaker != nil {
			hm.RegisterChecker(health.NewBreakerChecker(s.breaker))
		}
		srv = &http.Server{
			Addr:              s.cfg.Metrics.Listen,
			Handler:           newAdminRouter(hm, s.cfg.Metrics.RequestsPerMinute),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if srv != nil {
		g.Go(func() error {
			s.logger.Info().
				Str(log.FieldEvent, "admin.listen").
				Str(log.FieldAddress, srv.Addr).
				Msg("admin endpoint listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("admin endpoint: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		var peerErr error
		select {
		case <-gctx.Done():
		case <-s.client.Done():
			peerErr = s.client.Err()
			s.logger.Info().
				Err(peerErr).
				Str(log.FieldEvent, "watch.peer_closed").
				Msg("peer closed the connection")
		}
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				s.logger.Warn().Err(err).Str(log.FieldEvent, "admin.shutdown_failed").Msg("admin shutdown failed")
			}
		}
		if peerErr != nil {
			return fmt.Errorf("connection: %w", peerErr)
		}
		return nil
	})
	return g.Wait()
}
