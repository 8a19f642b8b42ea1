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
	"os"
	"os/signal"
	"syscall"

	"github.com/ManuGH/corerpc/internal/log"
)

func runNotifyCLI(args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("rpcctl notify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML config file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(stderr, "Usage: rpcctl notify [-config file.yaml] <method> [json-args]")
		return 2
	}
	method := fs.Arg(0)
	params, err := parseArgs(fs.Arg(1))
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

	if err := s.client.Notify(ctx, method, params...); err != nil {
		fmt.Fprintf(stderr, "ERROR: notify %s: %v\n", method, err)
		return 1
	}
	s.logger.Debug().
		Str(log.FieldEvent, "notify.sent").
		Str(log.FieldMethod, method).
		Msg("notification sent")
	return 0
}
