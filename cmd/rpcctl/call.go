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

	"github.com/google/renameio/v2"

	"github.com/ManuGH/corerpc/internal/log"
	"github.com/ManuGH/corerpc/internal/message"
)

func runCallCLI(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rpcctl call", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path to YAML config file")
	outPath := fs.String("o", "", "Write the result to this file instead of stdout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		fmt.Fprintln(stderr, "Usage: rpcctl call [-config file.yaml] [-o out.json] <method> [json-args]")
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

	var result any
	if err := s.client.Call(ctx, method, &result, params...); err != nil {
		var peerErr *message.Error
		if errors.As(err, &peerErr) {
			fmt.Fprintf(stderr, "ERROR: peer returned %s error: %s\n", peerErr.Type, peerErr.Message)
		} else {
			fmt.Fprintf(stderr, "ERROR: call %s: %v\n", method, err)
		}
		return 1
	}

	out, err := toJSON(result)
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: render result: %v\n", err)
		return 1
	}
	out = append(out, '\n')

	if *outPath != "" {
		if err := renameio.WriteFile(*outPath, out, 0o644); err != nil {
			fmt.Fprintf(stderr, "ERROR: write %s: %v\n", *outPath, err)
			return 1
		}
		s.logger.Info().
			Str(log.FieldEvent, "call.result_written").
			Str(log.FieldMethod, method).
			Str("path", *outPath).
			Msg("result written")
		return 0
	}
	_, _ = stdout.Write(out)
	return 0
}
