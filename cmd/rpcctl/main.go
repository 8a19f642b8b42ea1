// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// rpcctl drives a MessagePack-RPC peer from the command line.
//
// Usage:
//
//	rpcctl call   [-config f] [-o file] <method> [json-args]
//	rpcctl notify [-config f] <method> [json-args]
//	rpcctl watch  [-config f] [-init method] [-init-args json]
//	rpcctl version
//
// The connection is described by the config file and CORERPC_* variables.
//
// Exit codes:
//   - 0: success
//   - 1: runtime failure (connection, call or peer error)
//   - 2: usage error
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/ManuGH/corerpc/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "call":
		return runCallCLI(args[1:], stdout, stderr)
	case "notify":
		return runNotifyCLI(args[1:], stderr)
	case "watch":
		return runWatchCLI(args[1:], stderr)
	case "version", "-version", "--version":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", args[0])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  rpcctl call   [-config file.yaml] [-o out.json] <method> [json-args]")
	fmt.Fprintln(w, "  rpcctl notify [-config file.yaml] <method> [json-args]")
	fmt.Fprintln(w, "  rpcctl watch  [-config file.yaml] [-init method] [-init-args json]")
	fmt.Fprintln(w, "  rpcctl version")
}
