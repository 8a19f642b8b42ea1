// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts peer processes in their own process group so a
// connection can stop the peer together with everything it spawned.
package procgroup

import "os/exec"

// Set makes cmd the leader of a new process group when started. Kill and
// Terminate signal the whole group only for commands prepared this way.
func Set(cmd *exec.Cmd) {
	set(cmd)
}
