//go:build !unix

// Package procgroup makes command cancellation reach grandchildren.
package procgroup

import "os/exec"

// Set is a no-op where process groups are unavailable; exec kills only the
// direct child.
func Set(*exec.Cmd) {}
