// File: cmd/vdmastream/main.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package main

import (
	"os"
)

// Set by the linker.
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	if err := newRootCmd(version, commit, buildDate).Execute(); err != nil {
		os.Exit(1)
	}
}
