package main

import (
	"os"

	"github.com/releasekit/releasekit/pkg/cli"
)

// Populated by the build via -ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := cli.Execute(version, commit, date); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
