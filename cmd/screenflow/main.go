package main

import (
	"github.com/screenflow/screenflow/internal/cli"
	"github.com/screenflow/screenflow/internal/cli/cmd"
)

// Set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetBuildInfo(cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	})
	cmd.Execute()
}
