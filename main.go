package main

import (
	"os"

	"github.com/dataask/dataask/core/cli"
	"github.com/dataask/dataask/core/cli/cmd"
)

// Version is overridden at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	cmd.SetVersion(Version)
	os.Exit(cli.Execute())
}
