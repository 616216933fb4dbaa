package cli

import (
	"github.com/dataask/dataask/core/cli/cmd"
	"github.com/dataask/dataask/core/logger"
)

// Execute runs the CLI and returns the process exit status.
func Execute() int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}
	tag := logger.ErrorTag(err)
	if tag == "" {
		tag = "cli"
	}
	logger.New(tag).Error(err.Error())
	return logger.ExitCode(err)
}
