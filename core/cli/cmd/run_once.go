package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/domain"
	"github.com/dataask/dataask/core/infrastructure/di"
	"github.com/dataask/dataask/core/logger"
	"github.com/dataask/dataask/core/observability"
)

var runOnceCmd = &cobra.Command{
	Use:           "run-once <scheduled-query-id>",
	Short:         "Run one scheduled query now, email its results and exit",
	Args:          cobra.ExactArgs(1),
	RunE:          runOnce,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(runOnceCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	providers, err := observability.Setup(ctx, GetVersion())
	if err != nil {
		return logger.WithTag("observability", err)
	}
	defer func() { _ = providers.Shutdown(context.WithoutCancel(ctx)) }()

	container, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return logger.WithTag("di", err)
	}
	defer func() { _ = container.Close(context.WithoutCancel(ctx)) }()

	out := container.Runner.RunNow(ctx, args[0])
	if out == nil {
		return logger.WithTag("run-once", fmt.Errorf("scheduled query '%s' not found", args[0]))
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if out.Status != domain.RunSuccess {
		return logger.WithExitCode("run-once", 2, fmt.Errorf("run failed: %s", out.Error))
	}
	return nil
}
