package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/application/scheduler"
	"github.com/dataask/dataask/core/config"
	"github.com/dataask/dataask/core/infrastructure/storage/sqlite"
	"github.com/dataask/dataask/core/logger"
)

// validateCmd checks the config file and every stored scheduled query.
var validateCmd = &cobra.Command{
	Use:           "validate",
	Short:         "Validate the config file and the stored scheduled queries",
	Args:          cobra.NoArgs,
	RunE:          runValidate,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.New("validate")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	printValidationSummary(log, cfg)

	if _, err := os.Stat(cfg.Database.Path); errors.Is(err, os.ErrNotExist) {
		log.Successf("Configuration is valid: %s (no database yet)", configFile)
		return nil
	}

	store, err := sqlite.OpenStore(cfg.Database.Path, 1)
	if err != nil {
		return logger.WithTag("validate", err)
	}
	defer store.Close()

	if err := sqlite.Migrate(store.Write); err != nil {
		return logger.WithTag("validate", err)
	}
	queries, err := sqlite.NewScheduledQueryRepo(store).ListEnabled(cmd.Context())
	if err != nil {
		return logger.WithTag("validate", err)
	}

	var invalid int
	for _, q := range queries {
		err := q.Validate()
		if err == nil {
			_, err = scheduler.ParseSchedule(q)
		}
		if err != nil {
			invalid++
			log.Errorf("  %s (%s): %v", q.ID, q.Name, err)
		}
	}
	log.Infof("  scheduled queries: %d enabled, %d invalid", len(queries), invalid)
	if invalid > 0 {
		return logger.WithExitCode("validate", 2, fmt.Errorf("validation failed: %d scheduled queries are invalid", invalid))
	}

	log.Successf("Configuration is valid: %s", configFile)
	return nil
}

func printValidationSummary(log logger.Logger, cfg *config.Config) {
	log.Info("Validation report:")
	log.Infof("  config: %s", configFile)
	log.Infof("  database: %s", cfg.Database.Path)
	if cfg.Gateway.URL != "" {
		log.Infof("  gateway: %s", cfg.Gateway.URL)
	}
	if cfg.Gateway.Direct.Enabled {
		log.Infof("  direct dialects: %v", cfg.Gateway.Direct.Dialects)
	}
	log.Infof("  scheduler: enabled=%t lock=%s run_timeout=%s",
		cfg.Scheduler.IsEnabled(), cfg.Scheduler.Lock.Backend, cfg.Scheduler.RunTimeout)
	if cfg.History.URI != "" {
		log.Infof("  history mirror: mongodb")
	}
}
