package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataask/dataask/core/infrastructure/storage/sqlite"
	"github.com/dataask/dataask/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the metadata database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:           "up",
	Short:         "Apply all pending migrations",
	Args:          cobra.NoArgs,
	RunE:          runMigrateUp,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateStatusCmd = &cobra.Command{
	Use:           "status",
	Short:         "Print applied migrations and the current schema version",
	Args:          cobra.NoArgs,
	RunE:          runMigrateStatus,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUpCmd, migrateStatusCmd)
}

func openWriteDB() (*sqlite.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	store, err := sqlite.OpenStore(cfg.Database.Path, 1)
	if err != nil {
		return nil, logger.WithTag("migrate", err)
	}
	return store, nil
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	store, err := openWriteDB()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := sqlite.Migrate(store.Write); err != nil {
		return logger.WithTag("migrate", err)
	}
	version, err := sqlite.MigrationStatus(store.Write)
	if err != nil {
		return logger.WithTag("migrate", err)
	}
	logger.New("migrate").Successf("Schema at version %d", version)
	return nil
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	store, err := openWriteDB()
	if err != nil {
		return err
	}
	defer store.Close()

	version, err := sqlite.MigrationStatus(store.Write)
	if err != nil {
		return logger.WithTag("migrate", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d\n", version)
	return nil
}
