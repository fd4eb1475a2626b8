// Package cmd holds the spendwise command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"spendwise-server/src/config"
	"spendwise-server/src/db"
	"spendwise-server/src/db/postgres"
	"spendwise-server/src/db/sqlite"
	"spendwise-server/src/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "spendwise",
	Short: "Personal finance API server",
	Long:  "Spendwise tracks accounts, transactions, budgets and goals, and warns when spending approaches a budget.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := logging.NewLoggerFromEnv()
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		logging.SetGlobal(logger)
		return nil
	},
	SilenceUsage: true,
}

// Execute is the main entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

// openStore connects to the configured database. The SQLite store applies
// its schema on open; Postgres needs migrate or --migrate.
func openStore(ctx context.Context, cfg config.Config) (db.Store, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		logging.L().Info("opening sqlite store", zap.String("path", cfg.SQLitePath))
		return sqlite.New(ctx, cfg.SQLitePath)
	default:
		logging.L().Info("connecting to postgres")
		return postgres.Open(ctx, cfg.DatabaseURL)
	}
}
