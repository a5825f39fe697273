package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akorkmaz/civita/internal/db"
)

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage database schema migrations",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *db.DB) error {
			if err := database.Migrate(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			version, err := database.MigrationStatus()
			if err != nil {
				return err
			}
			OutputLine("Schema version: %d", version)
			return nil
		})
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *db.DB) error {
			if err := database.MigrateDown(); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			version, err := database.MigrationStatus()
			if err != nil {
				return err
			}
			OutputLine("Schema version: %d", version)
			return nil
		})
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDatabase(func(database *db.DB) error {
			version, err := database.MigrationStatus()
			if err != nil {
				return err
			}
			OutputLine("Schema version: %d", version)
			return nil
		})
	},
}

// withDatabase opens the configured database, runs fn and closes it.
func withDatabase(fn func(*db.DB) error) error {
	database, err := db.Open(GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()
	return fn(database)
}
