package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akorkmaz/civita/internal/config"
	"github.com/akorkmaz/civita/internal/db"
)

var initForce bool

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing database")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize civita for first-time use",
	Long: `Initialize civita by creating the ~/.civita/ directory, a sample
configuration file and the database.

This command:
- Creates ~/.civita/ if it doesn't exist
- Writes config.toml with documented defaults (kept if already present)
- Creates civita.db with the schema and runs pending migrations

Use --force to recreate an existing database.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	cfgPath := configPath
	if cfgPath == "" {
		cfgPath = config.DefaultConfigPath()
	}
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		if err := config.WriteConfigFile(cfgPath); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		OutputLine("Wrote sample config to %s", cfgPath)
	} else {
		VerboseOutput("Config file already exists at %s\n", cfgPath)
	}

	path := GetDBPath()
	if db.Exists(path) && !initForce {
		return fmt.Errorf("database already exists at %s (use --force to recreate)", resolvedDBPath())
	}
	if initForce && db.Exists(path) {
		VerboseOutput("Removing existing database...\n")
		if err := os.Remove(resolvedDBPath()); err != nil {
			return fmt.Errorf("failed to remove existing database: %w", err)
		}
	}

	VerboseOutput("Creating database...\n")
	database, err := db.Open(path)
	if err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	defer database.Close()

	VerboseOutput("Running migrations...\n")
	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := database.MigrationStatus()
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	OutputLine("Initialized civita database at %s", database.Path())
	OutputLine("Schema version: %d", version)
	return nil
}
