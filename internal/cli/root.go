// Package cli implements the civita command-line interface.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akorkmaz/civita/internal/config"
)

// Version information (set at build time via ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Global flags
var (
	dbPath     string
	configPath string
	quiet      bool
	verbose    bool
)

// Global configuration (loaded once at startup)
var globalConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "civita",
	Short: "Civic issue tracking for municipalities",
	Long: `Civita is the backend for a municipal issue-tracking service.

Citizens report neighborhood problems, tickets are routed to the right
team by category and district, and managers review escalations.

Use "civita init" to create the configuration and database.
Use "civita serve" to start the HTTP API.`,
	Version:       Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to database file (default ~/.civita/civita.db)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default ~/.civita/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.SetVersionTemplate(fmt.Sprintf("civita %s (%s, %s)\n", Version, shortCommit(), shortDate()))
}

func loadConfig() error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	cfg, err := config.LoadFromPath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config file: %v\n", err)
		cfg = config.DefaultConfig()
	}
	globalConfig = cfg
	return nil
}

func shortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}

func shortDate() string {
	if len(BuildDate) >= 10 {
		return BuildDate[:10]
	}
	return BuildDate
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// GetDBPath returns the database path. Priority: flag > env > config file.
func GetDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if globalConfig != nil {
		return globalConfig.GetDB()
	}
	return ""
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if globalConfig != nil {
		return globalConfig
	}
	return config.DefaultConfig()
}

// OutputLine prints a line to stdout unless quiet mode is enabled.
func OutputLine(format string, args ...interface{}) {
	if !quiet {
		fmt.Printf(format+"\n", args...)
	}
}

// VerboseOutput prints to stdout only in verbose mode.
func VerboseOutput(format string, args ...interface{}) {
	if verbose && !quiet {
		fmt.Printf(format, args...)
	}
}
