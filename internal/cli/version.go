package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/akorkmaz/civita/internal/db"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the civita version, build information and database status.`,
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func runVersion(cmd *cobra.Command, args []string) error {
	fmt.Printf("civita %s (%s, %s)\n", Version, shortCommit(), shortDate())
	fmt.Printf("Go: %s\n", runtime.Version())
	fmt.Printf("Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)

	if !db.Exists(GetDBPath()) {
		fmt.Println("Database: not initialized (run 'civita init')")
		return nil
	}

	database, err := db.Open(GetDBPath())
	if err != nil {
		fmt.Printf("Database: %s (unreadable: %v)\n", resolvedDBPath(), err)
		return nil
	}
	defer database.Close()

	if version, err := database.MigrationStatus(); err == nil {
		fmt.Printf("Database: %s (schema v%d)\n", database.Path(), version)
	} else {
		fmt.Printf("Database: %s\n", database.Path())
	}
	return nil
}
