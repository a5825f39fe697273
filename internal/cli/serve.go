package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/backup"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/server"
)

var (
	servePort int
	serveHost string
)

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host address to bind to (overrides config)")

	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the civita HTTP API",
	Long: `Start the HTTP API server.

The server exposes the /api/v1 surface: tickets, comments, feedback,
escalations, notifications, admin and analytics. Pending database
migrations are applied on startup, and a rotating database backup is
taken first when backups are enabled.

Examples:
  civita serve                  # Listen per config (default localhost:8080)
  civita serve --port 9090      # Override the port
  civita serve --host 0.0.0.0   # Bind to all interfaces`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	if serveHost != "" {
		cfg.Host = serveHost
	}
	if servePort > 0 {
		cfg.Port = servePort
	}

	log, err := newLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Sync()

	if cfg.Backup.Enabled && db.Exists(GetDBPath()) {
		mgr := backup.NewManager(resolvedDBPath(), cfg.Backup)
		if path, err := mgr.RunIfDue(); err != nil {
			log.Warn("automatic backup failed", zap.Error(err))
		} else if path != "" {
			log.Info("created database backup", zap.String("path", path))
		}
	}

	database, err := db.Open(GetDBPath())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	srv, err := server.New(cfg, database, log)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	OutputLine("Civita API listening at http://%s", cfg.Addr())
	OutputLine("Press Ctrl+C to stop")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-stop:
		OutputLine("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	OutputLine("Server stopped")
	return nil
}

func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// resolvedDBPath returns the concrete database file location for components
// that need it before the database opens.
func resolvedDBPath() string {
	path := GetDBPath()
	if path == "" {
		path = db.DefaultDBPath
	}
	return expandPath(path)
}

func expandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}
