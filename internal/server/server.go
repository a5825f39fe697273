// Package server provides the HTTP API for civita.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/config"
	"github.com/akorkmaz/civita/internal/db"
	"github.com/akorkmaz/civita/internal/notify"
	"github.com/akorkmaz/civita/internal/service"
	"github.com/akorkmaz/civita/internal/storage"
)

// Server is the civita HTTP server. It owns the full service stack and
// translates HTTP requests into service calls.
type Server struct {
	cfg        *config.Config
	d          *db.DB
	log        *zap.Logger
	httpServer *http.Server
	router     *http.ServeMux
	validate   *validator.Validate
	tokens     *auth.Tokens
	limiter    *rateLimiter
	store      *storage.Disk

	tickets     *service.TicketService
	escalations *service.EscalationService
	comments    *service.CommentService
	feedback    *service.FeedbackService
	notifs      *service.NotificationService
	admin       *service.AdminService
	analytics   *service.AnalyticsService
}

// New creates a Server and wires the service stack.
func New(cfg *config.Config, d *db.DB, log *zap.Logger) (*Server, error) {
	if d == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret must be configured")
	}

	storageDir := cfg.StorageDir
	if storageDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve storage dir: %w", err)
		}
		storageDir = filepath.Join(home, ".civita", "storage")
	}
	baseURL := cfg.StorageBaseURL
	if baseURL == "" {
		baseURL = "/storage"
	}
	store, err := storage.NewDisk(storageDir, baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare storage dir: %w", err)
	}

	var sms notify.Sender
	if cfg.SMS.Enabled {
		sms = notify.NewRetrySender(notify.NewLogSender(log), cfg.SMS.MaxRetries)
	}
	engine := notify.NewEngine(d, log, sms)

	s := &Server{
		cfg:      cfg,
		d:        d,
		log:      log,
		router:   http.NewServeMux(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tokens:   auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute),
		limiter:  newRateLimiter(cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowSeconds)*time.Second),
		store:    store,

		tickets:     service.NewTicketService(d, log, engine, store, cfg.DefaultCity),
		escalations: service.NewEscalationService(d, log, engine),
		comments:    service.NewCommentService(d, log, engine),
		feedback:    service.NewFeedbackService(d, log),
		notifs:      service.NewNotificationService(d),
		admin:       service.NewAdminService(d, log),
		analytics:   service.NewAnalyticsService(d),
	}

	s.setupRoutes()
	return s, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.cfg.Addr()

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.log.Info("starting server", zap.String("addr", listener.Addr().String()))
	return s.httpServer.Serve(listener)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.log.Info("shutting down server")
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the root handler with the outer middleware applied.
func (s *Server) Handler() http.Handler {
	return s.recoverer(s.corsHeaders(s.requestLogger(s.router)))
}
