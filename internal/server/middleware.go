package server

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/akorkmaz/civita/internal/apperr"
	"github.com/akorkmaz/civita/internal/auth"
	"github.com/akorkmaz/civita/internal/models"
)

type contextKey int

const principalKey contextKey = iota

// principal returns the authenticated principal of the request. It is only
// present behind withAuth.
func principal(r *http.Request) auth.Principal {
	p, _ := r.Context().Value(principalKey).(*auth.Principal)
	if p == nil {
		return auth.Principal{}
	}
	return *p
}

// recoverer turns handler panics into 500 responses.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.log.Error("handler panic",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				s.writeError(w, apperr.Internal("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rw.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// corsHeaders applies the configured CORS policy. An empty origin list means
// same-origin only and no headers are emitted.
func (s *Server) corsHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// withAuth resolves the bearer token into a principal and stores it in the
// request context. Requests without a valid token get 401.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			s.writeError(w, apperr.Unauthorized("missing bearer token"))
			return
		}

		p, err := s.tokens.Parse(token)
		if err != nil {
			s.writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), principalKey, p)
		next(w, r.WithContext(ctx))
	}
}

// withRoles guards a handler behind a role allowlist. It implies withAuth.
func (s *Server) withRoles(next http.HandlerFunc, roles ...models.Role) http.HandlerFunc {
	return s.withAuth(func(w http.ResponseWriter, r *http.Request) {
		p := principal(r)
		for _, role := range roles {
			if p.Role == role {
				next(w, r)
				return
			}
		}
		s.writeError(w, apperr.Forbidden("insufficient role"))
	})
}

func (s *Server) withStaff(next http.HandlerFunc) http.HandlerFunc {
	return s.withRoles(next, models.RoleSupport, models.RoleManager)
}

func (s *Server) withManager(next http.HandlerFunc) http.HandlerFunc {
	return s.withRoles(next, models.RoleManager)
}

// withRateLimit applies the per-client bucket for the named action. It runs
// after auth so unauthenticated requests never consume budget.
func (s *Server) withRateLimit(action string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r) + ":" + action
		if retryAfter, ok := s.limiter.Allow(key); !ok {
			w.Header().Set("Retry-After", retryAfter)
			s.writeError(w, apperr.RateLimited("too many requests, slow down"))
			return
		}
		next(w, r)
	}
}

// clientIP extracts the caller's address, preferring X-Forwarded-For when a
// proxy set it.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
