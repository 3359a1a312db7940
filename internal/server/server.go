package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"mealog/internal/auth"
	"mealog/internal/blobstore"
	"mealog/internal/media"
	"mealog/internal/store"
)

const (
	allowRemoteEnvKey = "MEALOG_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 60 * time.Second
	writeTimeout      = 60 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second

	loginMaxFailures = 5
	loginWindow      = 5 * time.Minute
	loginBlockedFor  = 15 * time.Minute
)

// Store is the persistence the server reads and mutates.
type Store interface {
	store.MealStore
	store.UserStore
	store.UploadStore
}

// Config wires the server's collaborators.
type Config struct {
	Addr     string
	Store    Store
	Blobs    blobstore.BlobStore
	Ingest   *media.IngestService
	Paths    media.Paths
	Sessions *auth.Sessions
	Metrics  *media.Metrics
	// MetricsHandler serves /metrics when set.
	MetricsHandler     http.Handler
	// RegistrationClosed rejects POST /api/auth/register.
	RegistrationClosed bool
	Logger             *slog.Logger
}

// Server wraps HTTP handlers for the mealog API.
type Server struct {
	addr           string
	store          Store
	blobs          blobstore.BlobStore
	paths          media.Paths
	ingest         *media.IngestService
	meals          *MealService
	auth           *AuthService
	sessions       *auth.Sessions
	metricsHandler http.Handler
	loginLimiter   *loginRateLimiter
	logger         *slog.Logger
}

// New creates a new server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if cfg.Ingest == nil {
		return nil, fmt.Errorf("ingest service is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("sessions are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	lifecycle := media.NewCoordinator(cfg.Store, cfg.Blobs, cfg.Paths)
	lifecycle.SetLogger(logger.With("component", "lifecycle"))
	lifecycle.SetMetrics(cfg.Metrics)
	// Meals may only attach uploads the ledger knows about.
	cfg.Ingest.SetRecorder(cfg.Store)

	return &Server{
		addr:           cfg.Addr,
		store:          cfg.Store,
		blobs:          cfg.Blobs,
		paths:          cfg.Paths,
		ingest:         cfg.Ingest,
		meals:          NewMealService(cfg.Store, cfg.Blobs, lifecycle, cfg.Paths),
		auth:           NewAuthService(cfg.Store, lifecycle, !cfg.RegistrationClosed),
		sessions:       cfg.Sessions,
		metricsHandler: cfg.MetricsHandler,
		loginLimiter:   newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		logger:         logger,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.withRequestLogging(s.withSession(s.routes()))
}

// ListenAndServe starts the HTTP server and shuts it down when ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.log().Info("starting server", "addr", s.addr, "images", "/"+s.paths.Prefix())
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
