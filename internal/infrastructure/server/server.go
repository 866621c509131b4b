package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/cubiclauncher/kepler/internal/api/http"
	"github.com/cubiclauncher/kepler/internal/api/middleware"
	"github.com/cubiclauncher/kepler/internal/api/ws"
	"github.com/cubiclauncher/kepler/internal/domain/app"
	"github.com/cubiclauncher/kepler/internal/infrastructure/config"
	"github.com/cubiclauncher/kepler/internal/infrastructure/monitoring"
	"github.com/cubiclauncher/kepler/internal/logging"
	"github.com/cubiclauncher/kepler/internal/presence"
	"github.com/cubiclauncher/kepler/internal/presence/discord"
	"github.com/cubiclauncher/kepler/internal/shared/paths"
)

const shutdownTimeout = 5 * time.Second

// Option customizes server construction
type Option func(*options)

type options struct {
	logger   *logging.Logger
	presence presence.Client
	version  string
}

// WithLogger uses log instead of building one from the config
func WithLogger(log *logging.Logger) Option {
	return func(o *options) { o.logger = log }
}

// WithPresenceClient attaches client instead of dialing Discord
func WithPresenceClient(client presence.Client) Option {
	return func(o *options) { o.presence = client }
}

// WithVersion sets the version reported by the root endpoint
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	manager *app.Manager
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
	stream  *ws.Handler
	layout  paths.Layout
}

// NewServer bootstraps the data directory and wires the state manager,
// the presence client and the control API.
func NewServer(cfg *config.Config, opts ...Option) (*Server, error) {
	o := options{version: "dev"}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			Development: cfg.Logging.Development,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}

	logger.Info("Initializing Kepler backend",
		zap.String("addr", cfg.Server.Addr()),
		zap.Bool("presence", cfg.Presence.Enabled),
	)

	layout, err := paths.Resolve(cfg.Paths.DataDir)
	if err != nil {
		return nil, err
	}
	if err := paths.NewBootstrapper(layout, logger.Component("paths")).Bootstrap(); err != nil {
		return nil, fmt.Errorf("failed to initialize data directory: %w", err)
	}

	metrics := monitoring.NewMetrics()

	manager := app.NewManager().
		WithLogger(logger.Component("state")).
		WithMetrics(metrics)

	client := o.presence
	if client == nil && cfg.Presence.Enabled {
		client = discord.New(cfg.Presence.AppID,
			discord.WithLogger(logger.Component("discord")),
			discord.WithTimeout(cfg.Presence.Timeout),
		)
	}
	if client != nil {
		manager.AttachPresenceClient(client)
		logger.Info("Presence client attached", zap.String("app_id", cfg.Presence.AppID))
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	corsCfg := middleware.DefaultCORSConfig()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Component("http")))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers := apihttp.NewHandlers(manager, apihttp.Options{
		Info:    apihttp.ServiceInfo{Name: "kepler", Version: o.version},
		Layout:  layout,
		Metrics: metrics,
		Logger:  logger.Logger,
		Timeout: cfg.Presence.Timeout,
	})
	handlers.Register(router)

	wsHandler := ws.NewHandler(manager,
		ws.WithAllowedOrigins(corsCfg.AllowOrigins),
		ws.WithMetrics(metrics),
		ws.WithLogger(logger.Component("ws")),
	)
	router.GET("/stream", wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		manager: manager,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
		stream:  wsHandler,
		layout:  layout,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Manager returns the activity state manager
func (s *Server) Manager() *app.Manager {
	return s.manager
}

// Layout returns the bootstrapped data directory layout
func (s *Server) Layout() paths.Layout {
	return s.layout
}

// Run serves the control API until ctx is canceled, then shuts down
// gracefully and releases the presence connection.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("failed to shut down: %w", err)
		}
	}

	return errors.Join(serveErr, s.Close())
}

// Close returns the launcher to idle, disconnects the presence client and
// ends open state streams, which http.Server.Shutdown leaves running.
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if err := s.manager.TransitionToIdle(ctx); err != nil {
		s.logger.Warn("Failed to reset presence to idle", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.manager.DisconnectPresenceClient(ctx); err != nil {
		s.logger.Error("Failed to disconnect presence client", zap.Error(err))
		errs = append(errs, err)
	}
	s.stream.Close()

	s.logger.Sync()
	return errors.Join(errs...)
}
