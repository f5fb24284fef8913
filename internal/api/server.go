// Package api serves the bridge's HTTP and WebSocket API.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/api/ratelimit"
	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader"
	"github.com/slipstream/slskbridge/internal/health"
	"github.com/slipstream/slskbridge/internal/indexer/search"
	"github.com/slipstream/slskbridge/internal/metrics"
	"github.com/slipstream/slskbridge/internal/scheduler"
	"github.com/slipstream/slskbridge/internal/startup"
	"github.com/slipstream/slskbridge/internal/websocket"
)

// SlskdClient is the slskd API used by the queue and by searches.
type SlskdClient interface {
	downloader.Client
	search.Client
}

// Server handles HTTP requests for the bridge API.
type Server struct {
	echo      *echo.Echo
	hub       *websocket.Hub
	logger    zerolog.Logger
	cfg       *config.Config
	startTime time.Time

	// Services
	metrics            *metrics.Metrics
	health             *health.Registry
	storageChecker     *health.StorageChecker
	downloaderService  *downloader.Service
	queueBroadcaster   *downloader.QueueBroadcaster
	searchService      *search.Service
	scheduler          *scheduler.Scheduler
	logs               LogsProvider
	authLimiter        *ratelimit.AuthLimiter
	stopLimiterCleanup func()
}

// NewServer creates a new API server instance. hub may be nil, in which case
// nothing is pushed to WebSocket clients.
func NewServer(client SlskdClient, hub *websocket.Hub, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:        e,
		hub:         hub,
		logger:      logger,
		cfg:         cfg,
		startTime:   time.Now(),
		authLimiter: ratelimit.NewAuthLimiter(),
	}

	if cfg.Metrics.Enabled {
		_, s.metrics = metrics.NewRegistry()
	} else {
		s.metrics = metrics.New(nil)
	}

	s.health = health.NewRegistry(logger)

	// Initialize downloader service
	scheme, _ := cfg.Queue.Scheme()
	s.downloaderService = downloader.NewService(client, downloader.Options{
		IdentifierScheme:   scheme,
		Concurrency:        cfg.Queue.Concurrency,
		RemoveWaitTimeout:  cfg.Queue.RemoveWaitTimeout,
		RemovePollInterval: cfg.Queue.RemovePollInterval,
	}, logger)
	s.downloaderService.SetMetrics(s.metrics)
	s.downloaderService.SetHealthReporter(s.health)
	s.downloaderService.SetLocalhost(cfg.Slskd.IsLocalhost())

	// Initialize search service
	s.searchService = search.NewService(client, search.Config{
		Timeout:            cfg.Search.Timeout,
		MinPeerUploadSpeed: cfg.Search.MinPeerUploadSpeed,
		MinFileCount:       cfg.Search.MinFileCount,
		IgnoredUsers:       cfg.Search.IgnoredUsers,
	}, logger)
	s.searchService.SetMetrics(s.metrics)
	s.searchService.SetHealthReporter(s.health)

	s.storageChecker = health.NewStorageChecker(
		s.health,
		health.NewDownloadFolders(s.downloaderService),
		&cfg.Health,
		logger,
	)

	if hub != nil {
		s.health.SetBroadcaster(hub)
		s.searchService.SetBroadcaster(hub)

		s.queueBroadcaster = downloader.NewQueueBroadcaster(s.downloaderService, hub, logger)
		s.queueBroadcaster.SetIdleInterval(cfg.Queue.PollInterval)
		s.downloaderService.SetQueueTrigger(s.queueBroadcaster.Trigger)
		hub.Handle("queue:refresh", s.queueBroadcaster.Trigger)
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// SetScheduler exposes a scheduler's tasks through the API.
func (s *Server) SetScheduler(sched *scheduler.Scheduler) {
	s.scheduler = sched
}

// SetLogs exposes recent log entries through the API.
func (s *Server) SetLogs(provider LogsProvider) {
	s.logs = provider
}

// Downloader returns the queue service.
func (s *Server) Downloader() *downloader.Service {
	return s.downloaderService
}

// Search returns the search service.
func (s *Server) Search() *search.Service {
	return s.searchService
}

// Health returns the health service.
func (s *Server) Health() *health.Registry {
	return s.health
}

// StorageChecker returns the download folder checker.
func (s *Server) StorageChecker() *health.StorageChecker {
	return s.storageChecker
}

// WaitForClient blocks until slskd answers or the retry budget runs out.
func (s *Server) WaitForClient(ctx context.Context, cfg startup.RetryConfig) error {
	return startup.WithRetry(ctx, "connect to slskd", cfg, func() error {
		return s.probeClient(ctx)
	}, &s.logger)
}

type clientTestError string

func (e clientTestError) Error() string { return string(e) }

// Start begins listening for HTTP requests.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("starting HTTP server")

	if s.queueBroadcaster != nil {
		s.queueBroadcaster.Start()
	}
	s.stopLimiterCleanup = s.authLimiter.StartCleanup(5 * time.Minute)

	return s.echo.Start(address)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")

	if s.queueBroadcaster != nil {
		s.queueBroadcaster.Stop()
	}
	if s.stopLimiterCleanup != nil {
		s.stopLimiterCleanup()
	}

	return s.echo.Shutdown(ctx)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
