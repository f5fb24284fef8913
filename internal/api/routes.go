package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apimw "github.com/slipstream/slskbridge/internal/api/middleware"
	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/health"
	"github.com/slipstream/slskbridge/internal/indexer/search"
	"github.com/slipstream/slskbridge/internal/scheduler"
)

func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Security headers
	s.echo.Use(apimw.SecurityHeaders(config.Version))

	// Request body size limit (1MB)
	s.echo.Use(middleware.BodyLimit("1M"))

	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, apimw.HeaderAPIKey},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health" || c.Path() == "/metrics"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Debug().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.cfg.Metrics.Enabled {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}

	keyGuard := apimw.APIKey(s.cfg.Server.APIKey, s.authLimiter)

	if s.hub != nil {
		s.echo.GET("/ws", s.hub.HandleWebSocket, s.authLimiter.Middleware(), keyGuard)
	}

	api := s.echo.Group("/api/v1", s.authLimiter.Middleware(), keyGuard)
	api.GET("/status", s.getStatus)

	client := api.Group("/client")
	client.GET("", s.getClientStatus)
	client.POST("/test", s.testClient)

	queue := api.Group("/queue")
	queue.GET("", s.getQueue)
	queue.POST("", s.addRelease)
	queue.DELETE("/:id", s.removeRelease)

	search.NewHandlers(s.searchService).RegisterRoutes(api.Group("/search"))

	health.NewHandlers(s.health, map[health.Category]health.Probe{
		health.CategoryDownloadClients: s.probeClient,
		health.CategoryStorage:         s.storageChecker.Check,
	}).RegisterRoutes(api.Group("/health"))

	NewLogsHandlers(s.logsOrNil).RegisterRoutes(api.Group("/logs"))

	scheduler.NewHandlers(s.schedulerOrNil).RegisterRoutes(api.Group("/scheduler/tasks"))
}
