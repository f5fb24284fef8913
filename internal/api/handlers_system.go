package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/scheduler"
)

func (s *Server) getStatus(c echo.Context) error {
	scheme, _ := s.cfg.Queue.Scheme()
	status := map[string]interface{}{
		"version":          config.Version,
		"startTime":        s.startTime.Format(time.RFC3339),
		"identifierScheme": scheme,
		"health":           s.health.Summary(),
	}
	if s.hub != nil {
		status["websocketClients"] = s.hub.ClientCount()
	}
	return c.JSON(http.StatusOK, status)
}

// getClientStatus reports where slskd stores completed downloads.
// GET /api/v1/client
func (s *Server) getClientStatus(c echo.Context) error {
	status, err := s.downloaderService.GetStatus(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// testClient checks the slskd connection.
// POST /api/v1/client/test
func (s *Server) testClient(c echo.Context) error {
	return c.JSON(http.StatusOK, s.downloaderService.Test(c.Request().Context()))
}

func (s *Server) probeClient(ctx context.Context) error {
	if result := s.downloaderService.Test(ctx); !result.Success {
		return clientTestError(result.Message)
	}
	return nil
}

func (s *Server) schedulerOrNil() *scheduler.Scheduler {
	return s.scheduler
}

func (s *Server) logsOrNil() LogsProvider {
	return s.logs
}
