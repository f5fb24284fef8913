//nolint:revive // Package name 'api' is intentionally generic for the HTTP API layer
package api

import (
	"net/http"
	"os"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/slskbridge/internal/logger"
)

const defaultLogLimit = 200

// LogsProvider provides access to log data.
type LogsProvider interface {
	Recent(limit int) []logger.Entry
	FilePath() string
}

// LogsHandlers handles log-related HTTP endpoints.
type LogsHandlers struct {
	provider func() LogsProvider
}

// NewLogsHandlers creates a new logs handlers instance. provider may return
// nil when log capture is off.
func NewLogsHandlers(provider func() LogsProvider) *LogsHandlers {
	return &LogsHandlers{provider: provider}
}

// RegisterRoutes registers log routes on the given group.
func (h *LogsHandlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetRecentLogs)
	g.GET("/download", h.DownloadLogFile)
}

// GetRecentLogs returns recent log entries, newest last.
// GET /api/v1/logs?limit=N
func (h *LogsHandlers) GetRecentLogs(c echo.Context) error {
	limit := defaultLogLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	var logs []logger.Entry
	if p := h.provider(); p != nil {
		logs = p.Recent(limit)
	}
	if logs == nil {
		logs = []logger.Entry{}
	}
	return c.JSON(http.StatusOK, logs)
}

// DownloadLogFile serves the current log file for download.
func (h *LogsHandlers) DownloadLogFile(c echo.Context) error {
	p := h.provider()
	if p == nil || p.FilePath() == "" {
		return echo.NewHTTPError(http.StatusNotFound, "no log file configured")
	}
	logPath := p.FilePath()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		return echo.NewHTTPError(http.StatusNotFound, "log file not found")
	}

	return c.Attachment(logPath, "slskbridge.log")
}
