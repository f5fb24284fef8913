package health

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Probe re-runs the check behind a category on demand.
type Probe func(ctx context.Context) error

// Handlers provides HTTP handlers for health endpoints.
type Handlers struct {
	registry *Registry
	probes   map[Category]Probe
}

// NewHandlers creates health handlers. Categories without a probe can only
// be read.
func NewHandlers(registry *Registry, probes map[Category]Probe) *Handlers {
	return &Handlers{registry: registry, probes: probes}
}

// RegisterRoutes registers health routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.GetReport)
	g.GET("/summary", h.GetSummary)
	g.GET("/:category", h.GetCategory)
	g.POST("/:category/test", h.TestCategory)
}

// GetReport returns every check grouped by category.
// GET /api/v1/health
func (h *Handlers) GetReport(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Report())
}

// GetSummary returns per-category counts.
// GET /api/v1/health/summary
func (h *Handlers) GetSummary(c echo.Context) error {
	return c.JSON(http.StatusOK, h.registry.Summary())
}

// GET /api/v1/health/:category
func (h *Handlers) GetCategory(c echo.Context) error {
	category, ok := ParseCategory(c.Param("category"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid health category")
	}
	return c.JSON(http.StatusOK, h.registry.Checks(category))
}

type testResponse struct {
	Category Category `json:"category"`
	Success  bool     `json:"success"`
	Message  string   `json:"message,omitempty"`
	Checks   []Check  `json:"checks"`
}

// TestCategory runs the category's probe and returns its checks.
// POST /api/v1/health/:category/test
func (h *Handlers) TestCategory(c echo.Context) error {
	category, ok := ParseCategory(c.Param("category"))
	if !ok {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid health category")
	}
	probe, ok := h.probes[category]
	if !ok {
		return echo.NewHTTPError(http.StatusMethodNotAllowed, "category "+string(category)+" cannot be tested on demand")
	}

	resp := testResponse{Category: category, Success: true}
	if err := probe(c.Request().Context()); err != nil {
		resp.Success = false
		resp.Message = err.Error()
	}
	resp.Checks = h.registry.Checks(category)
	return c.JSON(http.StatusOK, resp)
}
