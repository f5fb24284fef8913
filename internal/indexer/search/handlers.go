package search

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/slskbridge/internal/indexer"
	"github.com/slipstream/slskbridge/internal/indexer/types"
)

// Handlers provides HTTP handlers for search operations.
type Handlers struct {
	service SearchService
}

// NewHandlers creates new search handlers.
func NewHandlers(service SearchService) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes registers the search routes.
func (h *Handlers) RegisterRoutes(g *echo.Group) {
	g.GET("", h.Search)
	g.DELETE("/:id", h.Delete)
}

// SearchRequest represents a search request.
type SearchRequest struct {
	Query              string `query:"query"`
	TimeoutSeconds     int    `query:"timeout"`
	MinPeerUploadSpeed int    `query:"minPeerUploadSpeed"` // MB/s
	MinFileCount       int    `query:"minFileCount"`
	Limit              int    `query:"limit"`
}

// Search handles search requests.
// GET /api/v1/search?query=...&timeout=...&minFileCount=...&limit=...
func (h *Handlers) Search(c echo.Context) error {
	var req SearchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "Invalid request parameters",
		})
	}

	criteria := types.SearchCriteria{
		Query:              req.Query,
		Timeout:            time.Duration(req.TimeoutSeconds) * time.Second,
		MinPeerUploadSpeed: req.MinPeerUploadSpeed,
		MinFileCount:       req.MinFileCount,
		Limit:              req.Limit,
	}

	result, err := h.service.Search(c.Request().Context(), criteria)
	if err != nil {
		return c.JSON(statusFor(err), map[string]string{
			"error": err.Error(),
		})
	}

	return c.JSON(http.StatusOK, result)
}

// Delete removes a search from slskd.
// DELETE /api/v1/search/:id
func (h *Handlers) Delete(c echo.Context) error {
	if err := h.service.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return c.JSON(statusFor(err), map[string]string{
			"error": err.Error(),
		})
	}
	return c.NoContent(http.StatusNoContent)
}

func statusFor(err error) int {
	switch indexer.GetErrorCode(err) {
	case indexer.ErrCodeInvalidQuery:
		return http.StatusBadRequest
	case indexer.ErrCodeNotFound:
		return http.StatusNotFound
	case indexer.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case indexer.ErrCodeNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
