package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/slskbridge/internal/downloader"
)

// getQueue returns every release slskd is tracking.
// GET /api/v1/queue
func (s *Server) getQueue(c echo.Context) error {
	releases, err := s.downloaderService.GetQueue(c.Request().Context())
	if err != nil {
		return errorJSON(c, err)
	}
	if releases == nil {
		releases = []downloader.Release{}
	}
	return c.JSON(http.StatusOK, releases)
}

// addRelease enqueues a search result.
// POST /api/v1/queue
func (s *Server) addRelease(c echo.Context) error {
	var req downloader.AddRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	id, err := s.downloaderService.Add(c.Request().Context(), &req)
	if err != nil {
		return errorJSON(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"id": id})
}

// removeRelease cancels a release and optionally deletes its files.
// Identifiers may contain backslashes, so clients should percent-encode them.
// DELETE /api/v1/queue/:id?deleteData=true
func (s *Server) removeRelease(c echo.Context) error {
	id := c.Param("id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}

	deleteData := false
	if raw := c.QueryParam("deleteData"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "deleteData must be a boolean"})
		}
		deleteData = v
	}

	if err := s.downloaderService.Remove(c.Request().Context(), id, deleteData); err != nil {
		return errorJSON(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
