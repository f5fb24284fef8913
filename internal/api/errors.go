package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/slipstream/slskbridge/internal/downloader"
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// statusFor maps queue and client errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, downloader.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, downloader.ErrNoAudioFiles):
		return http.StatusUnprocessableEntity
	case types.IsConnectivityError(err), types.IsRemovalError(err), types.IsMalformedStateError(err):
		return http.StatusBadGateway
	case types.IsTimeoutError(err):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, err error) error {
	return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
}
