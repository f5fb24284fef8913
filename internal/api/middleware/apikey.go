package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// HeaderAPIKey carries the bridge API key.
const HeaderAPIKey = "X-Api-Key"

// FailureRecorder is told about requests with a wrong key.
type FailureRecorder interface {
	RecordFailure(client string)
	RecordSuccess(client string)
}

// APIKey rejects requests that do not present key in the X-Api-Key header or
// the apikey query parameter. An empty key disables the check.
func APIKey(key string, failures FailureRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if key == "" {
			return next
		}
		return func(c echo.Context) error {
			got := c.Request().Header.Get(HeaderAPIKey)
			if got == "" {
				// Browsers cannot set headers on WebSocket upgrades.
				got = c.QueryParam("apikey")
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				if failures != nil {
					failures.RecordFailure(c.RealIP())
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or missing API key")
			}
			if failures != nil {
				failures.RecordSuccess(c.RealIP())
			}
			return next(c)
		}
	}
}
