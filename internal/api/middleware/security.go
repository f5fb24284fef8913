package middleware

import (
	"github.com/labstack/echo/v4"
)

// HeaderVersion reports the bridge version on every response.
const HeaderVersion = "X-Slskbridge-Version"

// SecurityHeaders sets the headers for a JSON-only API. Nothing served
// here is meant to be framed, cached, or rendered as a document.
func SecurityHeaders(version string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "no-referrer")
			h.Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			h.Set("Cache-Control", "no-store")
			if version != "" {
				h.Set(HeaderVersion, version)
			}
			return next(c)
		}
	}
}
