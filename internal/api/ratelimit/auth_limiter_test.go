package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestAuthLimiter_LocksAfterRepeatedFailures(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewAuthLimiter()
	l.now = func() time.Time { return now }

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		l.RecordFailure("10.0.0.1")
	}
	assert.False(t, l.IsLocked("10.0.0.1"))

	l.RecordFailure("10.0.0.1")
	assert.True(t, l.IsLocked("10.0.0.1"))
	assert.Equal(t, DefaultLockoutDuration, l.LockoutRemaining("10.0.0.1"))
	assert.False(t, l.IsLocked("10.0.0.2"))

	// The second lockout lasts twice as long.
	now = now.Add(DefaultLockoutDuration + time.Second)
	assert.False(t, l.IsLocked("10.0.0.1"))
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		l.RecordFailure("10.0.0.1")
	}
	assert.Equal(t, 2*DefaultLockoutDuration, l.LockoutRemaining("10.0.0.1"))
}

func TestAuthLimiter_SuccessClears(t *testing.T) {
	l := NewAuthLimiter()
	l.RecordFailure("10.0.0.1")
	l.RecordSuccess("10.0.0.1")
	l.RecordSuccess("10.0.0.9")

	l.mu.RLock()
	defer l.mu.RUnlock()
	assert.Empty(t, l.lockouts)
}

func TestAuthLimiter_Middleware(t *testing.T) {
	l := NewAuthLimiter()
	e := echo.New()
	e.GET("/", func(c echo.Context) error { return c.NoContent(http.StatusOK) }, l.Middleware())

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		l.RecordFailure("192.0.2.1")
	}
	rec := do()
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}
