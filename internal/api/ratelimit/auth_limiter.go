// Package ratelimit locks out clients that keep presenting a wrong API key.
package ratelimit

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
	MaxLockoutDuration       = time.Hour
)

type lockout struct {
	failedAttempts int
	lockedUntil    time.Time
	lockoutCount   int
}

// AuthLimiter tracks failed API key attempts per client address. Each
// consecutive lockout lasts longer, up to MaxLockoutDuration.
type AuthLimiter struct {
	mu       sync.RWMutex
	lockouts map[string]*lockout

	maxFailedAttempts   int
	baseLockoutDuration time.Duration
	now                 func() time.Time
}

func NewAuthLimiter() *AuthLimiter {
	return &AuthLimiter{
		lockouts:            make(map[string]*lockout),
		maxFailedAttempts:   DefaultMaxFailedAttempts,
		baseLockoutDuration: DefaultLockoutDuration,
		now:                 time.Now,
	}
}

// Middleware rejects requests from locked out clients.
func (l *AuthLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			if remaining := l.LockoutRemaining(ip); remaining > 0 {
				c.Response().Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many failed attempts, please try again later")
			}
			return next(c)
		}
	}
}

func (l *AuthLimiter) IsLocked(client string) bool {
	return l.LockoutRemaining(client) > 0
}

func (l *AuthLimiter) LockoutRemaining(client string) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	lo, exists := l.lockouts[client]
	if !exists {
		return 0
	}

	remaining := lo.lockedUntil.Sub(l.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (l *AuthLimiter) RecordFailure(client string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lo, exists := l.lockouts[client]
	if !exists {
		lo = &lockout{}
		l.lockouts[client] = lo
	}

	now := l.now()
	if now.After(lo.lockedUntil) && lo.failedAttempts >= l.maxFailedAttempts {
		lo.failedAttempts = 0
	}

	lo.failedAttempts++

	if lo.failedAttempts >= l.maxFailedAttempts {
		lo.lockoutCount++
		duration := l.baseLockoutDuration * time.Duration(lo.lockoutCount)
		if duration > MaxLockoutDuration {
			duration = MaxLockoutDuration
		}
		lo.lockedUntil = now.Add(duration)
	}
}

func (l *AuthLimiter) RecordSuccess(client string) {
	l.mu.RLock()
	_, exists := l.lockouts[client]
	l.mu.RUnlock()
	if !exists {
		return
	}

	l.mu.Lock()
	delete(l.lockouts, client)
	l.mu.Unlock()
}

func (l *AuthLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for client, lo := range l.lockouts {
		if now.After(lo.lockedUntil) && lo.failedAttempts < l.maxFailedAttempts {
			delete(l.lockouts, client)
		}
	}
}

// StartCleanup runs Cleanup every interval until the returned func is called.
func (l *AuthLimiter) StartCleanup(interval time.Duration) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				l.Cleanup()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
