// Package startup holds helpers used while the bridge is starting up.
package startup

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
)

// RetryConfig configures the exponential backoff retry behavior. Delays
// double after each attempt up to MaxDelay.
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxAttempts  int
}

// DefaultRetryConfig returns the backoff used while waiting for slskd.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		InitialDelay: 2 * time.Second,
		MaxDelay:     time.Minute,
		MaxAttempts:  8,
	}
}

// IsNetworkError checks if an error is likely due to network unavailability.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	var dnsErr *net.DNSError
	if errors.As(err, &netErr) || errors.As(err, &dnsErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	networkIndicators := []string{
		"connection refused",
		"no such host",
		"timeout",
		"network is unreachable",
		"no route to host",
		"host is down",
		"dial tcp",
		"dial udp",
		"i/o timeout",
		"connection reset",
		"temporary failure in name resolution",
	}
	for _, indicator := range networkIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}

	return false
}

// WithRetry executes fn with exponential backoff retry for network errors only.
// Non-network errors fail immediately without retry.
func WithRetry(ctx context.Context, name string, cfg RetryConfig, fn func() error, logger *zerolog.Logger) error {
	attempt := uint(0)
	err := retry.Do(
		func() error {
			attempt++
			return fn()
		},
		retry.Context(ctx),
		retry.Attempts(uint(cfg.MaxAttempts)), //nolint:gosec // small positive count
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(IsNetworkError),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn().
				Err(err).
				Str("operation", name).
				Uint("attempt", n+1).
				Int("maxAttempts", cfg.MaxAttempts).
				Msg("network error, will retry")
		}),
	)
	if err == nil {
		if attempt > 1 {
			logger.Info().Str("operation", name).Uint("attempt", attempt).Msg("operation succeeded after retry")
		}
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if !IsNetworkError(err) {
		logger.Error().Err(err).Str("operation", name).Msg("non-network error, not retrying")
		return err
	}
	logger.Error().Err(err).Str("operation", name).Uint("attempts", attempt).
		Msg("operation failed after all retries")
	return err
}
