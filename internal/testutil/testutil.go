// Package testutil provides testing utilities shared by package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/config"
)

// NewLogger returns a logger that writes through t.Log, so output only
// shows for failing tests.
func NewLogger(t *testing.T) zerolog.Logger {
	t.Helper()
	return zerolog.New(zerolog.NewTestWriter(t)).Level(zerolog.DebugLevel)
}

// NewConfig returns the default configuration with the given bridge API key,
// short removal timings and logging to a temp directory.
func NewConfig(t *testing.T, apiKey string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Server.APIKey = apiKey
	cfg.Slskd.APIKey = "test-slskd-key"
	cfg.Logging.Path = t.TempDir()
	cfg.Queue.RemoveWaitTimeout = 300 * time.Millisecond
	cfg.Queue.RemovePollInterval = 100 * time.Millisecond
	return cfg
}
