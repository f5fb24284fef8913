// Package tasks registers the bridge's periodic jobs with the scheduler.
package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader"
	"github.com/slipstream/slskbridge/internal/scheduler"
)

const (
	defaultCheckInterval = 5 * time.Minute
	checkTimeout         = time.Minute
)

// ClientTester tests the slskd connection and records the result in health.
type ClientTester interface {
	Test(ctx context.Context) *downloader.TestResult
}

// StorageCheck refreshes the storage checks.
type StorageCheck interface {
	Check(ctx context.Context) error
}

func checkInterval(cfg *config.HealthConfig) time.Duration {
	if cfg.CheckInterval <= 0 {
		return defaultCheckInterval
	}
	return cfg.CheckInterval
}

// RegisterHealthTasks registers the slskd and storage checks. Both run at
// start and then every health.check_interval.
func RegisterHealthTasks(
	sched *scheduler.Scheduler,
	client ClientTester,
	storage StorageCheck,
	cfg *config.HealthConfig,
	logger zerolog.Logger,
) error {
	interval := checkInterval(cfg)
	clientLog := logger.With().Str("task", "download-client-health").Logger()

	err := sched.RegisterTask(scheduler.TaskConfig{
		ID:          "download-client-health",
		Name:        "Download Client Health Check",
		Description: "Tests connectivity to slskd",
		Interval:    interval,
		Timeout:     checkTimeout,
		RunOnStart:  true,
		// An unreachable slskd is a health state, not a task failure.
		Func: func(ctx context.Context) error {
			if result := client.Test(ctx); !result.Success {
				clientLog.Warn().Str("message", result.Message).Msg("slskd health check failed")
			}
			return nil
		},
	})
	if err != nil {
		return err
	}

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "storage-health",
		Name:        "Storage Health Check",
		Description: "Monitors free space in the slskd download folders",
		Interval:    interval,
		Timeout:     checkTimeout,
		RunOnStart:  true,
		Func:        storage.Check,
	})
}
