package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/scheduler"
)

// SearchPruner deletes searches slskd no longer needs to keep.
type SearchPruner interface {
	Prune(ctx context.Context, retention time.Duration) (int, error)
}

// RegisterSearchCleanupTask registers the task that prunes expired searches.
// A zero retention disables it.
func RegisterSearchCleanupTask(
	sched *scheduler.Scheduler,
	pruner SearchPruner,
	cfg *config.SearchConfig,
	logger zerolog.Logger,
) error {
	if cfg.Retention <= 0 {
		return nil
	}
	log := logger.With().Str("task", "search-cleanup").Logger()
	retention := cfg.Retention

	return sched.RegisterTask(scheduler.TaskConfig{
		ID:          "search-cleanup",
		Name:        "Search Cleanup",
		Description: "Deletes completed searches older than the retention window",
		Interval:    retention / 2,
		Timeout:     checkTimeout,
		Func: func(ctx context.Context) error {
			n, err := pruner.Prune(ctx, retention)
			if err != nil {
				return err
			}
			log.Debug().Int("deleted", n).Msg("Search cleanup finished")
			return nil
		},
	})
}
