package downloader

import (
	"context"
	"errors"

	"github.com/avast/retry-go"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/downloader/types"
	"github.com/slipstream/slskbridge/internal/metrics"
)

var errNotTerminal = errors.New("transfer not yet completed")

// Remove cancels every transfer of a release. With deleteData it also waits
// for each cancellation to settle, has slskd drop the transfer and its data,
// and deletes the download directory.
//
// A release that slskd no longer knows about counts as removed. Directory
// deletion is best effort and never fails the call.
func (s *Service) Remove(ctx context.Context, id string, deleteData bool) error {
	key, err := s.resolver.Resolve(id)
	if err != nil {
		if errors.Is(err, types.ErrNotFound) {
			s.metrics.Removals.WithLabelValues(metrics.OutcomeAlreadyRemoved).Inc()
			s.logger.Warn().Str("id", id).Msg("No user or directory found for release, treating as removed")
			return nil
		}
		return err
	}

	log := s.logger.With().Str("username", key.Username).Str("path", key.Path).Logger()

	user, err := s.client.UserDownloads(ctx, key.Username)
	if err != nil {
		if slskd.IsNotFound(err) {
			s.metrics.Removals.WithLabelValues(metrics.OutcomeAlreadyRemoved).Inc()
			log.Info().Msg("User has no transfers left, treating release as removed")
			return nil
		}
		s.metrics.Removals.WithLabelValues(metrics.OutcomeFailed).Inc()
		return types.NewRemovalError(key.Username, key.Path, err)
	}

	dir := findDirectory(user, key)
	if dir == nil {
		s.metrics.Removals.WithLabelValues(metrics.OutcomeAlreadyRemoved).Inc()
		log.Info().Msg("Directory no longer queued, treating release as removed")
		return nil
	}

	for _, f := range dir.Files {
		if err := s.cancel(ctx, key, f.ID, false); err != nil {
			s.metrics.Removals.WithLabelValues(metrics.OutcomeFailed).Inc()
			return err
		}
		if !deleteData {
			continue
		}

		if err := s.waitForTerminal(ctx, key, f.ID); err != nil {
			s.metrics.Removals.WithLabelValues(metrics.OutcomeFailed).Inc()
			return types.NewRemovalError(key.Username, key.Path, err)
		}
		if err := s.cancel(ctx, key, f.ID, true); err != nil {
			s.metrics.Removals.WithLabelValues(metrics.OutcomeFailed).Inc()
			return err
		}
	}

	if deleteData {
		s.deleteDirectory(ctx, dir.Directory)
	}

	s.metrics.Removals.WithLabelValues(metrics.OutcomeRemoved).Inc()
	log.Info().Int("files", len(dir.Files)).Bool("deleteData", deleteData).Msg("Removed release")
	s.notifyQueueChanged()
	return nil
}

func findDirectory(user *transfer.UserTransfers, key identity.Key) *transfer.Directory {
	for i := range user.Directories {
		d := &user.Directories[i]
		names := make([]string, len(d.Files))
		for j := range d.Files {
			names[j] = d.Files[j].Filename
		}
		if key.Matches(d.Directory, names) {
			return d
		}
	}
	return nil
}

func (s *Service) cancel(ctx context.Context, key identity.Key, fileID string, remove bool) error {
	err := s.client.CancelDownload(ctx, key.Username, fileID, remove)
	if err == nil || slskd.IsNotFound(err) {
		s.logger.Trace().Str("username", key.Username).Str("file", fileID).Bool("remove", remove).Msg("Cancelled transfer")
		return nil
	}
	return types.NewRemovalError(key.Username, key.Path, err)
}

// waitForTerminal polls a cancelled transfer until slskd reports it completed
// or the wait ceiling passes. Hitting the ceiling is logged and not an error;
// only cancellation of ctx is returned.
func (s *Service) waitForTerminal(ctx context.Context, key identity.Key, fileID string) error {
	timeout := s.opts.RemoveWaitTimeout
	interval := s.opts.RemovePollInterval

	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	attempts := uint(timeout/interval) + 1
	err := retry.Do(
		func() error {
			t, err := s.client.Download(waitCtx, key.Username, fileID)
			if err != nil {
				if slskd.IsNotFound(err) {
					return nil
				}
				return err
			}
			if err := t.Parse(); err != nil {
				return err
			}
			if !t.IsTerminal() {
				return errNotTerminal
			}
			return nil
		},
		retry.Context(waitCtx),
		retry.Attempts(attempts),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.metrics.RemovalTimeouts.Inc()
	s.logger.Warn().
		Err(types.NewTimeoutError(key.Username, key.Path, timeout)).
		Str("file", fileID).
		AnErr("lastError", err).
		Msg("Timed out waiting for cancelled transfer, continuing")
	return nil
}

func (s *Service) deleteDirectory(ctx context.Context, directory string) {
	log := s.logger.With().Str("directory", directory).Logger()

	exists, err := s.client.DirectoryExists(ctx, directory)
	if err != nil {
		s.metrics.DirectoryDeletes.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Warn().Err(err).Msg("Failed to check download directory, skipping deletion")
		return
	}
	if !exists {
		s.metrics.DirectoryDeletes.WithLabelValues(metrics.OutcomeAlreadyRemoved).Inc()
		log.Debug().Msg("Download directory does not exist on disk, skipping deletion")
		return
	}

	if err := s.client.DeleteDirectory(ctx, directory); err != nil {
		s.metrics.DirectoryDeletes.WithLabelValues(metrics.OutcomeFailed).Inc()
		log.Error().Err(err).Msg("Failed to delete download directory")
		return
	}
	s.metrics.DirectoryDeletes.WithLabelValues(metrics.OutcomeRemoved).Inc()
	log.Info().Msg("Deleted download directory")
}
