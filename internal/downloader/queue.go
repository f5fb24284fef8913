package downloader

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/downloader/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
	"github.com/slipstream/slskbridge/internal/metrics"
)

type directoryGroup struct {
	username  string
	directory transfer.Directory
}

type builtRelease struct {
	release *types.Release
	key     identity.Key
}

// GetQueue rebuilds the release list from slskd's current transfers. Failing
// to reach slskd returns a connectivity error and no releases; a directory
// with unparseable transfer states is skipped without affecting the others.
func (s *Service) GetQueue(ctx context.Context) ([]types.Release, error) {
	start := time.Now()
	defer func() {
		s.metrics.SyncDuration.Observe(time.Since(start).Seconds())
	}()

	users, err := s.client.Downloads(ctx)
	if err != nil {
		s.metrics.SyncErrors.Inc()
		return nil, types.NewConnectivityError("list transfers", err)
	}
	opts, err := s.client.Options(ctx)
	if err != nil {
		s.metrics.SyncErrors.Inc()
		return nil, types.NewConnectivityError("fetch daemon options", err)
	}

	groups := flattenGroups(users)
	built := make([]*builtRelease, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, grp := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			b, err := s.buildRelease(grp.username, grp.directory, opts.Directories.Downloads)
			if err != nil {
				s.metrics.SkippedGroups.WithLabelValues(metrics.SkipMalformedState).Inc()
				s.logger.Warn().Err(err).
					Str("username", grp.username).
					Str("directory", grp.directory.Directory).
					Msg("Skipping directory with malformed transfer state")
				return nil
			}
			if b == nil {
				s.metrics.SkippedGroups.WithLabelValues(metrics.SkipNoAudio).Inc()
				return nil
			}
			built[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	table := identity.NewTable()
	releases := make([]types.Release, 0, len(built))
	counts := make(map[types.Status]int, len(types.AllStatuses))
	for _, b := range built {
		if b == nil {
			continue
		}
		table.Add(b.release.ID, b.key)
		releases = append(releases, *b.release)
		counts[b.release.Status]++
	}
	s.resolver.Replace(table)

	for _, status := range types.AllStatuses {
		s.metrics.Releases.WithLabelValues(string(status)).Set(float64(counts[status]))
	}

	s.logger.Debug().
		Int("releases", len(releases)).
		Int("directories", len(groups)).
		Dur("elapsed", time.Since(start)).
		Msg("Queue synced")

	return releases, nil
}

// flattenGroups lists every (user, directory) pair ordered by username and
// then directory so the queue order is stable between polls.
func flattenGroups(users []transfer.UserTransfers) []directoryGroup {
	var groups []directoryGroup
	for _, u := range users {
		for _, d := range u.Directories {
			groups = append(groups, directoryGroup{username: u.Username, directory: d})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].username != groups[j].username {
			return groups[i].username < groups[j].username
		}
		return groups[i].directory.Directory < groups[j].directory.Directory
	})
	return groups
}

// buildRelease reconciles one directory. It returns nil without error when
// the directory holds no audio.
func (s *Service) buildRelease(username string, dir transfer.Directory, downloadsRoot string) (*builtRelease, error) {
	records := make([]transfer.Transfer, 0, len(dir.Files))
	for _, f := range dir.Files {
		if err := f.Parse(); err != nil {
			return nil, fmt.Errorf("file %s: %w", f.Filename, err)
		}
		if f.Username == "" {
			f.Username = username
		}
		s.classifier.Classify(&f.File)
		if s.classifier.IsAudio(&f.File) {
			records = append(records, f)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	files := make([]audio.File, len(records))
	for i := range records {
		files[i] = records[i].File
	}

	key := identity.KeyFor(username, dir.Directory, files)
	status, message := transfer.ClassifyStatus(records)
	if message == "" {
		message = fmt.Sprintf("Downloaded from user %s", username)
	}
	total, remaining := transfer.Sizes(records)
	remainingTime := transfer.RemainingTime(status, total, transfer.AverageSpeed(records))

	release := &types.Release{
		ID:            s.resolver.Identifier(key),
		Title:         audio.BuildTitle(files),
		Username:      username,
		Directory:     key.Path,
		Status:        status,
		Message:       message,
		Progress:      progress(total, remaining),
		TotalSize:     total,
		RemainingSize: remaining,
		RemainingTime: remainingTime,
		ETA:           -1,
		OutputPath:    joinDaemonPath(downloadsRoot, files[0].FirstParentFolder),
		FileCount:     len(records),
		CanBeRemoved:  true,
	}
	if remainingTime != nil {
		release.ETA = int64(remainingTime.Seconds())
	}

	return &builtRelease{release: release, key: key}, nil
}

func progress(total, remaining int64) float64 {
	if total <= 0 {
		return 0
	}
	done := total - remaining
	if done < 0 {
		done = 0
	}
	return float64(done) / float64(total) * 100
}

// joinDaemonPath joins a folder onto a path reported by slskd, keeping the
// daemon's separator style.
func joinDaemonPath(root, folder string) string {
	if root == "" {
		return folder
	}
	if folder == "" {
		return root
	}
	sep := "/"
	if strings.Contains(root, `\`) && !strings.Contains(root, "/") {
		sep = `\`
	}
	return strings.TrimRight(root, `/\`) + sep + folder
}
