// Package search runs Soulseek network searches through slskd and turns the
// responses into release listings.
package search

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/health"
	"github.com/slipstream/slskbridge/internal/indexer"
	"github.com/slipstream/slskbridge/internal/indexer/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
	"github.com/slipstream/slskbridge/internal/metrics"
)

const (
	// completionGrace is added to the search timeout when waiting for slskd
	// to mark a search complete.
	completionGrace = 5 * time.Second

	defaultPollInterval = 500 * time.Millisecond

	bytesPerMB = 1024 * 1024
)

// Search outcomes.
const (
	outcomeSuccess = "success"
	outcomeTimeout = "timeout"
	outcomeFailed  = "failed"
)

var errIncomplete = errors.New("search still running")

// Client is the slskd search API.
type Client interface {
	StartSearch(ctx context.Context, req *slskd.SearchRequest) (*slskd.Search, error)
	Search(ctx context.Context, id string, includeResponses bool) (*slskd.Search, error)
	DeleteSearch(ctx context.Context, id string) error
	Searches(ctx context.Context) ([]slskd.Search, error)
}

var _ Client = (*slskd.Client)(nil)

// HealthReporter records search outcomes.
type HealthReporter interface {
	Register(category health.Category, id, name string)
	Fail(category health.Category, id, message string)
	Degrade(category health.Category, id, message string)
	Recover(category health.Category, id string)
}

const healthID = "network"

// Broadcaster interface for sending events to clients.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Config holds search defaults applied when criteria leave a field unset.
type Config struct {
	Timeout            time.Duration
	MinPeerUploadSpeed int // MB/s
	MinFileCount       int
	IgnoredUsers       []string
	PollInterval       time.Duration
}

// SearchResult contains the releases found by one search.
type SearchResult struct {
	SearchID     string              `json:"searchId"`
	Releases     []types.ReleaseInfo `json:"releases"`
	TotalResults int                 `json:"total"`
	Responses    int                 `json:"responses"`
}

// Service runs searches against slskd.
type Service struct {
	client      Client
	cfg         Config
	classifier  *audio.Classifier
	metrics     *metrics.Metrics
	broadcaster Broadcaster
	health      HealthReporter
	logger      zerolog.Logger
	now         func() time.Time
}

// NewService creates a new search service.
func NewService(client Client, cfg Config, logger zerolog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	return &Service{
		client:     client,
		cfg:        cfg,
		classifier: audio.NewClassifier(),
		metrics:    metrics.New(nil),
		logger:     logger.With().Str("component", "search").Logger(),
		now:        time.Now,
	}
}

// SetMetrics sets the collectors the service reports to.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetHealthReporter registers the search check with hr.
func (s *Service) SetHealthReporter(hr HealthReporter) {
	s.health = hr
	hr.Register(health.CategorySearch, healthID, "Soulseek search")
}

// SetBroadcaster sets the WebSocket broadcaster for real-time events.
func (s *Service) SetBroadcaster(broadcaster Broadcaster) {
	s.broadcaster = broadcaster
}

// Search starts a network search, waits for slskd to finish collecting
// responses, and returns the releases found.
func (s *Service) Search(ctx context.Context, criteria types.SearchCriteria) (*SearchResult, error) {
	query := strings.TrimSpace(criteria.Query)
	if query == "" {
		return nil, indexer.NewInvalidQueryError("query is required")
	}
	criteria = s.withDefaults(criteria)

	startTime := time.Now()
	searchID := uuid.NewString()
	log := s.logger.With().Str("searchId", searchID).Str("query", query).Logger()

	s.broadcast(indexer.EventSearchStarted, indexer.SearchStartedPayload{SearchID: searchID, Query: query})
	log.Info().Dur("timeout", criteria.Timeout).Msg("Starting search")

	result, err := s.run(ctx, searchID, query, criteria)
	elapsed := time.Since(startTime)
	s.metrics.SearchDuration.Observe(elapsed.Seconds())

	completed := indexer.SearchCompletedPayload{SearchID: searchID, Query: query, ElapsedMs: elapsed.Milliseconds()}
	if err != nil {
		outcome := outcomeFailed
		if indexer.IsTimeoutError(err) {
			outcome = outcomeTimeout
		}
		s.metrics.Searches.WithLabelValues(outcome).Inc()
		s.reportHealth(err)
		completed.Error = err.Error()
		s.broadcast(indexer.EventSearchCompleted, completed)
		log.Warn().Err(err).Msg("Search failed")
		return nil, err
	}

	s.metrics.Searches.WithLabelValues(outcomeSuccess).Inc()
	s.reportHealth(nil)
	s.metrics.SearchReleases.Observe(float64(result.TotalResults))
	completed.TotalResults = result.TotalResults
	completed.Responses = result.Responses
	s.broadcast(indexer.EventSearchCompleted, completed)

	log.Info().
		Int("totalResults", result.TotalResults).
		Int("responses", result.Responses).
		Dur("elapsed", elapsed).
		Msg("Search completed")
	return result, nil
}

func (s *Service) run(ctx context.Context, searchID, query string, criteria types.SearchCriteria) (*SearchResult, error) {
	req := &slskd.SearchRequest{
		ID:                       searchID,
		SearchText:               query,
		SearchTimeout:            int(criteria.Timeout.Milliseconds()),
		MinimumPeerUploadSpeed:   int64(criteria.MinPeerUploadSpeed) * bytesPerMB,
		MinimumResponseFileCount: criteria.MinFileCount,
	}
	if _, err := s.client.StartSearch(ctx, req); err != nil {
		return nil, indexer.NewNetworkError(searchID, err)
	}

	if err := s.waitForCompletion(ctx, searchID, criteria.Timeout+completionGrace); err != nil {
		return nil, err
	}

	full, err := s.client.Search(ctx, searchID, true)
	if err != nil {
		return nil, indexer.NewNetworkError(searchID, err)
	}

	filter := newReleaseFilter(s.cfg.IgnoredUsers, criteria.MinFileCount)
	releases := buildReleases(full, filter, s.classifier, s.now())
	if criteria.Limit > 0 && len(releases) > criteria.Limit {
		releases = releases[:criteria.Limit]
	}
	if releases == nil {
		releases = []types.ReleaseInfo{}
	}

	return &SearchResult{
		SearchID:     searchID,
		Releases:     releases,
		TotalResults: len(releases),
		Responses:    len(full.Responses),
	}, nil
}

// waitForCompletion polls the search state until slskd marks it complete.
func (s *Service) waitForCompletion(ctx context.Context, searchID string, limit time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	attempts := uint(limit/s.cfg.PollInterval) + 1
	err := retry.Do(
		func() error {
			state, err := s.client.Search(waitCtx, searchID, false)
			if err != nil {
				if slskd.IsNotFound(err) {
					return indexer.NewNotFoundError("search " + searchID + " disappeared")
				}
				return err
			}
			if !state.IsComplete {
				return errIncomplete
			}
			return nil
		},
		retry.Context(waitCtx),
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, indexer.ErrNotFound)
		}),
		retry.Attempts(attempts),
		retry.Delay(s.cfg.PollInterval),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return indexer.NewSearchError(searchID, ctx.Err())
	}
	if errors.Is(err, indexer.ErrNotFound) {
		return err
	}
	return indexer.NewTimeoutError(searchID, err)
}

// Delete removes a finished search from slskd.
func (s *Service) Delete(ctx context.Context, searchID string) error {
	if err := s.client.DeleteSearch(ctx, searchID); err != nil {
		if slskd.IsNotFound(err) {
			return indexer.NewNotFoundError("search " + searchID + " not found")
		}
		return indexer.NewNetworkError(searchID, err)
	}
	s.logger.Debug().Str("searchId", searchID).Msg("Deleted search")
	return nil
}

// Prune deletes completed searches that started before the retention window.
// It returns the number deleted.
func (s *Service) Prune(ctx context.Context, retention time.Duration) (int, error) {
	searches, err := s.client.Searches(ctx)
	if err != nil {
		return 0, indexer.NewNetworkError("", err)
	}

	cutoff := s.now().Add(-retention)
	deleted := 0
	for i := range searches {
		sr := &searches[i]
		if !sr.IsComplete || sr.StartedAt.IsZero() || !sr.StartedAt.Before(cutoff) {
			continue
		}
		if err := s.client.DeleteSearch(ctx, sr.ID); err != nil && !slskd.IsNotFound(err) {
			s.logger.Warn().Err(err).Str("searchId", sr.ID).Msg("Failed to delete expired search")
			continue
		}
		deleted++
	}
	if deleted > 0 {
		s.logger.Info().Int("deleted", deleted).Dur("retention", retention).Msg("Pruned expired searches")
	}
	return deleted, nil
}

func (s *Service) withDefaults(c types.SearchCriteria) types.SearchCriteria {
	if c.Timeout <= 0 {
		c.Timeout = s.cfg.Timeout
	}
	if c.MinPeerUploadSpeed <= 0 {
		c.MinPeerUploadSpeed = s.cfg.MinPeerUploadSpeed
	}
	if c.MinFileCount <= 0 {
		c.MinFileCount = s.cfg.MinFileCount
	}
	return c
}

// reportHealth marks search unhealthy when slskd could not be reached and
// degraded when a search timed out.
func (s *Service) reportHealth(err error) {
	if s.health == nil {
		return
	}
	switch {
	case err == nil:
		s.health.Recover(health.CategorySearch, healthID)
	case indexer.IsNetworkError(err):
		s.health.Fail(health.CategorySearch, healthID, err.Error())
	case indexer.IsTimeoutError(err):
		s.health.Degrade(health.CategorySearch, healthID, err.Error())
	}
}

func (s *Service) broadcast(msgType string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	if err := s.broadcaster.Broadcast(msgType, payload); err != nil {
		s.logger.Debug().Err(err).Str("type", msgType).Msg("Failed to broadcast search event")
	}
}
