package downloader

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/downloader/types"
	"github.com/slipstream/slskbridge/internal/health"
	"github.com/slipstream/slskbridge/internal/library/audio"
	"github.com/slipstream/slskbridge/internal/metrics"
)

const healthID = "slskd"

const minRemovePollInterval = 100 * time.Millisecond

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrNoAudioFiles   = errors.New("no audio files found")
)

// Client is the slskd API surface the service depends on.
type Client interface {
	Test(ctx context.Context) error
	BaseURL() string
	Options(ctx context.Context) (*slskd.Options, error)
	Downloads(ctx context.Context) ([]transfer.UserTransfers, error)
	UserDownloads(ctx context.Context, username string) (*transfer.UserTransfers, error)
	Download(ctx context.Context, username, id string) (*transfer.Transfer, error)
	CancelDownload(ctx context.Context, username, id string, remove bool) error
	DirectoryExists(ctx context.Context, directory string) (bool, error)
	DeleteDirectory(ctx context.Context, directory string) error
	Enqueue(ctx context.Context, username string, files []slskd.EnqueueRequest) error
	Search(ctx context.Context, id string, includeResponses bool) (*slskd.Search, error)
}

var _ Client = (*slskd.Client)(nil)

// HealthReporter records the outcome of connection tests.
type HealthReporter interface {
	Register(category health.Category, id, name string)
	Fail(category health.Category, id, message string)
	Recover(category health.Category, id string)
}

// Options tunes queue reconciliation and removal.
type Options struct {
	IdentifierScheme   identity.Scheme
	Concurrency        int
	RemoveWaitTimeout  time.Duration
	RemovePollInterval time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		IdentifierScheme:   identity.SchemeLiteral,
		Concurrency:        4,
		RemoveWaitTimeout:  10 * time.Second,
		RemovePollInterval: 500 * time.Millisecond,
	}
}

// TestResult represents the result of testing the slskd connection.
type TestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Service turns slskd transfers into releases and manages them.
type Service struct {
	client        Client
	opts          Options
	logger        zerolog.Logger
	classifier    *audio.Classifier
	resolver      *identity.Resolver
	metrics       *metrics.Metrics
	health        HealthReporter
	trigger       func()

	clientCfgMu sync.RWMutex
	isLocalhost bool
}

// NewService creates a new download client service.
func NewService(client Client, opts Options, logger zerolog.Logger) *Service {
	def := DefaultOptions()
	if opts.IdentifierScheme == "" {
		opts.IdentifierScheme = def.IdentifierScheme
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = def.Concurrency
	}
	if opts.RemoveWaitTimeout <= 0 {
		opts.RemoveWaitTimeout = def.RemoveWaitTimeout
	}
	if opts.RemovePollInterval <= 0 {
		opts.RemovePollInterval = def.RemovePollInterval
	}
	if opts.RemovePollInterval < minRemovePollInterval {
		opts.RemovePollInterval = minRemovePollInterval
	}

	return &Service{
		client:     client,
		opts:       opts,
		logger:     logger.With().Str("component", "downloader").Logger(),
		classifier: audio.NewClassifier(),
		resolver:   identity.NewResolver(opts.IdentifierScheme),
		metrics:    metrics.New(nil),
	}
}

// SetMetrics sets the collectors the service reports to.
func (s *Service) SetMetrics(m *metrics.Metrics) {
	s.metrics = m
}

// SetHealthReporter registers the slskd check with hr.
func (s *Service) SetHealthReporter(hr HealthReporter) {
	s.health = hr
	hr.Register(health.CategoryDownloadClients, healthID, "slskd")
}

// SetQueueTrigger sets a callback run after the queue changes through this
// service, typically QueueBroadcaster.Trigger.
func (s *Service) SetQueueTrigger(fn func()) {
	s.trigger = fn
}

// SetLocalhost records whether slskd runs on this host, for GetStatus.
func (s *Service) SetLocalhost(local bool) {
	s.clientCfgMu.Lock()
	s.isLocalhost = local
	s.clientCfgMu.Unlock()
}

// Resolver returns the identifier resolver used by the queue.
func (s *Service) Resolver() *identity.Resolver {
	return s.resolver
}

// Test checks connectivity to slskd and updates the client's health.
func (s *Service) Test(ctx context.Context) *TestResult {
	if err := s.client.Test(ctx); err != nil {
		s.metrics.ClientUp.Set(0)
		if s.health != nil {
			s.health.Fail(health.CategoryDownloadClients, healthID, err.Error())
		}
		return &TestResult{Success: false, Message: err.Error()}
	}

	s.metrics.ClientUp.Set(1)
	if s.health != nil {
		s.health.Recover(health.CategoryDownloadClients, healthID)
	}
	return &TestResult{Success: true, Message: "Connection successful"}
}

// GetStatus reports where slskd places completed downloads.
func (s *Service) GetStatus(ctx context.Context) (*types.ClientStatus, error) {
	opts, err := s.client.Options(ctx)
	if err != nil {
		return nil, types.NewConnectivityError("fetch daemon options", err)
	}

	s.clientCfgMu.RLock()
	local := s.isLocalhost
	s.clientCfgMu.RUnlock()

	status := &types.ClientStatus{IsLocalhost: local, OutputRootFolders: []string{}}
	if opts.Directories.Downloads != "" {
		status.OutputRootFolders = append(status.OutputRootFolders, opts.Directories.Downloads)
	}
	return status, nil
}

func (s *Service) notifyQueueChanged() {
	if s.trigger != nil {
		s.trigger()
	}
}
