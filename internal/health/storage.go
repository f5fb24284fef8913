package health

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

const (
	defaultWarnFree  = 0.20
	defaultErrorFree = 0.05
)

// Folder is the observed state of one download folder.
type Folder struct {
	Path       string
	FreeSpace  int64
	TotalSpace int64
	// Problem is set when the folder cannot be used at all.
	Problem string
}

// FreeRatio returns the free fraction of the volume, 0 when unknown.
func (f Folder) FreeRatio() float64 {
	if f.TotalSpace <= 0 {
		return 0
	}
	return float64(f.FreeSpace) / float64(f.TotalSpace)
}

// FolderSource lists the folders to check.
type FolderSource interface {
	Folders(ctx context.Context) ([]Folder, error)
}

// StatusProvider reports where the download client writes completed files.
type StatusProvider interface {
	GetStatus(ctx context.Context) (*types.ClientStatus, error)
}

// DownloadFolders inspects slskd's output folders. They are only visible
// when slskd runs on this host.
type DownloadFolders struct {
	status StatusProvider
	probe  func(path string) error
	usage  func(path string) (free, total int64, err error)
}

// NewDownloadFolders creates a source over the client's output folders.
func NewDownloadFolders(status StatusProvider) *DownloadFolders {
	return &DownloadFolders{status: status, probe: probeFolder, usage: diskUsage}
}

// Folders implements FolderSource.
func (d *DownloadFolders) Folders(ctx context.Context) ([]Folder, error) {
	status, err := d.status.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if !status.IsLocalhost {
		return nil, nil
	}

	folders := make([]Folder, 0, len(status.OutputRootFolders))
	for _, path := range status.OutputRootFolders {
		f := Folder{Path: path}
		if err := d.probe(path); err != nil {
			f.Problem = err.Error()
		} else if f.FreeSpace, f.TotalSpace, err = d.usage(path); err != nil {
			f.Problem = fmt.Sprintf("cannot read disk usage: %v", err)
		}
		folders = append(folders, f)
	}
	return folders, nil
}

// StorageChecker turns folder observations into storage checks.
type StorageChecker struct {
	registry *Registry
	source   FolderSource
	cfg      *config.HealthConfig
	logger   zerolog.Logger

	mu    sync.Mutex
	known map[string]struct{}
}

// NewStorageChecker creates a new storage checker.
func NewStorageChecker(registry *Registry, source FolderSource, cfg *config.HealthConfig, logger zerolog.Logger) *StorageChecker {
	return &StorageChecker{
		registry: registry,
		source:   source,
		cfg:      cfg,
		logger:   logger.With().Str("component", "storage-health").Logger(),
		known:    make(map[string]struct{}),
	}
}

// Check refreshes every folder's check and drops folders that are gone.
func (c *StorageChecker) Check(ctx context.Context) error {
	folders, err := c.source.Folders(ctx)
	if err != nil {
		return fmt.Errorf("list download folders: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seen := make(map[string]struct{}, len(folders))
	for _, f := range folders {
		seen[f.Path] = struct{}{}
		if _, ok := c.known[f.Path]; !ok {
			c.registry.Register(CategoryStorage, f.Path, f.Path)
			c.known[f.Path] = struct{}{}
		}

		status, message := c.classify(f)
		switch status {
		case StatusError:
			c.registry.Fail(CategoryStorage, f.Path, message)
		case StatusWarning:
			c.registry.Degrade(CategoryStorage, f.Path, message)
		default:
			c.registry.Recover(CategoryStorage, f.Path)
		}
	}

	for path := range c.known {
		if _, ok := seen[path]; !ok {
			c.registry.Unregister(CategoryStorage, path)
			delete(c.known, path)
		}
	}
	return nil
}

func (c *StorageChecker) classify(f Folder) (Status, string) {
	if f.Problem != "" {
		return StatusError, f.Problem
	}

	warn, crit := c.cfg.StorageWarningThreshold, c.cfg.StorageErrorThreshold
	if warn <= 0 {
		warn = defaultWarnFree
	}
	if crit <= 0 {
		crit = defaultErrorFree
	}

	free := f.FreeRatio()
	switch {
	case free < crit:
		return StatusError, fmt.Sprintf("Critically low disk space: %.1f%% free", free*100)
	case free < warn:
		return StatusWarning, fmt.Sprintf("Low disk space: %.1f%% free", free*100)
	default:
		return StatusOK, ""
	}
}
