package health

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/slskbridge/internal/config"
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

func TestProbeFolder(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, probeFolder(dir))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "probe left files behind")

	assert.ErrorContains(t, probeFolder(filepath.Join(dir, "missing")), "does not exist")

	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	assert.ErrorContains(t, probeFolder(file), "not a directory")
}

type staticStatus struct {
	status *types.ClientStatus
	err    error
}

func (s staticStatus) GetStatus(context.Context) (*types.ClientStatus, error) {
	return s.status, s.err
}

type staticFolders []Folder

func (s staticFolders) Folders(context.Context) ([]Folder, error) {
	return s, nil
}

func TestDownloadFolders(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")

	d := NewDownloadFolders(staticStatus{status: &types.ClientStatus{
		IsLocalhost:       true,
		OutputRootFolders: []string{dir, missing},
	}})
	d.usage = func(string) (int64, int64, error) { return 50, 100, nil }

	folders, err := d.Folders(context.Background())
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, dir, folders[0].Path)
	assert.Empty(t, folders[0].Problem)
	assert.InDelta(t, 0.5, folders[0].FreeRatio(), 0.001)
	assert.NotEmpty(t, folders[1].Problem)
}

func TestDownloadFolders_RemoteClientSkipped(t *testing.T) {
	d := NewDownloadFolders(staticStatus{status: &types.ClientStatus{OutputRootFolders: []string{"/srv/downloads"}}})
	folders, err := d.Folders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, folders)

	d = NewDownloadFolders(staticStatus{err: errors.New("offline")})
	_, err = d.Folders(context.Background())
	assert.Error(t, err)
}

func TestStorageChecker(t *testing.T) {
	r := newTestRegistry()
	source := staticFolders{
		{Path: "/ok", FreeSpace: 50, TotalSpace: 100},
		{Path: "/low", FreeSpace: 10, TotalSpace: 100},
		{Path: "/full", FreeSpace: 1, TotalSpace: 100},
		{Path: "/gone", Problem: "folder does not exist: /gone"},
	}
	checker := NewStorageChecker(r, source, &config.HealthConfig{}, zerolog.Nop())

	require.NoError(t, checker.Check(context.Background()))

	tests := []struct {
		path string
		want Status
	}{
		{"/ok", StatusOK},
		{"/low", StatusWarning},
		{"/full", StatusError},
		{"/gone", StatusError},
	}
	for _, tt := range tests {
		c, ok := r.Get(CategoryStorage, tt.path)
		require.True(t, ok, tt.path)
		if c.Status != tt.want {
			t.Errorf("status(%s) = %s, want %s", tt.path, c.Status, tt.want)
		}
	}

	// Folders dropped from slskd's settings are unregistered.
	checker.source = staticFolders{{Path: "/ok", FreeSpace: 50, TotalSpace: 100}}
	require.NoError(t, checker.Check(context.Background()))
	assert.Len(t, r.Checks(CategoryStorage), 1)
}

func TestStorageChecker_CustomThresholds(t *testing.T) {
	r := newTestRegistry()
	cfg := &config.HealthConfig{StorageWarningThreshold: 0.6, StorageErrorThreshold: 0.4}
	checker := NewStorageChecker(r, staticFolders{{Path: "/half", FreeSpace: 50, TotalSpace: 100}}, cfg, zerolog.Nop())

	require.NoError(t, checker.Check(context.Background()))
	c, _ := r.Get(CategoryStorage, "/half")
	assert.Equal(t, StatusWarning, c.Status)
}
