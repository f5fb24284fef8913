package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/indexer"
	"github.com/slipstream/slskbridge/internal/indexer/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// fakeClient completes a search after a number of polls.
type fakeClient struct {
	mu         sync.Mutex
	started    []*slskd.SearchRequest
	polls      int
	completeAt int
	responses  []slskd.SearchResponse
	startErr   error
	pollErr    error
	deleted    []string
	fetched    bool
	listed     []slskd.Search
}

func (f *fakeClient) StartSearch(_ context.Context, req *slskd.SearchRequest) (*slskd.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, req)
	return &slskd.Search{ID: req.ID, SearchText: req.SearchText}, nil
}

func (f *fakeClient) Search(_ context.Context, id string, includeResponses bool) (*slskd.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	s := &slskd.Search{ID: id}
	if includeResponses {
		f.fetched = true
		s.IsComplete = true
		s.Responses = f.responses
		return s, nil
	}
	f.polls++
	s.IsComplete = f.completeAt >= 0 && f.polls >= f.completeAt
	return s, nil
}

func (f *fakeClient) DeleteSearch(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	if id == "missing" {
		return &slskd.StatusError{StatusCode: http.StatusNotFound}
	}
	return nil
}

func (f *fakeClient) Searches(context.Context) ([]slskd.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listed, nil
}

func flac(path string, size int64) audio.File {
	f := audio.NewFile(path, size)
	f.Extension = "flac"
	return f
}

func sampleResponses() []slskd.SearchResponse {
	return []slskd.SearchResponse{
		{
			Username:    "fast",
			UploadSpeed: 1000,
			Files: []audio.File{
				flac(`Music\Artist\Album\01.flac`, 3000),
				flac(`Music\Artist\Album\02.flac`, 2000),
				audio.NewFile(`Music\Artist\Album\cover.jpg`, 100),
				flac(`Music\Artist\Single\only.flac`, 4000),
			},
		},
		{
			Username:    "Blocked",
			UploadSpeed: 5000,
			Files: []audio.File{
				flac(`Share\Big\01.flac`, 90000),
				flac(`Share\Big\02.flac`, 90000),
			},
		},
		{
			Username: "slow",
			Files: []audio.File{
				audio.NewFile(`Pics\a.jpg`, 10),
			},
		},
	}
}

func newTestSearch(client Client, cfg Config) *Service {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 10 * time.Millisecond
	}
	s := NewService(client, cfg, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestBuildReleases(t *testing.T) {
	search := &slskd.Search{ID: "s-1", Responses: sampleResponses()}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	releases := buildReleases(search, newReleaseFilter([]string{"blocked"}, 0), audio.NewClassifier(), now)
	require.Len(t, releases, 2)

	album := releases[0]
	assert.Equal(t, `fast\Music\Artist\Album`, album.GUID)
	assert.Equal(t, `Music\Artist\Album`, album.DownloadURL)
	assert.Equal(t, int64(5000), album.Size)
	assert.Equal(t, 2, album.FileCount)
	assert.Equal(t, "fast", album.Source)
	assert.Equal(t, "s-1", album.Origin)
	assert.Equal(t, now.Add(-5*time.Second), album.PublishDate)
	assert.Equal(t, types.ProtocolSoulseek, album.Protocol)
	assert.Equal(t, "Artist FLAC", album.Title)

	single := releases[1]
	assert.Equal(t, `fast\Music\Artist\Single\only.flac`, single.GUID)
	assert.Equal(t, `Music\Artist\Single\only.flac`, single.DownloadURL)
	assert.Equal(t, int64(4000), single.Size)
	assert.Equal(t, "Artist Single FLAC", single.Title)
}

func TestBuildReleases_SortedBySizeDescending(t *testing.T) {
	search := &slskd.Search{ID: "s-1", Responses: sampleResponses()}

	releases := buildReleases(search, newReleaseFilter(nil, 1), audio.NewClassifier(), time.Now())
	require.Len(t, releases, 3)
	for i := 1; i < len(releases); i++ {
		if releases[i-1].Size < releases[i].Size {
			t.Errorf("releases[%d].Size = %d < releases[%d].Size = %d", i-1, releases[i-1].Size, i, releases[i].Size)
		}
	}
	assert.Equal(t, "Blocked", releases[0].Source)
}

func TestBuildReleases_MinFileCount(t *testing.T) {
	search := &slskd.Search{ID: "s-1", Responses: sampleResponses()}

	releases := buildReleases(search, newReleaseFilter(nil, 2), audio.NewClassifier(), time.Now())
	require.Len(t, releases, 2)
	for _, r := range releases {
		assert.GreaterOrEqual(t, r.FileCount, 2)
	}
}

func TestService_Search(t *testing.T) {
	client := &fakeClient{completeAt: 3, responses: sampleResponses()}
	svc := newTestSearch(client, Config{
		Timeout:            2 * time.Second,
		MinPeerUploadSpeed: 2,
		MinFileCount:       1,
		IgnoredUsers:       []string{"BLOCKED"},
	})

	result, err := svc.Search(context.Background(), types.SearchCriteria{Query: "  artist album "})
	require.NoError(t, err)

	require.Len(t, client.started, 1)
	req := client.started[0]
	assert.Equal(t, "artist album", req.SearchText)
	assert.Equal(t, 2000, req.SearchTimeout)
	assert.Equal(t, int64(2*1024*1024), req.MinimumPeerUploadSpeed)
	assert.Equal(t, result.SearchID, req.ID)

	assert.Equal(t, 3, client.polls)
	assert.True(t, client.fetched)
	assert.Equal(t, 2, result.TotalResults)
	assert.Equal(t, 3, result.Responses)
	assert.Equal(t, result.SearchID, result.Releases[0].Origin)
	assert.InDelta(t, 1, testutil.ToFloat64(svc.metrics.Searches.WithLabelValues(outcomeSuccess)), 0)
}

func TestService_SearchLimit(t *testing.T) {
	client := &fakeClient{completeAt: 1, responses: sampleResponses()}
	svc := newTestSearch(client, Config{Timeout: time.Second})

	result, err := svc.Search(context.Background(), types.SearchCriteria{Query: "x", Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Releases, 1)
}

func TestService_SearchErrors(t *testing.T) {
	t.Run("empty query", func(t *testing.T) {
		svc := newTestSearch(&fakeClient{}, Config{})
		_, err := svc.Search(context.Background(), types.SearchCriteria{Query: "   "})
		assert.ErrorIs(t, err, indexer.ErrInvalidQuery)
	})

	t.Run("start failure", func(t *testing.T) {
		svc := newTestSearch(&fakeClient{startErr: errors.New("connection refused")}, Config{Timeout: time.Second})
		_, err := svc.Search(context.Background(), types.SearchCriteria{Query: "x"})
		assert.True(t, indexer.IsNetworkError(err))
	})

	t.Run("search disappears", func(t *testing.T) {
		client := &fakeClient{pollErr: &slskd.StatusError{StatusCode: http.StatusNotFound}}
		svc := newTestSearch(client, Config{Timeout: time.Second})
		_, err := svc.Search(context.Background(), types.SearchCriteria{Query: "x"})
		assert.ErrorIs(t, err, indexer.ErrNotFound)
	})
}

func TestService_SearchTimeout(t *testing.T) {
	client := &fakeClient{completeAt: -1}
	svc := newTestSearch(client, Config{PollInterval: 50 * time.Millisecond})

	start := time.Now()
	err := svc.waitForCompletion(context.Background(), "s-1", 200*time.Millisecond)
	assert.True(t, indexer.IsTimeoutError(err), "err = %v", err)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestService_Delete(t *testing.T) {
	client := &fakeClient{}
	svc := newTestSearch(client, Config{})

	require.NoError(t, svc.Delete(context.Background(), "s-1"))
	assert.ErrorIs(t, svc.Delete(context.Background(), "missing"), indexer.ErrNotFound)
	assert.Equal(t, []string{"s-1", "missing"}, client.deleted)
}

func TestService_Prune(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) transfer.Timestamp { return transfer.Timestamp{Time: now.Add(-d)} }

	client := &fakeClient{listed: []slskd.Search{
		{ID: "old", IsComplete: true, StartedAt: at(2 * time.Hour)},
		{ID: "old-running", IsComplete: false, StartedAt: at(2 * time.Hour)},
		{ID: "recent", IsComplete: true, StartedAt: at(time.Minute)},
		{ID: "missing", IsComplete: true, StartedAt: at(3 * time.Hour)},
	}}
	svc := newTestSearch(client, Config{})

	n, err := svc.Prune(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"old", "missing"}, client.deleted)
}

func TestHandlers_Search(t *testing.T) {
	client := &fakeClient{completeAt: 1, responses: sampleResponses()}
	h := NewHandlers(newTestSearch(client, Config{Timeout: time.Second}))

	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1/search"))

	tests := []struct {
		name       string
		target     string
		wantStatus int
	}{
		{"ok", "/api/v1/search?query=artist&timeout=1", http.StatusOK},
		{"missing query", "/api/v1/search", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("GET %s status = %d, want %d (body %s)", tt.target, rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestHandlers_Delete(t *testing.T) {
	h := NewHandlers(newTestSearch(&fakeClient{}, Config{}))
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1/search"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/search/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/search/s-1", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
