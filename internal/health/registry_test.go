package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBroadcaster struct {
	mu       sync.Mutex
	messages []string
}

func (r *recordingBroadcaster) Broadcast(msgType string, _ interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msgType)
	return nil
}

func newTestRegistry() *Registry {
	r := NewRegistry(zerolog.Nop())
	r.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestWorst(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusOK, StatusOK, StatusOK},
		{StatusOK, StatusWarning, StatusWarning},
		{StatusError, StatusWarning, StatusError},
		{StatusWarning, StatusError, StatusError},
	}
	for _, tt := range tests {
		if got := Worst(tt.a, tt.b); got != tt.want {
			t.Errorf("Worst(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestRegistry_Transitions(t *testing.T) {
	r := newTestRegistry()
	b := &recordingBroadcaster{}
	r.SetBroadcaster(b)

	r.Register(CategoryDownloadClients, "slskd", "slskd")
	assert.True(t, r.Healthy(CategoryDownloadClients))

	r.Fail(CategoryDownloadClients, "slskd", "connection refused")
	c, ok := r.Get(CategoryDownloadClients, "slskd")
	require.True(t, ok)
	assert.Equal(t, StatusError, c.Status)
	assert.Equal(t, "connection refused", c.Message)
	require.NotNil(t, c.Since)
	since := *c.Since
	assert.Equal(t, 1, c.Failures)

	// A repeat is counted but not re-broadcast.
	r.now = func() time.Time { return since.Add(time.Minute) }
	r.Fail(CategoryDownloadClients, "slskd", "connection refused")
	c, _ = r.Get(CategoryDownloadClients, "slskd")
	assert.Equal(t, 2, c.Failures)

	// A new message keeps the original Since.
	r.Fail(CategoryDownloadClients, "slskd", "timeout")
	c, _ = r.Get(CategoryDownloadClients, "slskd")
	assert.Equal(t, since, *c.Since)

	r.Recover(CategoryDownloadClients, "slskd")
	c, _ = r.Get(CategoryDownloadClients, "slskd")
	assert.Equal(t, StatusOK, c.Status)
	assert.Nil(t, c.Since)
	assert.Zero(t, c.Failures)

	assert.Equal(t, []string{EventUpdated, EventUpdated, EventUpdated, EventUpdated}, b.messages)
}

func TestRegistry_DegradeIgnoredForBinaryCategory(t *testing.T) {
	r := newTestRegistry()
	r.Register(CategoryDownloadClients, "slskd", "slskd")
	r.Register(CategorySearch, "network", "Soulseek search")

	r.Degrade(CategoryDownloadClients, "slskd", "slow")
	r.Degrade(CategorySearch, "network", "timed out")

	c, _ := r.Get(CategoryDownloadClients, "slskd")
	assert.Equal(t, StatusOK, c.Status)
	c, _ = r.Get(CategorySearch, "network")
	assert.Equal(t, StatusWarning, c.Status)
}

func TestRegistry_UnknownCheckIgnored(t *testing.T) {
	r := newTestRegistry()
	r.Fail(CategoryStorage, "/nope", "boom")
	_, ok := r.Get(CategoryStorage, "/nope")
	assert.False(t, ok)
}

func TestRegistry_RegisterKeepsStatus(t *testing.T) {
	r := newTestRegistry()
	r.Register(CategorySearch, "network", "search")
	r.Fail(CategorySearch, "network", "down")
	r.Register(CategorySearch, "network", "Soulseek search")

	c, _ := r.Get(CategorySearch, "network")
	assert.Equal(t, StatusError, c.Status)
	assert.Equal(t, "Soulseek search", c.Name)
}

func TestRegistry_Report(t *testing.T) {
	r := newTestRegistry()
	r.Register(CategoryDownloadClients, "slskd", "slskd")
	r.Register(CategoryStorage, "/b", "/b")
	r.Register(CategoryStorage, "/a", "/a")
	r.Degrade(CategoryStorage, "/b", "Low disk space")

	rep := r.Report()
	assert.Equal(t, StatusWarning, rep.Status)
	require.Len(t, rep.Categories, len(Categories()))

	storage := rep.Category(CategoryStorage)
	require.NotNil(t, storage)
	assert.Equal(t, StatusWarning, storage.Status)
	assert.Equal(t, 1, storage.OK)
	assert.Equal(t, 1, storage.Warning)
	require.Len(t, storage.Checks, 2)
	assert.Equal(t, "/a", storage.Checks[0].ID)

	search := rep.Category(CategorySearch)
	assert.Equal(t, StatusOK, search.Status)
	assert.Empty(t, search.Checks)

	summary := r.Summary()
	assert.Nil(t, summary.Category(CategoryStorage).Checks)

	data, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "checks")
}

func TestRegistry_Unregister(t *testing.T) {
	r := newTestRegistry()
	b := &recordingBroadcaster{}
	r.Register(CategoryStorage, "/a", "/a")
	r.SetBroadcaster(b)

	r.Unregister(CategoryStorage, "/a")
	r.Unregister(CategoryStorage, "/a")

	assert.Empty(t, r.Checks(CategoryStorage))
	assert.Equal(t, []string{EventRemoved}, b.messages)
}

func TestHandlers(t *testing.T) {
	r := newTestRegistry()
	r.Register(CategoryDownloadClients, "slskd", "slskd")

	var probed bool
	h := NewHandlers(r, map[Category]Probe{
		CategoryDownloadClients: func(context.Context) error {
			probed = true
			r.Fail(CategoryDownloadClients, "slskd", "connection refused")
			return errors.New("connection refused")
		},
	})
	e := echo.New()
	h.RegisterRoutes(e.Group("/api/v1/health"))

	tests := []struct {
		name       string
		method     string
		target     string
		wantStatus int
	}{
		{"report", http.MethodGet, "/api/v1/health", http.StatusOK},
		{"summary", http.MethodGet, "/api/v1/health/summary", http.StatusOK},
		{"category", http.MethodGet, "/api/v1/health/storage", http.StatusOK},
		{"bad category", http.MethodGet, "/api/v1/health/indexers", http.StatusBadRequest},
		{"test client", http.MethodPost, "/api/v1/health/downloadClients/test", http.StatusOK},
		{"no probe", http.MethodPost, "/api/v1/health/search/test", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s status = %d, want %d", tt.method, tt.target, rec.Code, tt.wantStatus)
			}
		})
	}
	assert.True(t, probed)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/health/downloadClients/test", nil))
	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "connection refused", resp.Message)
	require.Len(t, resp.Checks, 1)
	assert.Equal(t, StatusError, resp.Checks[0].Status)
}
