package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/slskbridge/internal/downloader"
	"github.com/slipstream/slskbridge/internal/downloader/mock"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/library/audio"
	"github.com/slipstream/slskbridge/internal/logger"
	"github.com/slipstream/slskbridge/internal/scheduler"
	"github.com/slipstream/slskbridge/internal/testutil"
)

const (
	testAPIKey = "secret"
	albumDir   = `Music\Artist\Album`
)

type testServer struct {
	*Server
	client *mock.Client
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()

	cfg := testutil.NewConfig(t, testAPIKey)
	client := mock.New()
	server := NewServer(client, nil, cfg, testutil.NewLogger(t))
	return &testServer{Server: server, client: client}
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("X-Api-Key", testAPIKey)
	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) seedAlbum() {
	for _, name := range []string{"01.flac", "02.flac"} {
		ts.client.AddTransfer("alice", albumDir, transfer.Transfer{
			File:           audio.File{Filename: albumDir + `\` + name, Size: 100},
			RawState:       "InProgress",
			BytesRemaining: 50,
		})
	}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t)

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("HealthCheck status = %d, want %d", rec.Code, http.StatusOK)
	}

	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to parse response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("HealthCheck status = %q, want %q", response["status"], "ok")
	}
}

func TestAPIKeyRequired(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name       string
		header     string
		query      string
		wantStatus int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "nope", "", http.StatusUnauthorized},
		{"header", testAPIKey, "", http.StatusOK},
		{"query", "", "?apikey=" + testAPIKey, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/status"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("X-Api-Key", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.echo.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("GET /api/v1/status status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestGetStatus(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	for _, field := range []string{"version", "startTime", "identifierScheme", "health"} {
		if _, ok := response[field]; !ok {
			t.Errorf("GetStatus missing %s field", field)
		}
	}
}

func TestGetQueue(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	ts.seedAlbum()
	rec = ts.do(http.MethodGet, "/api/v1/queue", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var releases []downloader.Release
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &releases))
	require.Len(t, releases, 1)
	assert.Equal(t, `alice\`+albumDir, releases[0].ID)
	assert.Equal(t, downloader.StatusDownloading, releases[0].Status)
}

func TestGetQueue_ClientUnreachable(t *testing.T) {
	ts := setupTestServer(t)
	ts.client.SetError(mock.MethodDownloads, errors.New("connection refused"))

	rec := ts.do(http.MethodGet, "/api/v1/queue", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestAddRelease(t *testing.T) {
	ts := setupTestServer(t)
	ts.client.AddSearch(&slskd.Search{
		ID:         "search-1",
		IsComplete: true,
		Responses: []slskd.SearchResponse{{
			Username: "peer",
			Files: []audio.File{
				audio.NewFile(albumDir+`\01.flac`, 100),
				audio.NewFile(albumDir+`\cover.jpg`, 10),
			},
		}},
	})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"searchId":"search-1","username":"peer","downloadPath":"Music\\Artist\\Album"}`, http.StatusCreated},
		{"missing fields", `{"searchId":"search-1"}`, http.StatusBadRequest},
		{"malformed", `{`, http.StatusBadRequest},
		{"unknown search", `{"searchId":"nope","username":"peer","downloadPath":"x"}`, http.StatusNotFound},
		{"no audio", `{"searchId":"search-1","username":"peer","downloadPath":"Music\\Artist\\Album\\cover.jpg"}`, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(http.MethodPost, "/api/v1/queue", tt.body)
			if rec.Code != tt.wantStatus {
				t.Errorf("POST /api/v1/queue status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}

	assert.Equal(t, 1, ts.client.TransferCount("peer"))
}

func TestRemoveRelease(t *testing.T) {
	ts := setupTestServer(t)
	ts.seedAlbum()

	target := "/api/v1/queue/" + url.PathEscape(`alice\`+albumDir)
	rec := ts.do(http.MethodDelete, target, "")
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	assert.Len(t, ts.client.Calls(mock.MethodCancelDownload), 2)

	// Removing again still succeeds.
	rec = ts.do(http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(http.MethodDelete, target+"?deleteData=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClientEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/client", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), mock.MockDownloadDir)

	rec = ts.do(http.MethodPost, "/api/v1/client/test", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestSearchEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.client.SetSearchResponses([]slskd.SearchResponse{{
		Username:    "peer",
		UploadSpeed: 1000,
		Files: []audio.File{
			audio.NewFile(albumDir+`\01.flac`, 100),
			audio.NewFile(albumDir+`\02.flac`, 100),
		},
	}})

	rec := ts.do(http.MethodGet, "/api/v1/search?query=artist+album", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result struct {
		SearchID string `json:"searchId"`
		Total    int    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.NotEmpty(t, result.SearchID)
	assert.Equal(t, 1, result.Total)
}

func TestHealthEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodPost, "/api/v1/health/downloadClients/test", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/v1/health/downloadClients", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"slskd"`)
}

func TestSchedulerEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/scheduler/tasks", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, sched.Start())
	t.Cleanup(func() { _ = sched.Stop() })
	ts.SetScheduler(sched)

	rec = ts.do(http.MethodGet, "/api/v1/scheduler/tasks", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/v1/scheduler/tasks/missing/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLogsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(http.MethodGet, "/api/v1/logs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	stream := logger.NewStream(10)
	log := zerolog.New(stream)
	log.Info().Str("component", "test").Msg("hello")
	ts.SetLogs(streamLogs{stream})

	rec = ts.do(http.MethodGet, "/api/v1/logs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hello")

	rec = ts.do(http.MethodGet, "/api/v1/logs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type streamLogs struct{ *logger.Stream }

func (streamLogs) FilePath() string { return "" }

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	rec := httptest.NewRecorder()
	ts.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
