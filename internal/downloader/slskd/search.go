package slskd

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/slipstream/slskbridge/internal/downloader/transfer"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// SearchRequest starts a network search. The ID is chosen by the caller.
type SearchRequest struct {
	ID                       string `json:"id"`
	SearchText               string `json:"searchText"`
	SearchTimeout            int    `json:"searchTimeout,omitempty"` // milliseconds
	MinimumPeerUploadSpeed   int64  `json:"minimumPeerUploadSpeed,omitempty"`
	MinimumResponseFileCount int    `json:"minimumResponseFileCount,omitempty"`
	FileLimit                int    `json:"fileLimit,omitempty"`
	ResponseLimit            int    `json:"responseLimit,omitempty"`
	FilterResponses          *bool  `json:"filterResponses,omitempty"`
	MaximumPeerQueueLength   int    `json:"maximumPeerQueueLength,omitempty"`
}

// Search is a search and, when requested, the responses it collected.
type Search struct {
	ID            string             `json:"id"`
	SearchText    string             `json:"searchText"`
	State         string             `json:"state"`
	IsComplete    bool               `json:"isComplete"`
	FileCount     int                `json:"fileCount"`
	ResponseCount int                `json:"responseCount"`
	StartedAt     transfer.Timestamp `json:"startedAt"`
	EndedAt       transfer.Timestamp `json:"endedAt"`
	Responses     []SearchResponse   `json:"responses"`
}

// SearchResponse is one user's answer to a search.
type SearchResponse struct {
	Username          string       `json:"username"`
	HasFreeUploadSlot bool         `json:"hasFreeUploadSlot"`
	QueueLength       int          `json:"queueLength"`
	UploadSpeed       int64        `json:"uploadSpeed"` // bytes/sec
	FileCount         int          `json:"fileCount"`
	Files             []audio.File `json:"files"`
	LockedFileCount   int          `json:"lockedFileCount"`
}

// StartSearch submits a search and returns its initial state.
func (c *Client) StartSearch(ctx context.Context, req *SearchRequest) (*Search, error) {
	var s Search
	if err := c.do(ctx, http.MethodPost, "/searches", req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Search fetches a search, optionally with its responses. Response files have
// their path segments derived.
func (c *Client) Search(ctx context.Context, id string, includeResponses bool) (*Search, error) {
	var s Search
	path := fmt.Sprintf("/searches/%s?includeResponses=%s", url.PathEscape(id), strconv.FormatBool(includeResponses))
	if err := c.get(ctx, path, &s); err != nil {
		return nil, err
	}

	for i := range s.Responses {
		files := s.Responses[i].Files
		for j := range files {
			files[j].SetPath(files[j].Filename)
		}
	}
	return &s, nil
}

// DeleteSearch removes a finished search from the daemon.
func (c *Client) DeleteSearch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/searches/"+url.PathEscape(id), nil, nil)
}

// Searches lists every search the daemon remembers, without responses.
func (c *Client) Searches(ctx context.Context) ([]Search, error) {
	var out []Search
	if err := c.get(ctx, "/searches", &out); err != nil {
		return nil, err
	}
	return out, nil
}
