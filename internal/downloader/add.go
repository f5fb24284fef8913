package downloader

import (
	"context"
	"fmt"
	"strings"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/downloader/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// AddRequest identifies a search result to download: the search it came
// from, the user sharing it, and either a directory or a single file path.
type AddRequest struct {
	SearchID     string `json:"searchId"`
	Username     string `json:"username"`
	DownloadPath string `json:"downloadPath"`
}

// Validate checks that every field is set.
func (r *AddRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.SearchID) == "" {
		missing = append(missing, "searchId")
	}
	if strings.TrimSpace(r.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(r.DownloadPath) == "" {
		missing = append(missing, "downloadPath")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// Add enqueues the audio files of a search result and returns the identifier
// the release will have in the queue.
func (s *Service) Add(ctx context.Context, req *AddRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	search, err := s.client.Search(ctx, req.SearchID, true)
	if err != nil {
		if slskd.IsNotFound(err) {
			return "", fmt.Errorf("search %s: %w", req.SearchID, types.ErrNotFound)
		}
		return "", types.NewConnectivityError("fetch search", err)
	}
	if len(search.Responses) == 0 {
		return "", fmt.Errorf("search %s has no responses: %w", req.SearchID, types.ErrNotFound)
	}

	var response *slskd.SearchResponse
	for i := range search.Responses {
		if strings.EqualFold(search.Responses[i].Username, req.Username) {
			response = &search.Responses[i]
			break
		}
	}
	if response == nil {
		return "", fmt.Errorf("user %s not in search %s: %w", req.Username, req.SearchID, types.ErrNotFound)
	}

	var selected []audio.File
	for i := range response.Files {
		f := response.Files[i]
		if f.Filename != req.DownloadPath && f.ParentPath != req.DownloadPath {
			continue
		}
		s.classifier.Classify(&f)
		if s.classifier.IsAudio(&f) {
			selected = append(selected, f)
		}
	}
	if len(selected) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoAudioFiles, req.DownloadPath)
	}

	files := make([]slskd.EnqueueRequest, len(selected))
	for i, f := range selected {
		files[i] = slskd.EnqueueRequest{Filename: f.Filename, Size: f.Size}
	}
	if err := s.client.Enqueue(ctx, response.Username, files); err != nil {
		return "", types.NewConnectivityError("enqueue downloads", err)
	}

	key := identity.KeyFor(response.Username, selected[0].ParentPath, selected)
	id := s.resolver.Identifier(key)
	s.resolver.Remember(id, key)

	s.metrics.EnqueuedReleases.Inc()
	s.logger.Info().
		Str("username", response.Username).
		Str("path", key.Path).
		Int("files", len(selected)).
		Msg("Enqueued release")
	s.notifyQueueChanged()

	return id, nil
}
