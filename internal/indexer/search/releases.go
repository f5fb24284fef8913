package search

import (
	"sort"
	"strings"
	"time"

	"github.com/slipstream/slskbridge/internal/downloader/identity"
	"github.com/slipstream/slskbridge/internal/downloader/slskd"
	"github.com/slipstream/slskbridge/internal/indexer/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// releaseFilter holds the per-search filtering rules applied to responses.
type releaseFilter struct {
	ignoredUsers map[string]bool // lowercased
	minFileCount int
}

func newReleaseFilter(ignoredUsers []string, minFileCount int) releaseFilter {
	f := releaseFilter{ignoredUsers: make(map[string]bool, len(ignoredUsers)), minFileCount: minFileCount}
	for _, u := range ignoredUsers {
		if u = strings.TrimSpace(u); u != "" {
			f.ignoredUsers[strings.ToLower(u)] = true
		}
	}
	if f.minFileCount < 1 {
		f.minFileCount = 1
	}
	return f
}

// buildReleases turns search responses into releases, one per user directory
// holding enough audio files, largest first.
func buildReleases(s *slskd.Search, filter releaseFilter, classifier *audio.Classifier, now time.Time) []types.ReleaseInfo {
	var releases []types.ReleaseInfo
	for i := range s.Responses {
		resp := &s.Responses[i]
		if filter.ignoredUsers[strings.ToLower(resp.Username)] {
			continue
		}

		for _, dir := range groupByDirectory(resp.Files) {
			files := classifier.FilterAudio(dir.files)
			if len(files) < filter.minFileCount {
				continue
			}
			releases = append(releases, newRelease(s.ID, resp, dir.path, files, now))
		}
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return releases[i].Size > releases[j].Size
	})
	return releases
}

type directoryFiles struct {
	path  string
	files []audio.File
}

// groupByDirectory groups files by parent path in order of first appearance.
func groupByDirectory(files []audio.File) []directoryFiles {
	index := make(map[string]int)
	var groups []directoryFiles
	for _, f := range files {
		if f.ParentPath == "" && f.Filename != "" {
			f.SetPath(f.Filename)
		}
		i, ok := index[f.ParentPath]
		if !ok {
			i = len(groups)
			index[f.ParentPath] = i
			groups = append(groups, directoryFiles{path: f.ParentPath})
		}
		groups[i].files = append(groups[i].files, f)
	}
	return groups
}

func newRelease(searchID string, resp *slskd.SearchResponse, directory string, files []audio.File, now time.Time) types.ReleaseInfo {
	downloadPath := directory
	if len(files) == 1 {
		downloadPath = files[0].Filename
	}

	var size int64
	for i := range files {
		size += files[i].Size
	}

	// Faster peers look newer so age based ranking prefers them.
	publish := now
	if resp.UploadSpeed > 0 {
		publish = now.Add(-time.Duration(float64(size) / float64(resp.UploadSpeed) * float64(time.Second)))
	}

	return types.ReleaseInfo{
		GUID:           identity.Key{Username: resp.Username, Path: downloadPath}.String(),
		Title:          audio.BuildTitle(files),
		DownloadURL:    downloadPath,
		Size:           size,
		PublishDate:    publish,
		FileCount:      len(files),
		Protocol:       types.ProtocolSoulseek,
		Source:         resp.Username,
		Origin:         searchID,
		UploadSpeed:    resp.UploadSpeed,
		FreeUploadSlot: resp.HasFreeUploadSlot,
		QueueLength:    resp.QueueLength,
	}
}
