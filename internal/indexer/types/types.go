// Package types contains shared type definitions for indexer packages.
package types

import (
	"time"
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolSoulseek Protocol = "soulseek"
)

// SearchCriteria defines search parameters. Zero values fall back to the
// configured search defaults.
type SearchCriteria struct {
	Query              string        `json:"query"`
	Timeout            time.Duration `json:"-"`
	MinPeerUploadSpeed int           `json:"minPeerUploadSpeed,omitempty"` // MB/s
	MinFileCount       int           `json:"minFileCount,omitempty"`
	Limit              int           `json:"limit,omitempty"`
}

// ReleaseInfo represents one downloadable directory (or single file) found
// by a search.
//
// Source, Origin and DownloadURL are the username, search ID and path that
// a download request needs.
type ReleaseInfo struct {
	GUID        string    `json:"guid"`
	Title       string    `json:"title"`
	DownloadURL string    `json:"downloadUrl"`
	Size        int64     `json:"size"`
	PublishDate time.Time `json:"publishDate"`
	FileCount   int       `json:"fileCount"`
	Protocol    Protocol  `json:"protocol"`

	Source string `json:"source"`
	Origin string `json:"origin"`

	// Peer info
	UploadSpeed    int64 `json:"uploadSpeed"` // bytes/sec
	FreeUploadSlot bool  `json:"freeUploadSlot"`
	QueueLength    int   `json:"queueLength"`
}
