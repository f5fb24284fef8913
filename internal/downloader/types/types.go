// Package types defines shared types for the slskd download client.
package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common errors for the download client.
var (
	ErrNotImplemented = errors.New("operation not implemented")
	ErrNotConnected   = errors.New("client not connected")
	ErrAuthFailed     = errors.New("authentication failed")
	ErrNotFound       = errors.New("download not found")
)

// Protocol represents the download protocol.
type Protocol string

const (
	ProtocolSoulseek Protocol = "soulseek"
)

// ClientType represents the type of download client.
type ClientType string

const (
	ClientTypeSlskd ClientType = "slskd"
)

// ClientConfig holds the connection settings for the slskd daemon.
type ClientConfig struct {
	Host    string
	Port    int
	UseSSL  bool
	URLBase string
	APIKey  string
	Timeout time.Duration
}

// BaseURL returns the scheme, host, port and url base of the daemon.
func (c *ClientConfig) BaseURL() string {
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
	if base := strings.Trim(c.URLBase, "/"); base != "" {
		baseURL += "/" + base
	}
	return baseURL
}

// Release is one logical download: every transfer from one user under one
// directory, or a single file when that is all the directory holds.
type Release struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	Username      string         `json:"username"`
	Directory     string         `json:"directory"`
	Status        Status         `json:"status"`
	Message       string         `json:"message,omitempty"`
	Progress      float64        `json:"progress"` // 0-100
	TotalSize     int64          `json:"totalSize"`
	RemainingSize int64          `json:"remainingSize"`
	RemainingTime *time.Duration `json:"-"`
	ETA           int64          `json:"eta"` // seconds, -1 if unavailable
	OutputPath    string         `json:"outputPath"`
	FileCount     int            `json:"fileCount"`
	CanBeRemoved  bool           `json:"canBeRemoved"`
}

// Status represents the aggregate status of a release.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
	StatusWarning     Status = "warning"
)

// IsActive reports whether the release is still transferring or waiting to.
func (s Status) IsActive() bool {
	return s == StatusQueued || s == StatusDownloading
}

// AllStatuses lists every aggregate status, used for per-status metrics.
var AllStatuses = []Status{
	StatusQueued,
	StatusDownloading,
	StatusCompleted,
	StatusFailed,
	StatusWarning,
}

// ClientStatus describes the daemon as seen by the host application.
type ClientStatus struct {
	IsLocalhost       bool     `json:"isLocalhost"`
	OutputRootFolders []string `json:"outputRootFolders"`
}
