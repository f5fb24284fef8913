// Package downloader reconciles slskd transfers into releases and manages
// their lifecycle.
package downloader

import (
	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// Re-export types for convenience.
// This allows external packages to use downloader.Release instead of types.Release.

type (
	Release      = types.Release
	Status       = types.Status
	ClientStatus = types.ClientStatus
	ClientConfig = types.ClientConfig
)

// Re-export constants.
const (
	StatusQueued      = types.StatusQueued
	StatusDownloading = types.StatusDownloading
	StatusCompleted   = types.StatusCompleted
	StatusFailed      = types.StatusFailed
	StatusWarning     = types.StatusWarning
)

// Re-export errors.
var (
	ErrNotConnected = types.ErrNotConnected
	ErrAuthFailed   = types.ErrAuthFailed
	ErrNotFound     = types.ErrNotFound
)
