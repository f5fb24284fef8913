package transfer

import (
	"fmt"
	"time"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// ClassifyStatus reduces the transfers of one release to an aggregate status
// and an optional message. Rules are applied in order and the first match wins:
// anything transferring, anything pending, all succeeded, all failed, a mix of
// successes and failures, and finally a bare warning.
func ClassifyStatus(records []Transfer) (types.Status, string) {
	if len(records) == 0 {
		return types.StatusWarning, ""
	}

	var pending bool
	var succeeded, failed int
	for i := range records {
		r := &records[i]
		switch {
		case r.State.IsActive():
			return types.StatusDownloading, ""
		case r.State.IsPending():
			pending = true
		case r.State == StateCompleted && r.SubState == SubStateSucceeded:
			succeeded++
		case r.State == StateCompleted && r.SubState.IsFailure():
			failed++
		}
	}

	switch {
	case pending:
		return types.StatusQueued, ""
	case succeeded == len(records):
		return types.StatusCompleted, ""
	case failed == len(records):
		return types.StatusFailed, fmt.Sprintf("All files in directory %s from user %s have failed",
			records[0].ParentPath, records[0].Username)
	case succeeded > 0 && failed > 0:
		return types.StatusWarning, fmt.Sprintf("%d files downloaded, %d failed, consider retrying the download",
			succeeded, failed)
	default:
		return types.StatusWarning, ""
	}
}

// AverageSpeed returns the mean speed in bytes/sec of the transfers that have
// moved any bytes, or 1 when none have.
func AverageSpeed(records []Transfer) float64 {
	var sum float64
	var n int
	for i := range records {
		if records[i].BytesTransferred > 0 {
			sum += records[i].AverageSpeed
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return sum / float64(n)
}

// RemainingTime estimates how long a downloading release needs. It returns nil
// unless the release is downloading with a positive size and speed.
func RemainingTime(status types.Status, totalSize int64, averageSpeed float64) *time.Duration {
	if status != types.StatusDownloading || totalSize <= 0 || averageSpeed <= 0 {
		return nil
	}
	d := time.Duration(float64(totalSize) / averageSpeed * float64(time.Second))
	return &d
}

// Sizes returns the total and remaining byte counts of the transfers.
func Sizes(records []Transfer) (total, remaining int64) {
	for i := range records {
		total += records[i].Size
		remaining += records[i].BytesRemaining
	}
	return total, remaining
}
