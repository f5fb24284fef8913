package transfer

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipstream/slskbridge/internal/downloader/types"
	"github.com/slipstream/slskbridge/internal/library/audio"
)

func record(t *testing.T, name, state string) Transfer {
	t.Helper()
	tr := Transfer{
		File:     audio.File{Filename: `peer\Music\Artist\Album\` + name, Size: 100},
		Username: "peer",
		RawState: state,
	}
	require.NoError(t, tr.Parse())
	return tr
}

func records(t *testing.T, states ...string) []Transfer {
	t.Helper()
	out := make([]Transfer, 0, len(states))
	for i, s := range states {
		out = append(out, record(t, fmt.Sprintf("%02d.flac", i+1), s))
	}
	return out
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		name    string
		states  []string
		want    types.Status
		message string
	}{
		{
			name:   "one in progress among succeeded is downloading",
			states: append([]string{"InProgress"}, repeat("Completed, Succeeded", 9)...),
			want:   types.StatusDownloading,
		},
		{
			name:   "initializing wins over queued",
			states: []string{"Queued, Remotely", "Initializing"},
			want:   types.StatusDownloading,
		},
		{
			name:   "queued with completed is queued",
			states: []string{"Completed, Succeeded", "Queued, Locally"},
			want:   types.StatusQueued,
		},
		{
			name:   "requested is queued",
			states: []string{"Requested", "Completed, Errored"},
			want:   types.StatusQueued,
		},
		{
			name:   "all succeeded",
			states: repeat("Completed, Succeeded", 3),
			want:   types.StatusCompleted,
		},
		{
			name:    "all failed",
			states:  []string{"Completed, Errored", "Completed, Rejected", "Completed, TimedOut"},
			want:    types.StatusFailed,
			message: `All files in directory peer\Music\Artist\Album from user peer have failed`,
		},
		{
			name:    "mixed succeeded and failed",
			states:  []string{"Completed, Succeeded", "Completed, Succeeded", "Completed, Errored"},
			want:    types.StatusWarning,
			message: "2 files downloaded, 1 failed, consider retrying the download",
		},
		{
			name:   "completed without outcome",
			states: []string{"Completed"},
			want:   types.StatusWarning,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, message := ClassifyStatus(records(t, tt.states...))
			assert.Equal(t, tt.want, status)
			assert.Equal(t, tt.message, message)
		})
	}
}

func TestClassifyStatus_Empty(t *testing.T) {
	status, message := ClassifyStatus(nil)
	assert.Equal(t, types.StatusWarning, status)
	assert.Empty(t, message)
}

func TestAverageSpeed(t *testing.T) {
	recs := []Transfer{
		{BytesTransferred: 10, AverageSpeed: 100},
		{BytesTransferred: 0, AverageSpeed: 5000},
		{BytesTransferred: 20, AverageSpeed: 300},
	}
	assert.InDelta(t, 200.0, AverageSpeed(recs), 0.001)

	idle := []Transfer{{BytesTransferred: 0, AverageSpeed: 0}}
	assert.InDelta(t, 1.0, AverageSpeed(idle), 0.001)
}

func TestRemainingTime(t *testing.T) {
	got := RemainingTime(types.StatusDownloading, 1000, 100)
	require.NotNil(t, got)
	assert.Equal(t, 10*time.Second, *got)

	assert.Nil(t, RemainingTime(types.StatusQueued, 1000, 100))
	assert.Nil(t, RemainingTime(types.StatusDownloading, 0, 100))
	assert.Nil(t, RemainingTime(types.StatusDownloading, 1000, 0))
}

func TestSizes(t *testing.T) {
	recs := []Transfer{
		{File: audio.File{Size: 100}, BytesRemaining: 40},
		{File: audio.File{Size: 50}, BytesRemaining: 0},
	}
	total, remaining := Sizes(recs)
	assert.Equal(t, int64(150), total)
	assert.Equal(t, int64(40), remaining)
}

func TestTransfer_Decode(t *testing.T) {
	payload := `{
		"id": "6b1c5a0e-2a2c-4f0b-9a55-2a5b7b0c1d11",
		"username": "peer",
		"direction": "Download",
		"filename": "@@abcde\\Music\\Artist\\Album\\01 - Intro.flac",
		"size": 31457280,
		"state": "InProgress",
		"requestedAt": "2024-05-01T10:00:00.1234567",
		"enqueuedAt": "2024-05-01T10:00:01Z",
		"startedAt": null,
		"bytesTransferred": 1048576,
		"bytesRemaining": 30408704,
		"averageSpeed": 524288.5,
		"percentComplete": 3.33
	}`

	var tr Transfer
	require.NoError(t, json.Unmarshal([]byte(payload), &tr))
	require.NoError(t, tr.Parse())

	assert.Equal(t, "01 - Intro.flac", tr.Name)
	assert.Equal(t, "Album", tr.FirstParentFolder)
	assert.Equal(t, `@@abcde\Music\Artist\Album`, tr.ParentPath)
	assert.Equal(t, StateInProgress, tr.State)
	assert.Equal(t, SubStateNone, tr.SubState)
	assert.Equal(t, int64(31457280), tr.Size)
	assert.Equal(t, 2024, tr.RequestedAt.Year())
	assert.False(t, tr.EnqueuedAt.IsZero())
	assert.True(t, tr.StartedAt.IsZero())
	assert.True(t, tr.EndedAt.IsZero())
}

func TestTransfer_ParseMalformed(t *testing.T) {
	tr := Transfer{File: audio.File{Filename: `u\a\01.flac`}, RawState: "Exploded"}
	err := tr.Parse()
	require.Error(t, err)
	assert.True(t, types.IsMalformedStateError(err))
}
