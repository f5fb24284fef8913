package transfer

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/slipstream/slskbridge/internal/library/audio"
)

// Transfer is one file download as reported by slskd.
type Transfer struct {
	audio.File

	ID               string    `json:"id"`
	Username         string    `json:"username"`
	Direction        string    `json:"direction,omitempty"`
	RawState         string    `json:"state"`
	BytesRemaining   int64     `json:"bytesRemaining"`
	BytesTransferred int64     `json:"bytesTransferred"`
	AverageSpeed     float64   `json:"averageSpeed"`
	PercentComplete  float64   `json:"percentComplete"`
	RequestedAt      Timestamp `json:"requestedAt"`
	EnqueuedAt       Timestamp `json:"enqueuedAt"`
	StartedAt        Timestamp `json:"startedAt"`
	EndedAt          Timestamp `json:"endedAt"`
	Exception        string    `json:"exception,omitempty"`

	// Set by Parse.
	State    State    `json:"-"`
	SubState SubState `json:"-"`
}

// Parse derives path segments and the structured state from the wire fields.
// It must be called once after decoding.
func (t *Transfer) Parse() error {
	t.SetPath(t.Filename)
	state, sub, err := ParseState(t.RawState)
	if err != nil {
		return err
	}
	t.State, t.SubState = state, sub
	return nil
}

// IsTerminal reports whether slskd is done with the transfer.
func (t *Transfer) IsTerminal() bool {
	return t.State == StateCompleted
}

// Directory groups the transfers of one user under one remote directory.
type Directory struct {
	Directory string     `json:"directory"`
	FileCount int        `json:"fileCount"`
	Files     []Transfer `json:"files"`
}

// UserTransfers is the per-user envelope of the slskd downloads listing.
type UserTransfers struct {
	Username    string      `json:"username"`
	Directories []Directory `json:"directories"`
}

// Timestamp decodes slskd timestamps, which may omit the zone designator.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.9999999",
	"2006-01-02T15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || strings.TrimSpace(*raw) == "" {
		ts.Time = time.Time{}
		return nil
	}

	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, *raw)
		if err == nil {
			ts.Time = t.UTC()
			return nil
		}
		lastErr = err
	}
	return lastErr
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	if ts.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(ts.Time.Format(time.RFC3339Nano))
}
