package transfer

import (
	"testing"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

func TestParseState(t *testing.T) {
	tests := []struct {
		raw     string
		state   State
		sub     SubState
		wantErr bool
	}{
		{"Requested", StateRequested, SubStateNone, false},
		{"None", StateNone, SubStateNone, false},
		{"Initializing", StateInitializing, SubStateNone, false},
		{"InProgress", StateInProgress, SubStateNone, false},
		{"Queued, Locally", StateQueued, SubStateLocally, false},
		{"Queued, Remotely", StateQueued, SubStateRemotely, false},
		{"Completed, Succeeded", StateCompleted, SubStateSucceeded, false},
		{"Completed, Cancelled", StateCompleted, SubStateCancelled, false},
		{"Completed, TimedOut", StateCompleted, SubStateTimedOut, false},
		{"Completed, Errored", StateCompleted, SubStateErrored, false},
		{"Completed, Rejected", StateCompleted, SubStateRejected, false},
		{"Completed, Aborted", StateCompleted, SubStateAborted, false},
		{"completed,succeeded", StateCompleted, SubStateSucceeded, false},
		{"  COMPLETED ,  SUCCEEDED ", StateCompleted, SubStateSucceeded, false},

		{"", "", "", true},
		{"Finished", "", "", true},
		{"Completed, Locally", "", "", true},
		{"Queued, Succeeded", "", "", true},
		{"InProgress, Succeeded", "", "", true},
		{"Completed, Succeeded, Errored", "", "", true},
		{"Completed, ", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			state, sub, err := ParseState(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseState(%q) expected error, got %v, %v", tt.raw, state, sub)
				}
				if !types.IsMalformedStateError(err) {
					t.Errorf("ParseState(%q) error = %v, want malformed state error", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseState(%q) unexpected error: %v", tt.raw, err)
			}
			if state != tt.state || sub != tt.sub {
				t.Errorf("ParseState(%q) = %q, %q, want %q, %q", tt.raw, state, sub, tt.state, tt.sub)
			}
		})
	}
}

func TestSubState_IsFailure(t *testing.T) {
	failures := []SubState{SubStateCancelled, SubStateTimedOut, SubStateErrored, SubStateRejected, SubStateAborted}
	for _, s := range failures {
		if !s.IsFailure() {
			t.Errorf("%q.IsFailure() = false, want true", s)
		}
	}

	others := []SubState{SubStateNone, SubStateSucceeded, SubStateLocally, SubStateRemotely}
	for _, s := range others {
		if s.IsFailure() {
			t.Errorf("%q.IsFailure() = true, want false", s)
		}
	}
}
