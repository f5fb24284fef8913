// Package transfer models slskd file transfers and reduces them to a single
// release status.
package transfer

import (
	"strings"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// State is the coarse phase of a file transfer.
type State string

const (
	StateNone         State = "none"
	StateRequested    State = "requested"
	StateQueued       State = "queued"
	StateInitializing State = "initializing"
	StateInProgress   State = "inProgress"
	StateCompleted    State = "completed"
)

// SubState refines Completed (the outcome) and Queued (where it waits).
type SubState string

const (
	SubStateNone      SubState = ""
	SubStateSucceeded SubState = "succeeded"
	SubStateCancelled SubState = "cancelled"
	SubStateTimedOut  SubState = "timedOut"
	SubStateErrored   SubState = "errored"
	SubStateRejected  SubState = "rejected"
	SubStateAborted   SubState = "aborted"
	SubStateLocally   SubState = "locally"
	SubStateRemotely  SubState = "remotely"
)

var states = map[string]State{
	"none":         StateNone,
	"requested":    StateRequested,
	"queued":       StateQueued,
	"initializing": StateInitializing,
	"inprogress":   StateInProgress,
	"completed":    StateCompleted,
}

var subStates = map[string]SubState{
	"succeeded": SubStateSucceeded,
	"cancelled": SubStateCancelled,
	"timedout":  SubStateTimedOut,
	"errored":   SubStateErrored,
	"rejected":  SubStateRejected,
	"aborted":   SubStateAborted,
	"locally":   SubStateLocally,
	"remotely":  SubStateRemotely,
}

// ParseState parses an slskd state string such as "Completed, Succeeded" or
// "Queued, Remotely". A sub-state is only accepted after Completed or Queued.
func ParseState(raw string) (State, SubState, error) {
	parts := strings.Split(raw, ",")
	if len(parts) > 2 {
		return "", "", types.NewMalformedStateError(raw)
	}

	state, ok := states[strings.ToLower(strings.TrimSpace(parts[0]))]
	if !ok {
		return "", "", types.NewMalformedStateError(raw)
	}
	if len(parts) == 1 {
		return state, SubStateNone, nil
	}

	sub, ok := subStates[strings.ToLower(strings.TrimSpace(parts[1]))]
	if !ok {
		return "", "", types.NewMalformedStateError(raw)
	}
	switch state {
	case StateCompleted:
		if sub == SubStateLocally || sub == SubStateRemotely {
			return "", "", types.NewMalformedStateError(raw)
		}
	case StateQueued:
		if sub != SubStateLocally && sub != SubStateRemotely {
			return "", "", types.NewMalformedStateError(raw)
		}
	default:
		return "", "", types.NewMalformedStateError(raw)
	}
	return state, sub, nil
}

// IsActive reports whether the transfer is moving bytes.
func (s State) IsActive() bool {
	return s == StateInitializing || s == StateInProgress
}

// IsPending reports whether the transfer has not started yet.
func (s State) IsPending() bool {
	return s == StateNone || s == StateRequested || s == StateQueued
}

// IsFailure reports whether a completed transfer ended without its data.
func (s SubState) IsFailure() bool {
	switch s {
	case SubStateCancelled, SubStateTimedOut, SubStateErrored, SubStateRejected, SubStateAborted:
		return true
	default:
		return false
	}
}
