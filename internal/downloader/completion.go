package downloader

import (
	"sync"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// Transition is a release whose status changed between two queue syncs.
type Transition struct {
	ID       string       `json:"id"`
	Title    string       `json:"title"`
	Username string       `json:"username"`
	From     types.Status `json:"from"`
	To       types.Status `json:"to"`
	Message  string       `json:"message,omitempty"`
}

// CompletionTracker remembers release statuses from the previous sync and
// reports releases that have just finished, successfully or not.
type CompletionTracker struct {
	mu       sync.Mutex
	previous map[string]types.Status
	primed   bool
}

// NewCompletionTracker creates an empty tracker.
func NewCompletionTracker() *CompletionTracker {
	return &CompletionTracker{previous: make(map[string]types.Status)}
}

// Observe records the latest queue and returns the releases that moved into
// completed, failed or warning since the last call. The first call only
// primes the tracker so a restart does not replay old completions.
func (t *CompletionTracker) Observe(releases []types.Release) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	current := make(map[string]types.Status, len(releases))
	var transitions []Transition
	for i := range releases {
		r := &releases[i]
		current[r.ID] = r.Status

		if !t.primed {
			continue
		}
		prev, seen := t.previous[r.ID]
		if seen && prev == r.Status {
			continue
		}
		if r.Status.IsActive() {
			continue
		}
		if !seen {
			// Finished before we ever saw it in progress.
			prev = ""
		}
		transitions = append(transitions, Transition{
			ID:       r.ID,
			Title:    r.Title,
			Username: r.Username,
			From:     prev,
			To:       r.Status,
			Message:  r.Message,
		})
	}

	t.previous = current
	t.primed = true
	return transitions
}
