// Package health tracks the state of slskd, searches and the download
// folders, and pushes changes to WebSocket clients.
package health

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Broadcaster defines the interface for sending WebSocket messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

type checkKey struct {
	category Category
	id       string
}

// Registry holds every check in memory. State resets on restart.
type Registry struct {
	mu          sync.RWMutex
	checks      map[checkKey]*Check
	broadcaster Broadcaster
	logger      zerolog.Logger
	now         func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		checks: make(map[checkKey]*Check),
		logger: logger.With().Str("component", "health").Logger(),
		now:    time.Now,
	}
}

// SetBroadcaster sets the WebSocket broadcaster for real-time updates.
func (r *Registry) SetBroadcaster(b Broadcaster) {
	r.mu.Lock()
	r.broadcaster = b
	r.mu.Unlock()
}

// Register starts tracking a check as OK. Registering a known check only
// renames it.
func (r *Registry) Register(category Category, id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := checkKey{category, id}
	if c, ok := r.checks[k]; ok {
		c.Name = name
		return
	}
	c := &Check{Category: category, ID: id, Name: name, Status: StatusOK}
	r.checks[k] = c
	r.logger.Debug().Str("category", string(category)).Str("id", id).Msg("Registered health check")
	r.publish(EventUpdated, *c)
}

// Unregister stops tracking a check.
func (r *Registry) Unregister(category Category, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := checkKey{category, id}
	c, ok := r.checks[k]
	if !ok {
		return
	}
	delete(r.checks, k)
	r.logger.Debug().Str("category", string(category)).Str("id", id).Msg("Unregistered health check")
	r.publish(EventRemoved, *c)
}

// Fail marks a check as failing.
func (r *Registry) Fail(category Category, id, message string) {
	r.set(category, id, StatusError, message)
}

// Degrade marks a check as degraded. Binary categories ignore it.
func (r *Registry) Degrade(category Category, id, message string) {
	if category.binary() {
		return
	}
	r.set(category, id, StatusWarning, message)
}

// Recover marks a check as OK.
func (r *Registry) Recover(category Category, id string) {
	r.set(category, id, StatusOK, "")
}

func (r *Registry) set(category Category, id string, status Status, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.checks[checkKey{category, id}]
	if !ok {
		r.logger.Warn().Str("category", string(category)).Str("id", id).Msg("Status reported for unknown health check")
		return
	}

	if status == StatusOK {
		c.Failures = 0
	} else {
		c.Failures++
	}
	if c.Status == status && c.Message == message {
		return
	}

	old := c.Status
	c.Status = status
	c.Message = message
	switch {
	case status == StatusOK:
		c.Since = nil
	case c.Since == nil:
		now := r.now()
		c.Since = &now
	}

	event := r.logger.Info()
	if status.severity() > old.severity() {
		event = r.logger.Warn()
	}
	event.
		Str("category", string(category)).
		Str("id", id).
		Str("from", string(old)).
		Str("to", string(status)).
		Str("message", message).
		Msg("Health status changed")

	r.publish(EventUpdated, *c)
}

// Get returns a copy of one check.
func (r *Registry) Get(category Category, id string) (Check, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.checks[checkKey{category, id}]
	if !ok {
		return Check{}, false
	}
	return *c, true
}

// Checks returns the checks of one category ordered by ID.
func (r *Registry) Checks(category Category) []Check {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.collect(category)
}

// Healthy reports whether every check in the category is OK.
func (r *Registry) Healthy(category Category) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for k, c := range r.checks {
		if k.category == category && c.Status != StatusOK {
			return false
		}
	}
	return true
}

// Report returns every category with its checks.
func (r *Registry) Report() Report {
	return r.report(true)
}

// Summary returns per-category counts without the checks themselves.
func (r *Registry) Summary() Report {
	return r.report(false)
}

func (r *Registry) report(withChecks bool) Report {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rep := Report{Status: StatusOK}
	for _, cat := range Categories() {
		cr := CategoryReport{Category: cat, Status: StatusOK}
		checks := r.collect(cat)
		for _, c := range checks {
			cr.add(c)
		}
		if withChecks {
			cr.Checks = checks
		}
		rep.Status = Worst(rep.Status, cr.Status)
		rep.Categories = append(rep.Categories, cr)
	}
	return rep
}

func (r *Registry) collect(category Category) []Check {
	checks := []Check{}
	for k, c := range r.checks {
		if k.category == category {
			checks = append(checks, *c)
		}
	}
	sort.Slice(checks, func(i, j int) bool { return checks[i].ID < checks[j].ID })
	return checks
}

// publish is called with r.mu held.
func (r *Registry) publish(msgType string, c Check) {
	if r.broadcaster == nil {
		return
	}
	if err := r.broadcaster.Broadcast(msgType, c); err != nil {
		r.logger.Debug().Err(err).Str("type", msgType).Msg("Failed to broadcast health change")
	}
}
