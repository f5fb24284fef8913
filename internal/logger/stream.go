package logger

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

const defaultStreamSize = 500

// Broadcaster is the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// Entry is a parsed log line as served to API and WebSocket clients.
type Entry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stream is an io.Writer that keeps the most recent entries in memory and
// forwards each one to a hub as a "logs:entry" message.
type Stream struct {
	mu      sync.RWMutex
	hub     Broadcaster
	entries []Entry
	next    int
	full    bool
}

// NewStream creates a stream holding up to size entries.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = defaultStreamSize
	}
	return &Stream{entries: make([]Entry, size)}
}

// SetHub sets the hub entries are forwarded to. It may be nil.
func (s *Stream) SetHub(hub Broadcaster) {
	s.mu.Lock()
	s.hub = hub
	s.mu.Unlock()
}

// Write implements io.Writer. Lines that are not zerolog JSON are dropped.
func (s *Stream) Write(p []byte) (int, error) {
	entry, ok := parseEntry(p)
	if !ok {
		return len(p), nil
	}

	s.mu.Lock()
	s.entries[s.next] = entry
	s.next = (s.next + 1) % len(s.entries)
	if s.next == 0 {
		s.full = true
	}
	hub := s.hub
	s.mu.Unlock()

	if hub != nil {
		_ = hub.Broadcast("logs:entry", entry)
	}
	return len(p), nil
}

// Recent returns up to limit of the newest entries, oldest first. A limit of
// zero or less returns everything held.
func (s *Stream) Recent(limit int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ordered []Entry
	if s.full {
		ordered = append(ordered, s.entries[s.next:]...)
	}
	ordered = append(ordered, s.entries[:s.next]...)

	if limit > 0 && len(ordered) > limit {
		ordered = ordered[len(ordered)-limit:]
	}
	return ordered
}

func parseEntry(data []byte) (Entry, bool) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Entry{}, false
	}

	entry := Entry{}
	take := func(key string) string {
		v, _ := raw[key].(string)
		delete(raw, key)
		return v
	}
	entry.Timestamp = take(zerolog.TimestampFieldName)
	entry.Level = take(zerolog.LevelFieldName)
	entry.Component = take("component")
	entry.Message = take(zerolog.MessageFieldName)
	entry.Error = take(zerolog.ErrorFieldName)
	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, true
}
