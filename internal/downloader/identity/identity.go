// Package identity assigns stable identifiers to releases and resolves them
// back to the user and remote path they were built from.
package identity

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

// Scheme selects how identifiers are derived from a Key.
type Scheme string

const (
	// SchemeLiteral produces "{username}\{path}", which can be split back.
	SchemeLiteral Scheme = "literal"
	// SchemeHash produces an 11 character URL-safe digest and needs a Table
	// to resolve it.
	SchemeHash Scheme = "hash"
)

// ParseScheme validates a configured scheme name.
func ParseScheme(s string) (Scheme, error) {
	switch Scheme(strings.ToLower(strings.TrimSpace(s))) {
	case SchemeLiteral, "":
		return SchemeLiteral, nil
	case SchemeHash:
		return SchemeHash, nil
	default:
		return "", fmt.Errorf("unknown identifier scheme %q", s)
	}
}

const separator = `\`

// Key identifies a release: a user and either a directory or, when the
// directory holds a single audio file, that file's full path.
type Key struct {
	Username string
	Path     string
}

func (k Key) String() string {
	return k.Username + separator + k.Path
}

// Resolver derives identifiers and resolves them back to keys. With the hash
// scheme it keeps the reverse table of the most recent queue sync.
type Resolver struct {
	scheme Scheme

	mu    sync.RWMutex
	table *Table
}

// NewResolver creates a resolver for the given scheme.
func NewResolver(scheme Scheme) *Resolver {
	return &Resolver{scheme: scheme, table: NewTable()}
}

// Scheme returns the configured scheme.
func (r *Resolver) Scheme() Scheme {
	return r.scheme
}

// Identifier returns the identifier for a key. The same key always yields the
// same identifier.
func (r *Resolver) Identifier(k Key) string {
	if r.scheme == SchemeHash {
		return Hash(k)
	}
	return k.String()
}

// Resolve maps an identifier back to its key. Unknown hash identifiers return
// types.ErrNotFound.
func (r *Resolver) Resolve(id string) (Key, error) {
	if r.scheme == SchemeHash {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if k, ok := r.table.Lookup(id); ok {
			return k, nil
		}
		return Key{}, fmt.Errorf("identifier %q: %w", id, types.ErrNotFound)
	}
	return Split(id)
}

// Replace swaps in the table built by the latest sync.
func (r *Resolver) Replace(t *Table) {
	if r.scheme != SchemeHash {
		return
	}
	r.mu.Lock()
	r.table = t
	r.mu.Unlock()
}

// Remember records an identifier issued outside a sync, such as for a newly
// enqueued release, so it resolves before the next sync replaces the table.
func (r *Resolver) Remember(id string, k Key) {
	if r.scheme != SchemeHash {
		return
	}
	r.mu.RLock()
	r.table.Add(id, k)
	r.mu.RUnlock()
}

// Hash returns the 64-bit xxhash of the key as unpadded URL-safe base64.
func Hash(k Key) string {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], xxhash.Sum64String(k.String()))
	return base64.RawURLEncoding.EncodeToString(buf[:])
}

// Split parses a literal identifier. Soulseek usernames cannot contain a
// backslash, so the first one separates user from path.
func Split(id string) (Key, error) {
	user, path, ok := strings.Cut(id, separator)
	if !ok || user == "" || path == "" {
		return Key{}, fmt.Errorf("identifier %q: %w", id, types.ErrNotFound)
	}
	return Key{Username: user, Path: path}, nil
}

// Table is the identifier to key map produced by one sync.
type Table struct {
	mu      sync.Mutex
	entries map[string]Key
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Key)}
}

// Add records an identifier.
func (t *Table) Add(id string, k Key) {
	t.mu.Lock()
	t.entries[id] = k
	t.mu.Unlock()
}

// Lookup returns the key recorded for id.
func (t *Table) Lookup(id string) (Key, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	k, ok := t.entries[id]
	return k, ok
}

// Len returns the number of recorded identifiers.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
