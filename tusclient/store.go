package tusclient

import (
	"net/http"
	"net/url"
	"sync"
)

// SessionEntry holds the resolved upload location and the accumulated session
// cookies for one fingerprint. It is treated as an immutable value: cookie
// merging goes through MergeCookies, which returns a new entry.
type SessionEntry struct {
	Location *url.URL
	Cookies  []*http.Cookie
}

type cookieKey struct {
	name   string
	domain string
	path   string
}

// MergeCookies returns a new entry with the given cookies merged into the
// existing set. Cookies sharing name, domain and path replace the earlier
// one (last write wins); everything else is a set union.
func (e SessionEntry) MergeCookies(cookies []*http.Cookie) SessionEntry {
	merged := make([]*http.Cookie, 0, len(e.Cookies)+len(cookies))
	index := make(map[cookieKey]int, len(e.Cookies)+len(cookies))

	for _, c := range e.Cookies {
		index[cookieKey{c.Name, c.Domain, c.Path}] = len(merged)
		merged = append(merged, c)
	}
	for _, c := range cookies {
		key := cookieKey{c.Name, c.Domain, c.Path}
		if i, ok := index[key]; ok {
			merged[i] = c
			continue
		}
		index[key] = len(merged)
		merged = append(merged, c)
	}

	return SessionEntry{
		Location: e.Location,
		Cookies:  merged,
	}
}

// SessionStore maps an upload's fingerprint to its session entry so uploads
// can be resumed later. Implementations must be safe for concurrent use from
// multiple goroutines sharing one client.
type SessionStore interface {
	// Set stores the entry for a fingerprint, overwriting any previous one.
	Set(fingerprint string, entry SessionEntry)

	// Get returns the entry for a fingerprint. The second return value is
	// false if no entry exists; an unknown fingerprint is never an error.
	Get(fingerprint string) (SessionEntry, bool)

	// UpdateCookies merges cookies into an existing entry. It is a no-op if
	// no entry exists for the fingerprint.
	UpdateCookies(fingerprint string, cookies []*http.Cookie)

	// Remove deletes the entry for a fingerprint. Removing an absent
	// fingerprint is not an error.
	Remove(fingerprint string)
}

// MemoryStore is a map-backed SessionStore. Entries only live as long as the
// process does: the store will not keep them across a restart or crash.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]SessionEntry
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: map[string]SessionEntry{},
	}
}

// Set stores the entry for a fingerprint, overwriting any previous one.
func (s *MemoryStore) Set(fingerprint string, entry SessionEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[fingerprint] = entry
}

// Get returns the entry for a fingerprint, or false if none exists.
func (s *MemoryStore) Get(fingerprint string) (SessionEntry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[fingerprint]
	return entry, ok
}

// UpdateCookies merges cookies into the stored entry for a fingerprint. It
// does nothing, and in particular creates no entry, if the fingerprint is
// unknown.
func (s *MemoryStore) UpdateCookies(fingerprint string, cookies []*http.Cookie) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[fingerprint]
	if !ok {
		return
	}
	s.entries[fingerprint] = entry.MergeCookies(cookies)
}

// Remove deletes the entry for a fingerprint, if any.
func (s *MemoryStore) Remove(fingerprint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, fingerprint)
}
