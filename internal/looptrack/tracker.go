// Package looptrack records request ids suspected of being caught in an
// HTTPS to HTTP downgrade redirect loop.
package looptrack

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultSize caps the number of in-flight suspicions.
	DefaultSize = 4096
	// DefaultTTL bounds how long a mark survives an abandoned redirect chain.
	DefaultTTL = 5 * time.Minute
)

// Tracker maps request ids to a loop-suspected marker. Entries expire after
// the configured TTL and the oldest entries are evicted beyond the size cap.
type Tracker struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
}

// New creates a tracker bounded by size entries and ttl per entry.
// Non-positive values select the defaults.
func New(size int, ttl time.Duration) *Tracker {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{entries: expirable.NewLRU[string, time.Time](size, nil, ttl)}
}

// Mark flags id. Marking an already marked id is a no-op and keeps its
// original expiry.
func (t *Tracker) Mark(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries.Peek(id); ok {
		return
	}
	t.entries.Add(id, time.Now())
}

// IsMarked reports whether id is currently flagged.
func (t *Tracker) IsMarked(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries.Peek(id)
	return ok
}

// Clear removes the flag for id. Clearing an unmarked id is a no-op.
func (t *Tracker) Clear(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries.Remove(id)
}

// Take removes the flag for id and reports whether it was set. Of any number
// of concurrent callers for the same id, at most one observes true.
func (t *Tracker) Take(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.entries.Peek(id)
	t.entries.Remove(id)
	return ok
}

// Oldest returns the live mark that was set longest ago.
func (t *Tracker) Oldest() (id string, markedAt time.Time, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range t.entries.Keys() {
		if at, live := t.entries.Peek(k); live {
			return k, at, true
		}
	}
	return "", time.Time{}, false
}

// Len returns the number of tracked ids, including any not yet reaped after
// expiry.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries.Len()
}
