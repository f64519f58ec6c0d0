package cache

import (
	"sync"
	"sync/atomic"
)

// hotMap is the L1 tier: a concurrent map with lock-free reads. Structural changes (insert,
// evict) take a short critical section; size is tracked with an atomic
// counter so capacity checks never block a reader.
type hotMap struct {
	capacity int
	m        sync.Map // url -> *Entry
	size     int64
	mu       sync.Mutex // guards eviction/insert bookkeeping only
}

func newHotMap(capacity int) *hotMap {
	return &hotMap{capacity: capacity}
}

// get performs a lock-free lookup and, on hit, records an access.
func (h *hotMap) get(url string) (*Entry, bool) {
	v, ok := h.m.Load(url)
	if !ok {
		return nil, false
	}
	e := v.(*Entry)
	e.touch()
	return e, true
}

// peek looks up an entry without recording an access, used by
// invalidation/enumeration paths that should not perturb LRU order.
func (h *hotMap) peek(url string) (*Entry, bool) {
	v, ok := h.m.Load(url)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// put inserts or replaces an entry, evicting the least-recently-accessed
// entry first if the tier is at capacity. The evicted entry (if any) is
// returned so the caller can demote it into L2.
func (h *hotMap) put(e *Entry) *Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.m.Load(e.URL); exists {
		h.m.Store(e.URL, e)
		return nil
	}

	var evicted *Entry
	if h.capacity > 0 && int(atomic.LoadInt64(&h.size)) >= h.capacity {
		evicted = h.evictLRULocked()
	}
	h.m.Store(e.URL, e)
	if evicted == nil || evicted.URL != e.URL {
		atomic.AddInt64(&h.size, 1)
	}
	return evicted
}

// evictLRULocked scans all entries for the smallest last-accessed
// timestamp and removes it. Must be called with mu
// held.
func (h *hotMap) evictLRULocked() *Entry {
	var oldestURL string
	var oldest *Entry
	h.m.Range(func(k, v any) bool {
		e := v.(*Entry)
		if oldest == nil || e.LastAccessed() < oldest.LastAccessed() {
			oldest = e
			oldestURL = k.(string)
		}
		return true
	})
	if oldest == nil {
		return nil
	}
	h.m.Delete(oldestURL)
	atomic.AddInt64(&h.size, -1)
	return oldest
}

func (h *hotMap) remove(url string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.m.Load(url); !ok {
		return false
	}
	h.m.Delete(url)
	atomic.AddInt64(&h.size, -1)
	return true
}

func (h *hotMap) clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.m.Range(func(k, _ any) bool {
		h.m.Delete(k)
		return true
	})
	atomic.StoreInt64(&h.size, 0)
}

func (h *hotMap) len() int {
	return int(atomic.LoadInt64(&h.size))
}

// urls returns a snapshot of every key currently held.
func (h *hotMap) urls() []string {
	out := make([]string, 0, h.len())
	h.m.Range(func(k, _ any) bool {
		out = append(out, k.(string))
		return true
	})
	return out
}
