package cache

import (
	"sync/atomic"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
	"github.com/octofhir-go/fhirschema/pkg/storage"
)

// Strategy selects how Invalidate propagates an eviction.
type Strategy int

const (
	Immediate Strategy = iota
	Cascading
	LazyMark
)

type invalidationMsg struct {
	url      string
	strategy Strategy
	visited  map[string]bool
	ack      chan struct{}
}

// Cache is a three-tier hierarchical cache: an L1 hot map, an
// L2 warm LRU, and an L3 storage.Backend, with dependency-aware
// invalidation.
type Cache struct {
	cfg     *Config
	backend storage.Backend
	l1      *hotMap
	l2      *warmLRU
	deps    *DependencyTracker
	stats   statCounters
	version uint64

	invalidations chan invalidationMsg
	done          chan struct{}
}

// New builds a Cache fronting backend with cfg (nil for defaults). The
// returned Cache owns a background goroutine draining invalidation
// requests; call Close to stop it.
func New(backend storage.Backend, cfg *Config) *Cache {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := &Cache{
		cfg:           cfg,
		backend:       backend,
		l1:            newHotMap(cfg.L1Capacity),
		l2:            newWarmLRU(cfg.L2Capacity),
		deps:          NewDependencyTracker(),
		invalidations: make(chan invalidationMsg, cfg.InvalidationQueueSize),
		done:          make(chan struct{}),
	}
	go c.invalidationLoop()
	return c
}

// Close stops the background invalidation consumer. Pending messages in
// the channel are dropped.
func (c *Cache) Close() {
	close(c.done)
}

// Get implements the read path: L1, then L2 (with possible
// promotion), then L3.
func (c *Cache) Get(url string) (*fhirschema.FhirSchema, error) {
	if e, ok := c.l1.get(url); ok {
		atomic.AddInt64(&c.stats.l1Hits, 1)
		return e.Schema, nil
	}

	if e, ok := c.l2.get(url); ok {
		atomic.AddInt64(&c.stats.l2Hits, 1)
		if e.AccessCount() > c.cfg.PromotionThreshold {
			c.promote(url)
		}
		return e.Schema, nil
	}

	schema, err := c.backend.Get(url)
	if err != nil {
		if err == storage.ErrNotFound {
			atomic.AddInt64(&c.stats.misses, 1)
			return nil, ErrNotFound
		}
		return nil, err
	}
	atomic.AddInt64(&c.stats.l3Hits, 1)

	entry := newEntry(url, schema, atomic.LoadUint64(&c.version))
	c.l2.put(entry)
	return schema, nil
}

// promote moves an entry from L2 to L1, demoting L1's current
// least-recently-accessed entry to L2 if L1 is full.
func (c *Cache) promote(url string) {
	e, ok := c.l2.remove(url)
	if !ok {
		return
	}
	atomic.AddInt64(&c.stats.promotions, 1)
	evicted := c.l1.put(e)
	if evicted != nil {
		atomic.AddInt64(&c.stats.demotions, 1)
		c.l2.put(evicted)
	}
}

// Put writes to L3 first, then updates L2 - never L1 directly. The version
// counter is bumped and stamped into the new entry.
func (c *Cache) Put(url string, schema *fhirschema.FhirSchema) error {
	if err := c.backend.Put(url, schema); err != nil {
		return err
	}
	version := atomic.AddUint64(&c.version, 1)
	c.deps.Register(url, schema)

	entry := newEntry(url, schema, version)
	c.l2.put(entry)
	// A stale copy may still live in L1; drop it so the next Get goes
	// through L2 and observes the new version.
	c.l1.remove(url)
	return nil
}

// Version returns the cache's current monotonic write counter, usable
// by callers to detect staleness against a previously observed Entry.
func (c *Cache) Version() uint64 {
	return atomic.LoadUint64(&c.version)
}

// Invalidate evicts url according to strategy. The request is
// handed to the background consumer; Invalidate returns once it has
// been enqueued, not once it has been applied.
func (c *Cache) Invalidate(url string, strategy Strategy) {
	c.invalidations <- invalidationMsg{url: url, strategy: strategy, visited: map[string]bool{}}
}

// InvalidateSync is like Invalidate but blocks until the background
// consumer has fully applied it, including any cascade. Callers that
// need a synchronous eviction (e.g. a CLI "cache clear" path) should
// use this instead of Invalidate.
func (c *Cache) InvalidateSync(url string, strategy Strategy) {
	ack := make(chan struct{})
	c.invalidations <- invalidationMsg{url: url, strategy: strategy, visited: map[string]bool{}, ack: ack}
	<-ack
}

// MarkStale is the lazy variant of Invalidate. It currently
// invalidates immediately.
func (c *Cache) MarkStale(url string) {
	c.Invalidate(url, LazyMark)
}

// InvalidatePackage expands packageID to every tracked URL whose
// canonical contains it (via ExpandPackage) and invalidates each.
func (c *Cache) InvalidatePackage(packageID string, strategy Strategy) {
	all := c.allKnownURLs()
	for _, u := range ExpandPackage(all, packageID) {
		c.Invalidate(u, strategy)
	}
}

func (c *Cache) allKnownURLs() []string {
	seen := make(map[string]bool)
	var out []string
	for _, u := range c.l1.urls() {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	for _, u := range c.l2.urls() {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	if urls, err := c.backend.List(); err == nil {
		for _, u := range urls {
			if !seen[u] {
				seen[u] = true
				out = append(out, u)
			}
		}
	}
	return out
}

func (c *Cache) invalidationLoop() {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.invalidations:
			c.applyInvalidation(msg)
			if msg.ack != nil {
				close(msg.ack)
			}
		}
	}
}

// applyInvalidation evicts msg.url from L1/L2 and, for Cascading,
// recursively applies the same eviction to every dependent, sharing
// msg.visited so each URL is evicted at most once.
func (c *Cache) applyInvalidation(msg invalidationMsg) {
	if msg.visited[msg.url] {
		return
	}
	msg.visited[msg.url] = true

	c.l1.remove(msg.url)
	c.l2.remove(msg.url)
	c.deps.Unregister(msg.url)

	if msg.strategy != Cascading {
		return
	}
	for _, dependent := range c.deps.Dependents(msg.url) {
		if msg.visited[dependent] {
			continue
		}
		c.applyInvalidation(invalidationMsg{url: dependent, strategy: Cascading, visited: msg.visited})
	}
}

// Clear empties every tier, including the backing storage.Backend.
func (c *Cache) Clear() error {
	c.l1.clear()
	c.l2.clear()
	c.deps = NewDependencyTracker()
	return c.backend.Clear()
}

// Stats returns a snapshot of hit/miss/promotion counters.
func (c *Cache) Stats() Stats {
	return c.stats.snapshot()
}

// Dependents exposes the dependency tracker's inverse edges for url,
// e.g. for CLI introspection.
func (c *Cache) Dependents(url string) []string {
	return c.deps.Dependents(url)
}

// List delegates to the backing storage.Backend, giving callers (e.g.
// pkg/provider) the full set of known canonical URLs regardless of
// which tier currently holds each entry.
func (c *Cache) List() ([]string, error) {
	return c.backend.List()
}
