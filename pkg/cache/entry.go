package cache

import (
	"sync/atomic"
	"time"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// hotAccessCount is the access count above which an L1 entry is
// considered "hot" for instrumentation purposes, carried from the
// original's CacheEntry::is_hot.
const hotAccessCount = 10

// Entry is a cached FhirSchema plus the bookkeeping the hierarchical
// cache needs for promotion/demotion and staleness comparisons.
//
// A *fhirschema.FhirSchema is immutable once registered, so
// sharing the pointer between tiers is safe without copying.
type Entry struct {
	URL     string
	Schema  *fhirschema.FhirSchema
	Version uint64

	createdAt    int64 // unix nanos, set once
	lastAccessed int64 // unix nanos, atomically updated on read
	accessCount  int64 // atomically incremented on read
}

// newEntry builds a fresh Entry for a tier insertion (L3 fetch or a
// write), stamped with the current time and the cache's current
// version counter.
func newEntry(url string, schema *fhirschema.FhirSchema, version uint64) *Entry {
	now := time.Now().UnixNano()
	return &Entry{
		URL:          url,
		Schema:       schema,
		Version:      version,
		createdAt:    now,
		lastAccessed: now,
	}
}

// touch records a read: bumps the access counter and last-accessed
// timestamp atomically.
func (e *Entry) touch() int64 {
	atomic.StoreInt64(&e.lastAccessed, time.Now().UnixNano())
	return atomic.AddInt64(&e.accessCount, 1)
}

// LastAccessed returns the last-accessed timestamp as unix nanos.
func (e *Entry) LastAccessed() int64 {
	return atomic.LoadInt64(&e.lastAccessed)
}

// CreatedAt returns the creation timestamp as unix nanos.
func (e *Entry) CreatedAt() int64 {
	return e.createdAt
}

// AccessCount returns the number of reads observed.
func (e *Entry) AccessCount() int64 {
	return atomic.LoadInt64(&e.accessCount)
}

// Hot reports whether the entry has been read enough to be considered
// hot.
func (e *Entry) Hot() bool {
	return e.AccessCount() > hotAccessCount
}
