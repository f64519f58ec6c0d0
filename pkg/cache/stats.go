package cache

import "sync/atomic"

// Stats reports cache hit/miss/promotion counters.
type Stats struct {
	L1Hits     int64
	L2Hits     int64
	L3Hits     int64
	Misses     int64
	Promotions int64
	Demotions  int64
}

type statCounters struct {
	l1Hits, l2Hits, l3Hits, misses, promotions, demotions int64
}

func (c *statCounters) snapshot() Stats {
	return Stats{
		L1Hits:     atomic.LoadInt64(&c.l1Hits),
		L2Hits:     atomic.LoadInt64(&c.l2Hits),
		L3Hits:     atomic.LoadInt64(&c.l3Hits),
		Misses:     atomic.LoadInt64(&c.misses),
		Promotions: atomic.LoadInt64(&c.promotions),
		Demotions:  atomic.LoadInt64(&c.demotions),
	}
}
