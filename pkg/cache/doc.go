// Package cache implements the three-tier hierarchical cache fronting a
// storage.Backend: an L1 hot map with lock-free reads, an L2 warm
// LRU, and an L3 persistent backend, with promotion/demotion between L1
// and L2 and dependency-aware invalidation.
package cache
