package provider

import (
	"fmt"
	"strings"
	"sync"
)

// ResolvedPath is the result of resolving a dotted path against a type.
type ResolvedPath struct {
	TargetType     *TypeInfo
	ElementInfo    *ElementInfo
	Cardinality    string // e.g. "0..1", "1..*"
	AvailablePaths []string
	Inherited      bool
}

// pathKey is the cache key a PathResolver memoizes on.
type pathKey struct {
	typeName string
	path     string
}

// PathResolverStats exposes hit/miss counters.
type PathResolverStats struct {
	Hits   int64
	Misses int64
}

// PathResolver resolves dotted paths ("Type.a.b.c") to element
// information step-by-step using a Provider, caching results keyed by
// (type, path).
type PathResolver struct {
	provider *Provider

	mu    sync.RWMutex
	cache map[pathKey]*ResolvedPath
	hits  int64
	miss  int64
}

// NewPathResolver builds a resolver over provider with an empty cache.
func NewPathResolver(provider *Provider) *PathResolver {
	return &PathResolver{provider: provider, cache: make(map[pathKey]*ResolvedPath)}
}

// Resolve walks path segment-by-segment from typeName using the
// Provider's element-type resolution, caching the final result keyed by
// (typeName, path).
func (r *PathResolver) Resolve(typeName, path string) (*ResolvedPath, error) {
	key := pathKey{typeName: typeName, path: path}

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		r.mu.Lock()
		r.hits++
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.RUnlock()

	resolved, err := r.resolveUncached(typeName, path)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.miss++
	r.cache[key] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func (r *PathResolver) resolveUncached(typeName, path string) (*ResolvedPath, error) {
	segs := strings.Split(path, ".")
	parent := TypeInfo{Name: typeName, TypeName: typeName, Namespace: NamespaceFHIR, IsSingleton: true}
	var elInfo *ElementInfo

	for _, seg := range segs {
		info := r.provider.GetElementType(parent, seg)
		if info == nil {
			return nil, fmt.Errorf("provider: cannot resolve %s at segment %q of path %q", typeName, seg, path)
		}

		if min, max, ok := r.provider.ElementCardinality(parent.Name, seg); ok {
			elInfo = &ElementInfo{Name: seg, Path: parent.Name + "." + seg, TypeName: info.TypeName, Min: min, Max: max}
		}

		parent = *info
	}

	available := r.provider.GetElementNames(parent)
	cardinality := "0..1"
	if elInfo != nil {
		cardinality = fmt.Sprintf("%d..%s", elInfo.Min, orStar(elInfo.Max))
	}

	return &ResolvedPath{
		TargetType:     &parent,
		ElementInfo:    elInfo,
		Cardinality:    cardinality,
		AvailablePaths: available,
	}, nil
}

func orStar(max string) string {
	if max == "" {
		return "1"
	}
	return max
}

// Stats returns a snapshot of hit/miss counters.
func (r *PathResolver) Stats() PathResolverStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return PathResolverStats{Hits: r.hits, Misses: r.miss}
}

// PrecomputeCommonPaths primes the cache for the given resource types'
// top-level elements.
func (r *PathResolver) PrecomputeCommonPaths(resourceTypes []string) {
	for _, rt := range resourceTypes {
		for _, name := range r.provider.GetElementNames(TypeInfo{Name: rt}) {
			_, _ = r.Resolve(rt, name)
		}
	}
}
