package cache

import (
	"net/url"
	"strings"
	"sync"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// DependencyTracker maps each schema URL to the set of URLs that
// reference it, the inverse of "A uses B". A plain map guarded by a
// single mutex backs it; each call holds the mutex briefly.
type DependencyTracker struct {
	mu   sync.Mutex
	deps map[string]map[string]bool // dependency URL -> set of dependent URLs
}

// NewDependencyTracker returns an empty tracker.
func NewDependencyTracker() *DependencyTracker {
	return &DependencyTracker{deps: make(map[string]map[string]bool)}
}

// Register derives schema's outgoing edges - its base/baseDefinition and
// any element type.code that parses as an absolute URL - and records
// schemaURL as a dependent of each.
func (d *DependencyTracker) Register(schemaURL string, schema *fhirschema.FhirSchema) {
	edges := outgoingEdges(schema)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, dep := range edges {
		set, ok := d.deps[dep]
		if !ok {
			set = make(map[string]bool)
			d.deps[dep] = set
		}
		set[schemaURL] = true
	}
}

// Unregister removes schemaURL as a dependent everywhere it was
// recorded. Used when a URL is evicted/removed from the cache.
func (d *DependencyTracker) Unregister(schemaURL string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for dep, set := range d.deps {
		delete(set, schemaURL)
		if len(set) == 0 {
			delete(d.deps, dep)
		}
	}
}

// Dependents returns the set of URLs that directly depend on url.
func (d *DependencyTracker) Dependents(url string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	set, ok := d.deps[url]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	return out
}

// outgoingEdges collects a schema's base plus any type.code that
// parses as an absolute URL.
func outgoingEdges(schema *fhirschema.FhirSchema) []string {
	var edges []string
	if schema.Base != "" {
		edges = append(edges, schema.Base)
	}
	for _, el := range schema.Elements {
		edges = append(edges, elementTypeEdges(el)...)
	}
	return edges
}

func elementTypeEdges(el *fhirschema.Element) []string {
	var edges []string
	for _, t := range el.Type {
		if isAbsoluteURL(t.Code) {
			edges = append(edges, t.Code)
		}
	}
	for _, child := range el.Elements {
		edges = append(edges, elementTypeEdges(child)...)
	}
	return edges
}

func isAbsoluteURL(s string) bool {
	if !strings.Contains(s, "://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// ExpandPackage returns every URL in urls whose canonical contains
// packageID as a substring. The predicate is intentionally
// simple/brittle and is exposed so callers can swap in their own.
func ExpandPackage(urls []string, packageID string) []string {
	var out []string
	for _, u := range urls {
		if strings.Contains(u, packageID) {
			out = append(out, u)
		}
	}
	return out
}
