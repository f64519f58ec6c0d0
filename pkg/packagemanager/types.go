package packagemanager

import (
	"context"
	"encoding/json"
)

// CanonicalManager is the narrow capability the package manager consumes
// from an external canonical-package-manager. It is the only
// inbound dependency for package download/registry search; this module
// never implements either itself.
type CanonicalManager interface {
	// ListPackages returns every package currently installed, each
	// formatted "id@version".
	ListPackages(ctx context.Context) ([]string, error)

	// InstallPackage performs an idempotent install of id@version.
	InstallPackage(ctx context.Context, id, version string) error

	// Search returns a builder for filtering resources within already
	// installed packages.
	Search() SearchBuilder

	// Resolve dereferences a canonical URL to its resource envelope, used
	// for on-demand profile fetch.
	Resolve(ctx context.Context, url string) (ResourceEnvelope, error)
}

// SearchBuilder narrows a Search() call before Execute.
type SearchBuilder interface {
	ResourceType(t string) SearchBuilder
	Execute(ctx context.Context) ([]SearchResult, error)
}

// ResourceEnvelope is a single resource as returned by the canonical
// manager: its raw JSON content plus whatever the manager attaches.
type ResourceEnvelope struct {
	Content json.RawMessage `json:"content"`
}

// IndexInfo identifies which package a SearchResult came from.
type IndexInfo struct {
	PackageName    string `json:"package_name"`
	PackageVersion string `json:"package_version"`
	CanonicalURL   string `json:"canonical_url"`
}

// SearchResult pairs a resource with its package index entry.
type SearchResult struct {
	Resource ResourceEnvelope `json:"resource"`
	Index    IndexInfo        `json:"index"`
}

// PackageSpec names one package to install.
type PackageSpec struct {
	ID      string
	Version string
	// Force reinstalls even if ListPackages already reports this
	// package present.
	Force bool
}
