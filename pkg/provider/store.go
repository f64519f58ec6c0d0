package provider

import "github.com/octofhir-go/fhirschema/pkg/fhirschema"

// SchemaStore is the capability a Provider needs to build its
// immutable snapshot: enumerate every known canonical URL and fetch
// each schema. Both storage.Backend and cache.Cache satisfy this
// structurally without needing to import pkg/provider themselves.
type SchemaStore interface {
	List() ([]string, error)
	Get(url string) (*fhirschema.FhirSchema, error)
}
