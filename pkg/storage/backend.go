package storage

import "github.com/octofhir-go/fhirschema/pkg/fhirschema"

// Backend is the capability a storage implementation provides.
// All operations are fallible and safe for concurrent use; each backend
// owns its own synchronization.
type Backend interface {
	Get(url string) (*fhirschema.FhirSchema, error)
	Put(url string, schema *fhirschema.FhirSchema) error
	Remove(url string) (bool, error)
	List() ([]string, error)
	Contains(url string) (bool, error)
	Clear() error
	Size() (int, error)
}

// Metadata is the small bookkeeping record a backend keeps for its whole
// store (one record per backend, not per entry).
type Metadata struct {
	Count     int
	Created   int64 // unix nanos of first write
	Updated   int64 // unix nanos of last write
	OpCounter int64 // number of operations observed
}
