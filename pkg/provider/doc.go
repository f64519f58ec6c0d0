// Package provider implements the model provider and path resolver
// query surface: schema lookup by URL or name, type
// hierarchy and derivation checks, element-name listing, choice
// expansion, backbone navigation, FHIR<->FHIRPath type mapping, and
// dotted-path resolution with cardinality.
//
// A Provider is built once from a snapshot of every known schema and is
// immutable thereafter; it holds no lock of its own.
package provider
