// Package packagemanager drives a canonical-package-manager capability
// to install FHIR packages, streams their StructureDefinitions through
// pkg/converter, and writes the resulting schemas into a pkg/cache.
// It never implements package download or registry search
// itself - both are delegated to the CanonicalManager interface.
package packagemanager
