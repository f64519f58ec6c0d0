// Package storage provides pluggable key-value backends for FhirSchema
// values, keyed by canonical URL. Two backends are provided: an
// in-memory concurrent map, and an on-disk backend with atomic writes,
// optional compression, and package content fingerprinting.
package storage
