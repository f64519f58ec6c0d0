package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Fingerprint is a content-addressed identity for a package's schema set.
// Two fingerprints match iff all three
// fields are equal.
type Fingerprint struct {
	PackageID      string
	PackageVersion string
	ContentHash    string
}

// ShortHash returns the first 8 hex characters of ContentHash.
func (f Fingerprint) ShortHash() string {
	if len(f.ContentHash) <= 8 {
		return f.ContentHash
	}
	return f.ContentHash[:8]
}

// Equal reports whether f and other identify the same package content.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.PackageID == other.PackageID &&
		f.PackageVersion == other.PackageVersion &&
		f.ContentHash == other.ContentHash
}

// ComputeFingerprint hashes the deterministic, URL-sorted JSON
// serialization of schemas: SHA-256 over each schema
// serialized in turn, ordered by canonical URL.
func ComputeFingerprint(packageID, packageVersion string, schemas map[string]*fhirschema.FhirSchema) (Fingerprint, error) {
	urls := make([]string, 0, len(schemas))
	for u := range schemas {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	h := sha256.New()
	for _, u := range urls {
		data, err := json.Marshal(schemas[u])
		if err != nil {
			return Fingerprint{}, err
		}
		h.Write([]byte(u))
		h.Write([]byte{0})
		h.Write(data)
	}

	return Fingerprint{
		PackageID:      packageID,
		PackageVersion: packageVersion,
		ContentHash:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}
