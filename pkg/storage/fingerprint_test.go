package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

func fingerprintSchemas() map[string]*fhirschema.FhirSchema {
	return map[string]*fhirschema.FhirSchema{
		"http://hl7.org/fhir/StructureDefinition/Patient": {
			Name: "Patient", URL: "http://hl7.org/fhir/StructureDefinition/Patient", Kind: "resource", Class: "resource",
		},
		"http://hl7.org/fhir/StructureDefinition/Observation": {
			Name: "Observation", URL: "http://hl7.org/fhir/StructureDefinition/Observation", Kind: "resource", Class: "resource",
		},
	}
}

func TestComputeFingerprint_Deterministic(t *testing.T) {
	a, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.1", fingerprintSchemas())
	require.NoError(t, err)
	b, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.1", fingerprintSchemas())
	require.NoError(t, err)

	assert.True(t, a.Equal(b))
	assert.Len(t, a.ContentHash, 64)
}

func TestComputeFingerprint_ContentSensitive(t *testing.T) {
	original, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.1", fingerprintSchemas())
	require.NoError(t, err)

	tampered := fingerprintSchemas()
	tampered["http://hl7.org/fhir/StructureDefinition/Patient"].Description = "tampered"
	changed, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.1", tampered)
	require.NoError(t, err)

	assert.False(t, original.Equal(changed))
	assert.NotEqual(t, original.ContentHash, changed.ContentHash)
}

func TestFingerprint_EqualRequiresAllThreeFields(t *testing.T) {
	base, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.1", fingerprintSchemas())
	require.NoError(t, err)

	sameContentOtherVersion, err := ComputeFingerprint("hl7.fhir.r4.core", "4.0.2", fingerprintSchemas())
	require.NoError(t, err)
	assert.Equal(t, base.ContentHash, sameContentOtherVersion.ContentHash)
	assert.False(t, base.Equal(sameContentOtherVersion))

	otherID := base
	otherID.PackageID = "hl7.fhir.r5.core"
	assert.False(t, base.Equal(otherID))
}

func TestFingerprint_ShortHash(t *testing.T) {
	fp := Fingerprint{ContentHash: "abcdef0123456789"}
	assert.Equal(t, "abcdef01", fp.ShortHash())

	short := Fingerprint{ContentHash: "abc"}
	assert.Equal(t, "abc", short.ShortHash())
}
