package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
	"github.com/octofhir-go/fhirschema/pkg/storage"
)

func schema(url, base string) *fhirschema.FhirSchema {
	s := fhirschema.NewSchema()
	s.URL = url
	s.Name = "Patient"
	s.Kind = "resource"
	s.Class = fhirschema.ClassResource
	s.Base = base
	return s
}

func TestCache_PutGetConsistency(t *testing.T) {
	c := New(storage.NewMemoryBackend(), DefaultConfig())
	defer c.Close()

	s := schema("http://example.org/Patient", "")
	require.NoError(t, c.Put(s.URL, s))

	got, err := c.Get(s.URL)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestCache_MissReturnsErrNotFound(t *testing.T) {
	c := New(storage.NewMemoryBackend(), DefaultConfig())
	defer c.Close()

	_, err := c.Get("http://example.org/Missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCache_PromotionFromL2ToL1(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 5
	c := New(storage.NewMemoryBackend(), cfg)
	defer c.Close()

	s := schema("http://example.org/Patient", "")
	require.NoError(t, c.Put(s.URL, s))

	// First Get after Put always lands in L2 (writes never touch L1).
	_, err := c.Get(s.URL)
	require.NoError(t, err)
	_, inL1 := c.l1.peek(s.URL)
	assert.False(t, inL1)

	// Repeated reads past the promotion threshold move the entry into L1.
	for i := 0; i < 6; i++ {
		_, err := c.Get(s.URL)
		require.NoError(t, err)
	}
	_, inL1 = c.l1.peek(s.URL)
	assert.True(t, inL1)
}

func TestCache_CascadingInvalidation(t *testing.T) {
	c := New(storage.NewMemoryBackend(), DefaultConfig())
	defer c.Close()

	base := schema("http://example.org/Base", "")
	derived := schema("http://example.org/Derived", "http://example.org/Base")

	require.NoError(t, c.Put(base.URL, base))
	require.NoError(t, c.Put(derived.URL, derived))

	// Both now sit in L2 after Put; warm them so a cascade has something
	// visible to evict.
	_, err := c.Get(base.URL)
	require.NoError(t, err)
	_, err = c.Get(derived.URL)
	require.NoError(t, err)

	assert.Contains(t, c.Dependents(base.URL), derived.URL)

	c.InvalidateSync(base.URL, Cascading)

	_, baseInL2 := c.l2.remove(base.URL)
	_, derivedInL2 := c.l2.remove(derived.URL)
	assert.False(t, baseInL2)
	assert.False(t, derivedInL2)
}

func TestCache_Clear(t *testing.T) {
	c := New(storage.NewMemoryBackend(), DefaultConfig())
	defer c.Close()

	s := schema("http://example.org/Patient", "")
	require.NoError(t, c.Put(s.URL, s))
	require.NoError(t, c.Clear())

	_, err := c.Get(s.URL)
	assert.ErrorIs(t, err, ErrNotFound)
}
