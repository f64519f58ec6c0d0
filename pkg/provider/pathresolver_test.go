package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathResolver_ResolveBackbonePath(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)
	r := NewPathResolver(p)

	resolved, err := r.Resolve("Task", "input.type")
	require.NoError(t, err)
	require.NotNil(t, resolved.TargetType)
	assert.Equal(t, "CodeableConcept", resolved.TargetType.Name)
	require.NotNil(t, resolved.ElementInfo)
	assert.Equal(t, "1..1", resolved.Cardinality)
}

func TestPathResolver_ResolveChoicePath(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)
	r := NewPathResolver(p)

	resolved, err := r.Resolve("Task", "input.valueQuantity")
	require.NoError(t, err)
	require.NotNil(t, resolved.TargetType)
	assert.Equal(t, "Quantity", resolved.TargetType.Name)
}

func TestPathResolver_UnknownSegmentErrors(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)
	r := NewPathResolver(p)

	_, err = r.Resolve("Task", "noSuchField")
	assert.Error(t, err)
}

func TestPathResolver_CachesHitsAndMisses(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)
	r := NewPathResolver(p)

	_, err = r.Resolve("Task", "status")
	require.NoError(t, err)
	stats := r.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)

	_, err = r.Resolve("Task", "status")
	require.NoError(t, err)
	stats = r.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestPathResolver_PrecomputeCommonPaths(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)
	r := NewPathResolver(p)

	r.PrecomputeCommonPaths([]string{"Task"})
	stats := r.Stats()
	assert.True(t, stats.Misses > 0)

	_, err = r.Resolve("Task", "status")
	require.NoError(t, err)
	afterReResolve := r.Stats()
	assert.True(t, afterReResolve.Hits > 0)
}
