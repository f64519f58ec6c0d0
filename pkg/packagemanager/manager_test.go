package packagemanager

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fhircache "github.com/octofhir-go/fhirschema/pkg/cache"
	"github.com/octofhir-go/fhirschema/pkg/storage"
)

type fakeSearch struct {
	results []SearchResult
}

func (f *fakeSearch) ResourceType(string) SearchBuilder { return f }
func (f *fakeSearch) Execute(context.Context) ([]SearchResult, error) {
	return f.results, nil
}

type fakeCanonicalManager struct {
	installed []string
	content   []json.RawMessage
}

func (f *fakeCanonicalManager) ListPackages(context.Context) ([]string, error) {
	return f.installed, nil
}

func (f *fakeCanonicalManager) InstallPackage(_ context.Context, id, version string) error {
	f.installed = append(f.installed, id+"@"+version)
	return nil
}

func (f *fakeCanonicalManager) Search() SearchBuilder {
	results := make([]SearchResult, 0, len(f.content))
	for _, c := range f.content {
		results = append(results, SearchResult{Resource: ResourceEnvelope{Content: c}})
	}
	return &fakeSearch{results: results}
}

func (f *fakeCanonicalManager) Resolve(context.Context, string) (ResourceEnvelope, error) {
	return ResourceEnvelope{}, assert.AnError
}

func patientSD(url string) json.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"resourceType": "StructureDefinition",
		"kind":         "resource",
		"type":         "Patient",
		"url":          url,
		"name":         "Patient",
		"snapshot": map[string]any{
			"element": []map[string]any{
				{"path": "Patient"},
				{"path": "Patient.name", "min": 0, "max": "*"},
			},
		},
	})
	return data
}

func TestManager_InstallConvertsAndStores(t *testing.T) {
	cm := &fakeCanonicalManager{content: []json.RawMessage{patientSD("http://example.org/Patient")}}
	c := fhircache.New(storage.NewMemoryBackend(), fhircache.DefaultConfig())
	defer c.Close()

	m := New(cm, c, DefaultConfig())
	report, err := m.Install(context.Background(), []PackageSpec{{ID: "example.core", Version: "1.0.0"}})
	require.NoError(t, err)

	require.Len(t, report.Installed, 1)
	assert.Equal(t, []string{"http://example.org/Patient"}, report.Installed[0].SchemaURLs)
	assert.NotEmpty(t, report.Installed[0].Checksum)

	conv := report.ConversionResults["example.core@1.0.0"]
	assert.Equal(t, 1, conv.Converted)
	assert.Empty(t, conv.Failed)

	got, err := c.Get("http://example.org/Patient")
	require.NoError(t, err)
	assert.Equal(t, "Patient", got.Name)
}

func TestManager_SkipsJSONSchemaDocuments(t *testing.T) {
	jsonSchemaDoc, _ := json.Marshal(map[string]any{"$schema": "https://json-schema.org/draft-07/schema"})
	cm := &fakeCanonicalManager{content: []json.RawMessage{jsonSchemaDoc, patientSD("http://example.org/Patient")}}
	c := fhircache.New(storage.NewMemoryBackend(), fhircache.DefaultConfig())
	defer c.Close()

	m := New(cm, c, DefaultConfig())
	report, err := m.Install(context.Background(), []PackageSpec{{ID: "example.core", Version: "1.0.0"}})
	require.NoError(t, err)

	conv := report.ConversionResults["example.core@1.0.0"]
	assert.Equal(t, 1, conv.Converted)
	assert.Equal(t, 1, conv.Skipped)
}

func TestManager_SkipsAlreadyInstalledUnlessForced(t *testing.T) {
	cm := &fakeCanonicalManager{installed: []string{"example.core@1.0.0"}}
	c := fhircache.New(storage.NewMemoryBackend(), fhircache.DefaultConfig())
	defer c.Close()

	m := New(cm, c, DefaultConfig())
	report, err := m.Install(context.Background(), []PackageSpec{{ID: "example.core", Version: "1.0.0"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"example.core@1.0.0"}, report.Skipped)
	assert.Empty(t, report.Installed)
}
