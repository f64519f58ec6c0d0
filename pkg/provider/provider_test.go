package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// fakeStore is a fixed, in-memory SchemaStore for provider tests.
type fakeStore struct {
	schemas map[string]*fhirschema.FhirSchema
}

func (f *fakeStore) List() ([]string, error) {
	urls := make([]string, 0, len(f.schemas))
	for u := range f.schemas {
		urls = append(urls, u)
	}
	return urls, nil
}

func (f *fakeStore) Get(url string) (*fhirschema.FhirSchema, error) {
	return f.schemas[url], nil
}

func testStore() *fakeStore {
	resource := &fhirschema.FhirSchema{
		Name: "Resource",
		URL:  "http://hl7.org/fhir/StructureDefinition/Resource",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"id": {Path: "Resource.id", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "id"}}},
		},
	}
	domainResource := &fhirschema.FhirSchema{
		Name: "DomainResource",
		URL:  "http://hl7.org/fhir/StructureDefinition/DomainResource",
		Base: "http://hl7.org/fhir/StructureDefinition/Resource",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"text": {Path: "DomainResource.text", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "Narrative"}}},
		},
	}
	task := &fhirschema.FhirSchema{
		Name: "Task",
		URL:  "http://hl7.org/fhir/StructureDefinition/Task",
		Base: "http://hl7.org/fhir/StructureDefinition/DomainResource",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"status": {Path: "Task.status", Min: 1, Max: "1", Type: []fhirschema.TypeRef{{Code: "code"}}},
			"input": {
				Path: "Task.input", Min: 0, Max: "*",
				Elements: map[string]*fhirschema.Element{
					"type":     {Path: "Task.input.type", Min: 1, Max: "1", Type: []fhirschema.TypeRef{{Code: "CodeableConcept"}}},
					"value[x]": {Path: "Task.input.value[x]", Min: 1, Max: "1", Type: []fhirschema.TypeRef{{Code: "string"}, {Code: "Quantity"}}},
				},
			},
		},
	}
	codeableConcept := &fhirschema.FhirSchema{
		Name: "CodeableConcept",
		URL:  "http://hl7.org/fhir/StructureDefinition/CodeableConcept",
		Kind: "complex-type",
	}
	quantity := &fhirschema.FhirSchema{
		Name: "Quantity",
		URL:  "http://hl7.org/fhir/StructureDefinition/Quantity",
		Kind: "complex-type",
	}
	code := &fhirschema.FhirSchema{
		Name: "code",
		URL:  "http://hl7.org/fhir/StructureDefinition/code",
		Kind: "primitive-type",
	}

	return &fakeStore{schemas: map[string]*fhirschema.FhirSchema{
		resource.URL:        resource,
		domainResource.URL:  domainResource,
		task.URL:             task,
		codeableConcept.URL: codeableConcept,
		quantity.URL:        quantity,
		code.URL:            code,
	}}
}

func TestProvider_GetType(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	info := p.GetType("Task")
	require.NotNil(t, info)
	assert.Equal(t, "Task", info.TypeName)
	assert.Equal(t, NamespaceFHIR, info.Namespace)
	assert.True(t, info.IsSingleton)

	byURL := p.GetType("http://hl7.org/fhir/StructureDefinition/Task")
	require.NotNil(t, byURL)
	assert.Equal(t, "Task", byURL.TypeName)

	primitive := p.GetType("boolean")
	require.NotNil(t, primitive)
	assert.Equal(t, "Boolean", primitive.TypeName)
	assert.Equal(t, NamespaceSystem, primitive.Namespace)

	passthrough := p.GetType("String")
	require.NotNil(t, passthrough)
	assert.Equal(t, NamespaceSystem, passthrough.Namespace)

	assert.Nil(t, p.GetType("NoSuchType"))
}

// Task.input has nested elements `type` and `value[x]`.
func TestProvider_GetElementNames_Backbone(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	names := p.GetElementNames(TypeInfo{Name: "Task.input"})
	assert.Equal(t, []string{"type", "value[x]"}, names)
}

func TestProvider_GetElementType_Backbone(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	info := p.GetElementType(TypeInfo{Name: "Task.input"}, "type")
	require.NotNil(t, info)
	assert.Equal(t, "CodeableConcept", info.Name)
	assert.Equal(t, NamespaceFHIR, info.Namespace)
}

func TestProvider_GetElementType_ChoiceScan(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	info := p.GetElementType(TypeInfo{Name: "Task.input"}, "valueQuantity")
	require.NotNil(t, info)
	assert.Equal(t, "Quantity", info.Name)

	strInfo := p.GetElementType(TypeInfo{Name: "Task.input"}, "valueString")
	require.NotNil(t, strInfo)
	assert.Equal(t, NamespaceSystem, strInfo.Namespace)
}

func TestProvider_GetElementType_BackboneElement(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	info := p.GetElementType(TypeInfo{Name: "Task"}, "input")
	require.NotNil(t, info)
	assert.Equal(t, "BackboneElement", info.TypeName)
	assert.False(t, info.IsSingleton)
}

func TestProvider_GetElements_InheritanceChainOverride(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	elements := p.GetElements("Task")
	byName := make(map[string]ElementInfo)
	for _, e := range elements {
		byName[e.Name] = e
	}

	status, ok := byName["status"]
	require.True(t, ok)
	assert.False(t, status.Inherited)

	text, ok := byName["text"]
	require.True(t, ok)
	assert.True(t, text.Inherited)

	id, ok := byName["id"]
	require.True(t, ok)
	assert.True(t, id.Inherited)
}

func TestProvider_OfType(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	taskInfo := TypeInfo{Name: "Task", TypeName: "Task"}
	assert.NotNil(t, p.OfType(taskInfo, "Task"))
	assert.NotNil(t, p.OfType(taskInfo, "DomainResource"))
	assert.NotNil(t, p.OfType(taskInfo, "Resource"))
	assert.Nil(t, p.OfType(taskInfo, "Observation"))
}

func TestProvider_TypeCategories(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	resources := p.GetResourceTypes()
	assert.Contains(t, resources, "Task")
	assert.Contains(t, resources, "DomainResource")

	complexTypes := p.GetComplexTypes()
	assert.Contains(t, complexTypes, "CodeableConcept")
	assert.Contains(t, complexTypes, "Quantity")

	primitives := p.GetPrimitiveTypes()
	assert.Contains(t, primitives, "code")
}

func TestProvider_BackboneHelpers(t *testing.T) {
	p, err := New(testStore())
	require.NoError(t, err)

	assert.True(t, p.IsBackboneElement("Task", "input"))
	assert.False(t, p.IsBackboneElement("Task", "status"))
	assert.Equal(t, []string{"type", "value[x]"}, p.GetBackboneElementChildren("Task", "input"))
}
