package schemavalidator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

func patientSchema() *fhirschema.FhirSchema {
	return &fhirschema.FhirSchema{
		Name: "Patient",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"active": {Path: "Patient.active", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "boolean"}}},
			"gender": {Path: "Patient.gender", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "code"}}},
			"name":   {Path: "Patient.name", Min: 1, Max: "*", Type: []fhirschema.TypeRef{{Code: "HumanName"}}},
		},
	}
}

func codesOf(result *ValidationResult) []string {
	codes := make([]string, 0, len(result.Issues))
	for _, issue := range result.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestValidate_Valid(t *testing.T) {
	resource := []byte(`{"resourceType":"Patient","active":true,"gender":"female","name":[{"family":"Chalmers"}]}`)

	result := New(nil).Validate(patientSchema(), resource)

	assert.True(t, result.Valid())
	assert.Empty(t, result.Issues)
}

func TestValidate_MissingResourceType(t *testing.T) {
	result := New(nil).Validate(patientSchema(), []byte(`{"name":[{"family":"Chalmers"}]}`))

	assert.False(t, result.Valid())
	assert.Contains(t, codesOf(result), CodeMissingResourceType)
}

func TestValidate_ResourceTypeMismatch(t *testing.T) {
	result := New(nil).Validate(patientSchema(), []byte(`{"resourceType":"Observation","name":[{"family":"X"}]}`))

	assert.Contains(t, codesOf(result), CodeResourceTypeMismatch)
}

func TestValidate_ResourceTypeSkippedForComplexTypes(t *testing.T) {
	schema := &fhirschema.FhirSchema{
		Name: "HumanName",
		Kind: "complex-type",
		Elements: map[string]*fhirschema.Element{
			"family": {Path: "HumanName.family", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "string"}}},
		},
	}

	result := New(nil).Validate(schema, []byte(`{"family":"Chalmers"}`))
	assert.True(t, result.Valid())
}

func TestValidate_Cardinality(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		wantErr  bool
	}{
		{"required element missing", `{"resourceType":"Patient"}`, true},
		{"unbounded repeats pass", `{"resourceType":"Patient","name":[{"family":"a"},{"family":"b"},{"family":"c"}]}`, false},
		{"max one exceeded", `{"resourceType":"Patient","name":[{"family":"a"}],"gender":["male","female"]}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := New(nil).Validate(patientSchema(), []byte(tt.resource))
			if tt.wantErr {
				assert.Contains(t, codesOf(result), CodeCardinality)
			} else {
				assert.True(t, result.Valid(), "issues: %v", result.Issues)
			}
		})
	}
}

func TestValidate_ExcludedElement(t *testing.T) {
	schema := patientSchema()
	schema.Elements["animal"] = &fhirschema.Element{Path: "Patient.animal", Min: 0, Max: "0"}

	result := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","name":[{"family":"a"}],"animal":{"species":"dog"}}`))

	assert.Contains(t, codesOf(result), CodeExcludedElement)
}

func TestValidate_TypeMismatch(t *testing.T) {
	resource := []byte(`{"resourceType":"Patient","active":"yes","name":[{"family":"a"}]}`)

	result := New(nil).Validate(patientSchema(), resource)

	assert.Contains(t, codesOf(result), CodeTypeMismatch)
}

func TestValidate_ReferenceShape(t *testing.T) {
	schema := &fhirschema.FhirSchema{
		Name: "Observation",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"subject": {Path: "Observation.subject", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "Reference"}}},
		},
	}

	ok := New(nil).Validate(schema, []byte(`{"resourceType":"Observation","subject":{"reference":"Patient/1"}}`))
	assert.True(t, ok.Valid())

	byIdentifier := New(nil).Validate(schema, []byte(`{"resourceType":"Observation","subject":{"identifier":{"value":"x"}}}`))
	assert.True(t, byIdentifier.Valid())

	bad := New(nil).Validate(schema, []byte(`{"resourceType":"Observation","subject":{"display":"someone"}}`))
	assert.Contains(t, codesOf(bad), CodeTypeMismatch)
}

func TestValidate_FixedAndPattern(t *testing.T) {
	schema := &fhirschema.FhirSchema{
		Name: "Patient",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"gender": {Path: "Patient.gender", Min: 0, Max: "1", Type: []fhirschema.TypeRef{{Code: "code"}}, Fixed: "female"},
			"maritalStatus": {
				Path: "Patient.maritalStatus", Min: 0, Max: "1",
				Pattern: map[string]any{"coding": []any{map[string]any{"code": "M"}}},
			},
		},
	}

	ok := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","gender":"female","maritalStatus":{"coding":[{"code":"M","display":"Married"}]}}`))
	require.True(t, ok.Valid(), "issues: %v", ok.Issues)

	fixedViolation := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","gender":"male"}`))
	assert.Contains(t, codesOf(fixedViolation), CodeFixedMismatch)
}

func TestValidate_PatternPartialObjectMatch(t *testing.T) {
	assert.True(t, patternMatches(
		map[string]any{"system": "phone", "value": "555", "use": "home"},
		map[string]any{"system": "phone"},
	))
	assert.False(t, patternMatches(
		map[string]any{"system": "email"},
		map[string]any{"system": "phone"},
	))
	assert.False(t, patternMatches("scalar", map[string]any{"system": "phone"}))
}

func TestValidate_BackboneRecursion(t *testing.T) {
	schema := &fhirschema.FhirSchema{
		Name: "Task",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"input": {
				Path: "Task.input", Min: 0, Max: "*",
				Elements: map[string]*fhirschema.Element{
					"type": {Path: "Task.input.type", Min: 1, Max: "1"},
				},
			},
		},
	}

	result := New(nil).Validate(schema, []byte(`{"resourceType":"Task","input":[{"valueString":"no type here"}]}`))

	assert.False(t, result.Valid())
	require.NotEmpty(t, result.Issues)
	assert.Equal(t, "Task.input.type", result.Issues[0].Path)
}

func TestBuiltinEvaluate(t *testing.T) {
	focus := []byte(`{"status":"final","count":3,"component":[{"code":"a"},{"code":"b"}]}`)

	tests := []struct {
		expr      string
		success   bool
		supported bool
	}{
		{"status.exists()", true, true},
		{"missing.exists()", false, true},
		{"missing.empty()", true, true},
		{"status.empty()", false, true},
		{"status = 'final'", true, true},
		{"status != 'final'", false, true},
		{"count > 2", true, true},
		{"count <= 2", false, true},
		{"component.count() = 2", true, true},
		{"component.count() >= 3", false, true},
		{"status.matches('[a-z]+')", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			outcome, supported := builtinEvaluate(focus, tt.expr)
			assert.Equal(t, tt.supported, supported)
			if supported {
				assert.Equal(t, tt.success, outcome.Success)
			}
		})
	}
}

func TestIsComplexExpression(t *testing.T) {
	assert.True(t, isComplexExpression("name.where(use = 'official').exists()"))
	assert.True(t, isComplexExpression("contact.all(name.exists())"))
	assert.True(t, isComplexExpression("a.b.c.d.e"))
	assert.False(t, isComplexExpression("status.exists()"))
	assert.False(t, isComplexExpression("count > 2"))
}

func TestValidate_UnsupportedConstraintWarnsWithoutEvaluator(t *testing.T) {
	schema := patientSchema()
	schema.Constraints = []fhirschema.Constraint{
		{Key: "pat-1", Severity: "error", Expression: "contact.all(name.exists() or telecom.exists())"},
	}

	result := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","name":[{"family":"a"}]}`))

	assert.True(t, result.Valid(), "unsupported constraints must not fail validation")
	assert.Contains(t, codesOf(result), CodeConstraintUnsupported)
}

func TestValidate_ConstraintSeverityRouting(t *testing.T) {
	schema := patientSchema()
	schema.Constraints = []fhirschema.Constraint{
		{Key: "w-1", Severity: "warning", Expression: "deceased.exists()", Human: "deceased should be present"},
		{Key: "e-1", Severity: "error", Expression: "gender.exists()", Human: "gender must be present"},
	}

	result := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","name":[{"family":"a"}]}`))

	assert.Equal(t, 1, result.CountsBySeverity[fhirschema.SeverityError])
	assert.Equal(t, 1, result.CountsBySeverity[fhirschema.SeverityWarning])
}

// fakeEvaluator scripts per-key outcomes so tests can exercise the
// pluggable-evaluator path without a real FHIRPath engine.
type fakeEvaluator struct {
	outcomes map[string]EvaluationOutcome
	seen     []string
}

func (f *fakeEvaluator) EvaluateConstraint(_ EvalContext, info ConstraintInfo) (EvaluationOutcome, error) {
	f.seen = append(f.seen, info.Key)
	return f.outcomes[info.Key], nil
}

func TestValidate_PluggableEvaluator(t *testing.T) {
	schema := patientSchema()
	schema.Constraints = []fhirschema.Constraint{
		{Key: "pat-ok", Severity: "error", Expression: "name.where(use = 'official').exists()"},
		{Key: "pat-bad", Severity: "error", Expression: "contact.all(name.exists())", Human: "contact needs a name"},
	}

	eval := &fakeEvaluator{outcomes: map[string]EvaluationOutcome{
		"pat-ok":  {Success: true},
		"pat-bad": {Success: false, Diagnostics: "2 contacts without a name"},
	}}
	result := New(eval).Validate(schema, []byte(`{"resourceType":"Patient","name":[{"family":"Chalmers"}]}`))

	assert.ElementsMatch(t, []string{"pat-ok", "pat-bad"}, eval.seen, "complex expressions must route to the evaluator")
	assert.False(t, result.Valid())
	assert.Contains(t, codesOf(result), CodeConstraintViolated)

	var msg string
	for _, issue := range result.Issues {
		if issue.Code == CodeConstraintViolated {
			msg = issue.Message
		}
	}
	assert.Contains(t, msg, "contact needs a name")
	assert.Contains(t, msg, "2 contacts without a name")
}

func TestValidate_Slicing(t *testing.T) {
	schema := &fhirschema.FhirSchema{
		Name: "Patient",
		Kind: "resource",
		Elements: map[string]*fhirschema.Element{
			"identifier": {Path: "Patient.identifier", Min: 0, Max: "*"},
		},
		Slicing: map[string]*fhirschema.Slicing{
			"identifier": {
				Rules: fhirschema.SlicingOpen,
				Discriminator: []fhirschema.Discriminator{
					{Type: fhirschema.DiscriminatorValue, Path: "system"},
				},
			},
		},
	}

	ok := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","identifier":[{"system":"urn:mrn","value":"1"}]}`))
	assert.True(t, ok.Valid(), "issues: %v", ok.Issues)

	bad := New(nil).Validate(schema, []byte(`{"resourceType":"Patient","identifier":[{"value":"no system"}]}`))
	assert.Contains(t, codesOf(bad), CodeSlicingViolated)
}

func TestTypeCompatible(t *testing.T) {
	tests := []struct {
		name  string
		value string
		code  string
		want  bool
	}{
		{"boolean ok", `true`, "boolean", true},
		{"boolean from string", `"true"`, "boolean", false},
		{"integer ok", `42`, "integer", true},
		{"decimal without fraction", `5`, "decimal", true},
		{"string ok", `"hello"`, "string", true},
		{"dateTime is a string on the wire", `"2024-01-01T00:00:00Z"`, "dateTime", true},
		{"complex type wants object", `{"value":1}`, "Quantity", true},
		{"complex type rejects scalar", `"not an object"`, "Quantity", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dt := scalarDataType([]byte(tt.value))
			assert.Equal(t, tt.want, typeCompatible([]byte(tt.value), dt, tt.code))
		})
	}
}
