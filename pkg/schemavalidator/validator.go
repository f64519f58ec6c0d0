package schemavalidator

import (
	"encoding/json"
	"reflect"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Validator validates JSON resources against a *fhirschema.FhirSchema.
// The zero value uses the built-in constraint recognizer only; set
// Evaluator to route complex expressions through an external FHIRPath
// engine.
type Validator struct {
	Evaluator ConstraintEvaluator
}

// New returns a Validator using evaluator for complex constraint
// expressions. evaluator may be nil, in which case only exists/empty/
// count()/comparison forms are checked and everything else is reported
// as an unsupported-constraint warning.
func New(evaluator ConstraintEvaluator) *Validator {
	return &Validator{Evaluator: evaluator}
}

// Validate runs the full validation pipeline against resource.
func (v *Validator) Validate(schema *fhirschema.FhirSchema, resource []byte) *ValidationResult {
	result := &ValidationResult{CountsBySeverity: make(map[string]int)}

	v.checkResourceType(result, schema, resource)
	v.walkElements(result, schema.Name, schema.Elements, resource)
	v.evaluateConstraints(result, schema.Name, schema.Constraints, resource, resource)
	v.walkSlicing(result, schema, resource)

	return result
}

// checkResourceType compares resourceType to the schema type. Non-resource
// schemas (types,
// extensions) carry no resourceType expectation and are skipped.
func (v *Validator) checkResourceType(result *ValidationResult, schema *fhirschema.FhirSchema, resource []byte) {
	if schema.Kind != "resource" {
		return
	}
	rt, err := jsonparser.GetString(resource, "resourceType")
	if err != nil || rt == "" {
		result.errorf(schema.Name, CodeMissingResourceType, "resource is missing resourceType")
		return
	}
	if rt != schema.Name {
		result.errorf(schema.Name, CodeResourceTypeMismatch, "resourceType %q does not match schema type %q", rt, schema.Name)
	}
}

// walkElements applies the per-element checks, recursing into backbone elements
// so nested cardinality/type/fixed/pattern checks run against the right
// JSON sub-objects.
func (v *Validator) walkElements(result *ValidationResult, containerPath string, elements map[string]*fhirschema.Element, container []byte) {
	for name, el := range elements {
		items, dataType := readField(container, name)
		count := len(items)
		if dataType != jsonparser.Array && dataType != jsonparser.NotExist {
			count = 1
		}

		v.checkCardinality(result, el, count)
		if el.Excluded() && count > 0 {
			result.errorf(el.Path, CodeExcludedElement, "%s is excluded (max=0) but present", el.Path)
		}
		if count == 0 {
			continue
		}

		for _, item := range items {
			itemDataType := scalarDataType(item)
			v.checkType(result, el, item, itemDataType)
			v.checkFixedAndPattern(result, el, item)
			v.evaluateConstraints(result, el.Path, el.Constraints, container, item)

			if el.IsBackbone() {
				v.walkElements(result, el.Path, el.Elements, item)
			}
		}
	}
}

// readField extracts every JSON value at name under container: for a
// JSON array, every element; for a scalar, the single value; for an
// absent field, nothing.
func readField(container []byte, name string) (items [][]byte, dataType jsonparser.ValueType) {
	value, dt, _, err := jsonparser.Get(container, name)
	if err != nil {
		return nil, jsonparser.NotExist
	}
	if dt == jsonparser.Array {
		var out [][]byte
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			out = append(out, encodeScalar(item, itemType))
		})
		return out, dt
	}
	return [][]byte{encodeScalar(value, dt)}, dt
}

// encodeScalar re-wraps a jsonparser-extracted string value in quotes so
// downstream jsonparser.ParseString/type checks see the same bytes they
// would if read directly from the original document.
func encodeScalar(value []byte, dt jsonparser.ValueType) []byte {
	if dt == jsonparser.String {
		quoted, err := json.Marshal(string(value))
		if err == nil {
			return quoted
		}
	}
	return value
}

// scalarDataType reports the JSON kind of a single normalized item
// value (the output of encodeScalar).
func scalarDataType(item []byte) jsonparser.ValueType {
	_, dt, _, err := jsonparser.Get(item)
	if err != nil {
		return jsonparser.Unknown
	}
	return dt
}

func (v *Validator) checkCardinality(result *ValidationResult, el *fhirschema.Element, count int) {
	if count < el.Min {
		result.errorf(el.Path, CodeCardinality, "%s: expected at least %d, got %d", el.Path, el.Min, count)
	}
	if el.Max != "" && el.Max != "*" {
		max, err := strconv.Atoi(el.Max)
		if err == nil && count > max {
			result.errorf(el.Path, CodeCardinality, "%s: expected at most %s, got %d", el.Path, el.Max, count)
		}
	}
}

func (v *Validator) checkType(result *ValidationResult, el *fhirschema.Element, value []byte, valType jsonparser.ValueType) {
	if el.IsBackbone() || len(el.Type) == 0 {
		return
	}
	code := el.SingleType()
	if code == "" {
		code = el.Type[0].Code
	}
	if !typeCompatible(value, valType, code) {
		result.errorf(el.Path, CodeTypeMismatch, "%s: value is not compatible with type %q", el.Path, code)
	}
}

func (v *Validator) checkFixedAndPattern(result *ValidationResult, el *fhirschema.Element, value []byte) {
	if el.Fixed == nil && el.Pattern == nil {
		return
	}
	var decoded any
	if err := json.Unmarshal(value, &decoded); err != nil {
		result.warnf(el.Path, CodeTypeMismatch, "%s: could not parse value for fixed/pattern check", el.Path)
		return
	}
	if el.Fixed != nil && !reflect.DeepEqual(decoded, el.Fixed) {
		result.errorf(el.Path, CodeFixedMismatch, "%s: value does not equal fixed value", el.Path)
	}
	if el.Pattern != nil && !patternMatches(decoded, el.Pattern) {
		result.errorf(el.Path, CodePatternMismatch, "%s: value does not match pattern", el.Path)
	}
}

// evaluateConstraints runs each constraint against its focus.
func (v *Validator) evaluateConstraints(result *ValidationResult, path string, constraints []fhirschema.Constraint, resource, focus []byte) {
	for _, c := range constraints {
		v.evaluateOne(result, path, c, resource, focus)
	}
}

func (v *Validator) evaluateOne(result *ValidationResult, path string, c fhirschema.Constraint, resource, focus []byte) {
	if isComplexExpression(c.Expression) {
		if v.Evaluator == nil {
			result.warnf(path, CodeConstraintUnsupported, "constraint %s requires a FHIRPath evaluator: %s", c.Key, c.Expression)
			return
		}
		outcome, err := v.Evaluator.EvaluateConstraint(
			EvalContext{Resource: resource, Focus: focus, Path: path},
			ConstraintInfo{Key: c.Key, Severity: c.Severity, Human: c.Human, Expression: c.Expression, Source: c.Source},
		)
		if err != nil {
			result.warnf(path, CodeConstraintUnsupported, "constraint %s evaluation failed: %v", c.Key, err)
			return
		}
		if !outcome.Success {
			v.reportConstraintFailure(result, path, c, outcome.Diagnostics)
		}
		return
	}

	outcome, supported := builtinEvaluate(focus, c.Expression)
	if !supported {
		result.warnf(path, CodeConstraintUnsupported, "constraint %s not supported by the built-in recognizer: %s", c.Key, c.Expression)
		return
	}
	if !outcome.Success {
		v.reportConstraintFailure(result, path, c, outcome.Diagnostics)
	}
}

func (v *Validator) reportConstraintFailure(result *ValidationResult, path string, c fhirschema.Constraint, diagnostics string) {
	msg := c.Human
	if msg == "" {
		msg = c.Expression
	}
	if diagnostics != "" {
		msg = msg + " (" + diagnostics + ")"
	}
	switch c.Severity {
	case fhirschema.SeverityWarning, fhirschema.SeverityInformation:
		result.warnf(path, CodeConstraintViolated, "constraint %s: %s", c.Key, msg)
	default:
		result.errorf(path, CodeConstraintViolated, "constraint %s: %s", c.Key, msg)
	}
}

// walkSlicing evaluates discriminators over every sliced path the schema
// declares.
func (v *Validator) walkSlicing(result *ValidationResult, schema *fhirschema.FhirSchema, resource []byte) {
	for path, slicing := range schema.Slicing {
		segs := strings.Split(path, ".")
		value, dt, _, err := jsonparser.Get(resource, segs...)
		if err != nil && len(segs) > 1 {
			// Converted schemas key slicing by the full element path
			// ("Patient.identifier"); the resource has no field named
			// after its type, so retry without that leading segment.
			value, dt, _, err = jsonparser.Get(resource, segs[1:]...)
		}
		if err != nil || dt != jsonparser.Array {
			continue
		}
		var items [][]byte
		_, _ = jsonparser.ArrayEach(value, func(item []byte, itemType jsonparser.ValueType, _ int, _ error) {
			items = append(items, encodeScalar(item, itemType))
		})
		evaluateSlicing(result, path, slicing, items)
	}
}
