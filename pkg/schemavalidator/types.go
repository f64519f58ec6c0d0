package schemavalidator

import (
	"fmt"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Issue codes. These are stable strings callers may switch on.
const (
	CodeMissingResourceType  = "missing-resource-type"
	CodeResourceTypeMismatch = "resource-type-mismatch"
	CodeCardinality          = "cardinality"
	CodeExcludedElement      = "excluded-element"
	CodeTypeMismatch         = "type-mismatch"
	CodeFixedMismatch        = "fixed-mismatch"
	CodePatternMismatch      = "pattern-mismatch"
	CodeConstraintViolated   = "constraint-violated"
	CodeConstraintUnsupported = "constraint-unsupported"
	CodeSlicingViolated      = "slicing-violated"
)

// Location pinpoints an issue within the source document, when known.
// The JSON-based validator here never fills this in - it is
// carried for API parity with richer text-offset-aware callers.
type Location struct {
	Line   int
	Column int
	Span   int
}

// ValidationIssue is one finding.
type ValidationIssue struct {
	Severity string
	Code     string
	Message  string
	Path     string
	Location *Location
}

// ValidationResult is the validator's return value: an ordered issue list
// plus counts by severity.
type ValidationResult struct {
	Issues           []ValidationIssue
	CountsBySeverity map[string]int
}

// Valid reports whether the result carries no error-severity issues.
func (r *ValidationResult) Valid() bool {
	return r.CountsBySeverity[fhirschema.SeverityError] == 0
}

func (r *ValidationResult) add(issue ValidationIssue) {
	r.Issues = append(r.Issues, issue)
	if r.CountsBySeverity == nil {
		r.CountsBySeverity = make(map[string]int)
	}
	r.CountsBySeverity[issue.Severity]++
}

func (r *ValidationResult) errorf(path, code, format string, args ...any) {
	r.add(ValidationIssue{Severity: fhirschema.SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Path: path})
}

func (r *ValidationResult) warnf(path, code, format string, args ...any) {
	r.add(ValidationIssue{Severity: fhirschema.SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Path: path})
}
