package converter

import (
	"fmt"
	"strings"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

var allowedSeverities = map[string]bool{
	fhirschema.SeverityError:       true,
	fhirschema.SeverityWarning:     true,
	fhirschema.SeverityInformation: true,
}

// contextualTokens flag expressions that require an evaluation context.
var contextualTokens = []string{"$this", "%resource", "%rootResource"}

// resolutionTokens flag expressions that require external resolution.
var resolutionTokens = []string{"resolve(", "conformsTo("}

// convertConstraint converts one constraint entry. path is the owning element's
// path, used only for diagnostic context.
func convertConstraint(ctx *Context, path string, src fhirschema.ConstraintDef) (*fhirschema.Constraint, error) {
	if !allowedSeverities[src.Severity] {
		return nil, fmt.Errorf("%w: %s: unknown severity %q", fhirschema.ErrInvalidConstraint, path, src.Severity)
	}

	expr := src.Expression
	usedXPath := false
	if expr == "" {
		if src.XPath == "" {
			return nil, fmt.Errorf("%w: %s: neither expression nor xpath set", fhirschema.ErrInvalidConstraint, path)
		}
		expr = src.XPath
		usedXPath = true
	}

	if !balancedParens(expr) {
		ctx.Warn(path, fmt.Sprintf("constraint %s: unbalanced parentheses in expression", src.Key))
	}

	key := src.Key
	if strings.TrimSpace(key) == "" {
		ctx.Warn(path, "constraint has empty or whitespace-only key")
	}

	out := &fhirschema.Constraint{
		Key:        key,
		Severity:   src.Severity,
		Human:      src.Human,
		Expression: expr,
		Source:     src.Source,
	}

	if usedXPath {
		ctx.Warn(path, fmt.Sprintf("constraint %s: xpath-used", key))
	}
	for _, tok := range contextualTokens {
		if strings.Contains(expr, tok) {
			out.RequiresContext = true
			ctx.Info(path, fmt.Sprintf("constraint %s requires evaluation context (%s)", key, tok))
			break
		}
	}
	for _, tok := range resolutionTokens {
		if strings.Contains(expr, tok) {
			out.RequiresResolution = true
			ctx.Warn(path, fmt.Sprintf("constraint %s requires external resolution (%s)", key, tok))
			break
		}
	}

	return out, nil
}

func balancedParens(expr string) bool {
	depth := 0
	for _, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
