package schemavalidator

import (
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// ConstraintInfo is passed to a ConstraintEvaluator.
type ConstraintInfo struct {
	Key        string
	Severity   string
	Human      string
	Expression string
	XPath      string
	Source     string
}

// EvaluationOutcome is a ConstraintEvaluator's result.
type EvaluationOutcome struct {
	Success     bool
	Diagnostics string
}

// EvalContext carries the data a ConstraintEvaluator needs beyond the
// expression itself: the whole resource and the bytes at the current
// focus (the element or root the constraint is attached to).
type EvalContext struct {
	Resource []byte
	Focus    []byte
	Path     string
}

// ConstraintEvaluator is the narrow capability through which an
// external FHIRPath engine is consumed; the validator falls back to
// builtinEvaluate when none is configured.
type ConstraintEvaluator interface {
	EvaluateConstraint(ctx EvalContext, info ConstraintInfo) (EvaluationOutcome, error)
}

// complexTokens are substrings whose presence routes a constraint
// expression to the pluggable evaluator rather than the built-in
// recognizer.
var complexTokens = []string{
	"where(", "select(", "all(", "any(", "implies", " and ", " or ", "extension(",
}

// isComplexExpression reports whether expr needs a full evaluator: any of the
// listed tokens, or more than three dots.
func isComplexExpression(expr string) bool {
	for _, tok := range complexTokens {
		if strings.Contains(expr, tok) {
			return true
		}
	}
	return strings.Count(expr, ".") > 3
}

// builtinEvaluate is the fallback recognizer: it understands
// only exists, empty, count(), and equality/comparison literal forms
// against a direct field of the focus object. Anything else is
// unsupported and reported as a warning by the caller.
func builtinEvaluate(focus []byte, expr string) (outcome EvaluationOutcome, supported bool) {
	expr = strings.TrimSpace(expr)

	switch {
	case strings.HasSuffix(expr, ".exists()"):
		field := strings.TrimSuffix(expr, ".exists()")
		return EvaluationOutcome{Success: fieldPresent(focus, field)}, true

	case strings.HasSuffix(expr, ".empty()"):
		field := strings.TrimSuffix(expr, ".empty()")
		return EvaluationOutcome{Success: !fieldPresent(focus, field)}, true

	case strings.Contains(expr, ".count()"):
		return evalCountComparison(focus, expr)

	default:
		if lhs, op, rhs, ok := splitComparison(expr); ok {
			return evalFieldComparison(focus, lhs, op, rhs)
		}
	}
	return EvaluationOutcome{}, false
}

func fieldPresent(data []byte, field string) bool {
	segs := strings.Split(field, ".")
	_, _, _, err := jsonparser.Get(data, segs...)
	return err == nil
}

// splitComparison recognizes "<field> <op> <literal>" where op is one of
// =, !=, >, <, >=, <=.
func splitComparison(expr string) (lhs, op, rhs string, ok bool) {
	for _, candidate := range []string{"!=", ">=", "<=", "=", ">", "<"} {
		if idx := strings.Index(expr, " "+candidate+" "); idx >= 0 {
			lhs = strings.TrimSpace(expr[:idx])
			rhs = strings.TrimSpace(expr[idx+len(candidate)+2:])
			return lhs, candidate, rhs, true
		}
	}
	return "", "", "", false
}

func evalFieldComparison(focus []byte, field, op, literal string) (EvaluationOutcome, bool) {
	literal = strings.Trim(literal, "'\"")
	segs := strings.Split(field, ".")
	value, valType, _, err := jsonparser.Get(focus, segs...)
	if err != nil {
		return EvaluationOutcome{Success: false, Diagnostics: "field not present: " + field}, true
	}

	switch op {
	case "=", "!=":
		actual := string(value)
		if valType == jsonparser.String {
			actual, _ = jsonparser.ParseString(value)
		}
		equal := actual == literal
		if op == "!=" {
			equal = !equal
		}
		return EvaluationOutcome{Success: equal}, true
	default:
		lf, err1 := jsonparser.ParseFloat(value)
		rf, err2 := strconv.ParseFloat(literal, 64)
		if err1 != nil || err2 != nil {
			return EvaluationOutcome{}, false
		}
		var success bool
		switch op {
		case ">":
			success = lf > rf
		case "<":
			success = lf < rf
		case ">=":
			success = lf >= rf
		case "<=":
			success = lf <= rf
		}
		return EvaluationOutcome{Success: success}, true
	}
}

func evalCountComparison(focus []byte, expr string) (EvaluationOutcome, bool) {
	idx := strings.Index(expr, ".count()")
	field := strings.TrimSpace(expr[:idx])
	rest := strings.TrimSpace(expr[idx+len(".count()"):])
	if rest == "" {
		return EvaluationOutcome{}, false
	}
	lhs, op, rhs, ok := splitComparison(rest)
	_ = lhs
	if !ok {
		// rest starts with the operator ("= 2"), which splitComparison
		// does not match since it needs a space before the operator:
		// split the remainder as "op literal".
		parts := strings.SplitN(rest, " ", 2)
		if len(parts) != 2 {
			return EvaluationOutcome{}, false
		}
		op, rhs = parts[0], parts[1]
	}

	segs := strings.Split(field, ".")
	value, valType, _, err := jsonparser.Get(focus, segs...)
	count := 0
	if err == nil {
		if valType == jsonparser.Array {
			_, _ = jsonparser.ArrayEach(value, func([]byte, jsonparser.ValueType, int, error) { count++ })
		} else {
			count = 1
		}
	}

	target, perr := strconv.ParseFloat(strings.Trim(rhs, "'\""), 64)
	if perr != nil {
		return EvaluationOutcome{}, false
	}

	var success bool
	switch op {
	case "=", "==":
		success = float64(count) == target
	case "!=":
		success = float64(count) != target
	case ">":
		success = float64(count) > target
	case "<":
		success = float64(count) < target
	case ">=":
		success = float64(count) >= target
	case "<=":
		success = float64(count) <= target
	default:
		return EvaluationOutcome{}, false
	}
	return EvaluationOutcome{Success: success}, true
}
