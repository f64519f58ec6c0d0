package schemavalidator

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// evaluateSlicing checks that every item in the array at path satisfies
// at least one discriminator form. value/exists are presence checks,
// pattern checks only that a non-empty value is present at the
// discriminator path (no pattern value is compared), type/profile are
// structural shape checks.
func evaluateSlicing(result *ValidationResult, path string, slicing *fhirschema.Slicing, items [][]byte) {
	if len(slicing.Discriminator) == 0 {
		return
	}
	for i, item := range items {
		itemPath := fmtIndexed(path, i)
		satisfied := false
		for _, d := range slicing.Discriminator {
			if discriminatorSatisfied(item, d) {
				satisfied = true
				break
			}
		}
		if !satisfied {
			result.errorf(itemPath, CodeSlicingViolated, "slice item at %s matches no discriminator", itemPath)
		}
	}
}

func discriminatorSatisfied(item []byte, d fhirschema.Discriminator) bool {
	segs := strings.Split(d.Path, ".")
	switch d.Type {
	case fhirschema.DiscriminatorExists, fhirschema.DiscriminatorValue:
		_, _, _, err := jsonparser.Get(item, segs...)
		return err == nil
	case fhirschema.DiscriminatorPattern:
		value, _, _, err := jsonparser.Get(item, segs...)
		return err == nil && len(value) > 0
	case fhirschema.DiscriminatorType, fhirschema.DiscriminatorProfile:
		value, valType, _, err := jsonparser.Get(item, segs...)
		return err == nil && (valType == jsonparser.Object || valType == jsonparser.String) && len(value) > 0
	default:
		return false
	}
}

func fmtIndexed(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

// patternMatches implements partial-match pattern
// semantics: for an object pattern, every key present in pattern must be
// present and match in value (deep, recursively); for an array pattern,
// every pattern item must be matched by at least one value item; for a
// scalar pattern, plain equality.
func patternMatches(value, pattern any) bool {
	switch pat := pattern.(type) {
	case map[string]any:
		valMap, ok := value.(map[string]any)
		if !ok {
			return false
		}
		for k, pv := range pat {
			vv, present := valMap[k]
			if !present || !patternMatches(vv, pv) {
				return false
			}
		}
		return true
	case []any:
		valArr, ok := value.([]any)
		if !ok {
			return false
		}
		for _, pv := range pat {
			matched := false
			for _, vv := range valArr {
				if patternMatches(vv, pv) {
					matched = true
					break
				}
			}
			if !matched {
				return false
			}
		}
		return true
	default:
		return reflect.DeepEqual(value, pattern)
	}
}
