package converter

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

const choiceSuffix = "[x]"

// codableTypes admits a binding on an expanded choice element.
var codableTypes = map[string]bool{
	"code":           true,
	"Coding":         true,
	"CodeableConcept": true,
	"string":         true,
	"uri":            true,
	"url":            true,
	"canonical":      true,
}

// isChoiceElement reports whether path names a polymorphic slot.
func isChoiceElement(path string) bool {
	return strings.HasSuffix(path, choiceSuffix)
}

// choiceBase strips the "[x]" suffix.
func choiceBase(path string) string {
	return strings.TrimSuffix(path, choiceSuffix)
}

// capitalize upper-cases the first rune, leaving the rest untouched -
// FHIR type codes are already camelCase (e.g. "dateTime" -> "DateTime").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// convertElement turns one source ElementDefinition into one or more
// output Elements. Non-choice elements always produce
// exactly one Element.
func convertElement(ctx *Context, src fhirschema.ElementDefinition) ([]*fhirschema.Element, error) {
	if !isChoiceElement(src.Path) {
		el, err := baseElement(src)
		if err != nil {
			return nil, err
		}
		el.Type = src.Type
		el.Fixed = decodeRaw(src.Fixed)
		el.Pattern = decodeRaw(src.Pattern)
		el.Binding = cloneBinding(src.Binding)
		ctx.MarkProcessed(src.Path)
		return []*fhirschema.Element{el}, nil
	}

	if !ctx.Config.ExpandChoiceTypes {
		el, err := baseElement(src)
		if err != nil {
			return nil, err
		}
		el.Type = src.Type
		ctx.MarkProcessed(src.Path)
		return []*fhirschema.Element{el}, nil
	}

	if len(src.Type) == 0 {
		return nil, fmt.Errorf("%w: %s", fhirschema.ErrMissingChoiceTypes, src.Path)
	}

	base := choiceBase(src.Path)
	out := make([]*fhirschema.Element, 0, len(src.Type))
	expandedPaths := make([]string, 0, len(src.Type))

	for _, t := range src.Type {
		el, err := baseElement(src)
		if err != nil {
			return nil, err
		}
		el.Path = base + capitalize(t.Code)
		el.Type = []fhirschema.TypeRef{t}

		if valueAppliesToType(src.Fixed, src.FixedType, t.Code) {
			el.Fixed = decodeRaw(src.Fixed)
		}
		if valueAppliesToType(src.Pattern, src.PatternType, t.Code) {
			el.Pattern = decodeRaw(src.Pattern)
		}
		if src.Binding != nil && codableTypes[t.Code] {
			el.Binding = cloneBinding(src.Binding)
		}

		if ctx.Config.ProcessConstraints {
			for _, c := range src.Constraint {
				converted, err := convertConstraint(ctx, src.Path, c)
				if err != nil {
					return nil, err
				}
				if strings.Contains(converted.Expression, choiceSuffix) {
					ctx.Warn(src.Path, fmt.Sprintf("constraint %s: expression still references %s; rewriting for %s", converted.Key, choiceSuffix, el.Path))
					converted.Expression = strings.ReplaceAll(converted.Expression, choiceSuffix, capitalize(t.Code))
				}
				el.Constraints = append(el.Constraints, *converted)
				ctx.Stats.ConstraintsOut++
			}
		}

		out = append(out, el)
		expandedPaths = append(expandedPaths, el.Path)
	}

	ctx.MarkProcessed(src.Path)
	ctx.RecordExpansion(base, expandedPaths)
	return out, nil
}

// valueAppliesToType reports whether a fixed/pattern value belongs on
// the expanded element for code. FHIR encodes the admissible type into
// the key name (fixedString, patternQuantity...); typeSuffix carries
// that suffix, so a fixedString never lands on valueQuantity. A bare
// key with no suffix applies to every expansion.
func valueAppliesToType(raw []byte, typeSuffix, code string) bool {
	if len(raw) == 0 {
		return false
	}
	return typeSuffix == "" || typeSuffix == capitalize(code)
}

func decodeRaw(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return v
}

func cloneBinding(b *fhirschema.Binding) *fhirschema.Binding {
	if b == nil {
		return nil
	}
	clone := *b
	return &clone
}

// baseElement copies the fields shared by every output shape regardless
// of choice expansion.
func baseElement(src fhirschema.ElementDefinition) (*fhirschema.Element, error) {
	if err := checkCardinality(src); err != nil {
		return nil, err
	}
	return &fhirschema.Element{
		Path:       src.Path,
		Short:      src.Short,
		Definition: src.Definition,
		Comment:    src.Comment,
		Min:        src.MinValue(),
		Max:        src.Max,
		IsModifier: src.IsModifier,
		IsSummary:  src.IsSummary,
		Mapping:    cloneMappings(src.Mapping),
	}, nil
}

func cloneMappings(in []fhirschema.ElementMapping) []fhirschema.ElementMapping {
	if len(in) == 0 {
		return nil
	}
	out := make([]fhirschema.ElementMapping, len(in))
	copy(out, in)
	return out
}
