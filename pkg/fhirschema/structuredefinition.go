package fhirschema

import (
	"encoding/json"
	"fmt"
)

// StructureDefinition is the FHIR input resource the Converter consumes.
// It mirrors the subset of the real StructureDefinition resource the
// converter cares about; unknown fields on the wire are simply ignored by
// encoding/json.
type StructureDefinition struct {
	ResourceType   string        `json:"resourceType"`
	ID             string        `json:"id,omitempty"`
	URL            string        `json:"url,omitempty"`
	Name           string        `json:"name,omitempty"`
	Title          string        `json:"title,omitempty"`
	Version        string        `json:"version,omitempty"`
	Status         string        `json:"status,omitempty"`
	Description    string        `json:"description,omitempty"`
	Kind           string        `json:"kind"` // resource | complex-type | primitive-type | logical
	Abstract       bool          `json:"abstract,omitempty"`
	Type           string        `json:"type"`
	BaseDefinition string        `json:"baseDefinition,omitempty"`
	Derivation     string        `json:"derivation,omitempty"` // specialization | constraint
	Snapshot       *ElementList  `json:"snapshot,omitempty"`
	Differential   *ElementList  `json:"differential,omitempty"`
}

// ElementList wraps the flat, ordered list of ElementDefinition entries
// found under snapshot or differential.
type ElementList struct {
	Element []ElementDefinition `json:"element"`
}

// Elements returns the element list the converter should read: snapshot
// wins when both are present. Returns an error if neither is set.
func (sd *StructureDefinition) Elements() ([]ElementDefinition, error) {
	if sd.Snapshot != nil && len(sd.Snapshot.Element) > 0 {
		return sd.Snapshot.Element, nil
	}
	if sd.Differential != nil && len(sd.Differential.Element) > 0 {
		return sd.Differential.Element, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrMissingElements, sd.canonicalRef())
}

func (sd *StructureDefinition) canonicalRef() string {
	if sd.URL != "" {
		return sd.URL
	}
	return sd.Name
}

// ElementDefinition is a single entry in a StructureDefinition's element
// list, identified by its dotted Path.
type ElementDefinition struct {
	ID          string            `json:"id,omitempty"`
	Path        string            `json:"path"`
	SliceName   string            `json:"sliceName,omitempty"`
	Short       string            `json:"short,omitempty"`
	Definition  string            `json:"definition,omitempty"`
	Comment     string            `json:"comment,omitempty"`
	Min         *int              `json:"min,omitempty"`
	Max         string            `json:"max,omitempty"`
	Type        []TypeRef         `json:"type,omitempty"`
	Binding     *Binding          `json:"binding,omitempty"`
	Constraint  []ConstraintDef   `json:"constraint,omitempty"`
	Slicing     *SlicingDef       `json:"slicing,omitempty"`
	Fixed       json.RawMessage   `json:"-"`
	Pattern     json.RawMessage   `json:"-"`
	// FixedType and PatternType hold the type suffix of the matched
	// fixed[x]/pattern[x] key ("String" for fixedString, "" for a bare
	// "fixed" key), so choice expansion can tell which concrete type
	// the value belongs to.
	FixedType   string            `json:"-"`
	PatternType string            `json:"-"`
	MustSupport bool              `json:"mustSupport,omitempty"`
	IsModifier  bool              `json:"isModifier,omitempty"`
	IsSummary   bool              `json:"isSummary,omitempty"`
	Mapping     []ElementMapping  `json:"mapping,omitempty"`

	// raw retains the original JSON object so UnmarshalJSON can pull the
	// polymorphic fixed[x]/pattern[x] fields out by scanning keys.
	raw map[string]json.RawMessage
}

// UnmarshalJSON extracts fixed[x]/pattern[x] by scanning for any key with
// that prefix, since FHIR encodes the concrete type into the field name
// (fixedString, fixedCodeableConcept, patternQuantity...).
func (e *ElementDefinition) UnmarshalJSON(data []byte) error {
	type alias ElementDefinition
	aux := (*alias)(e)
	if err := json.Unmarshal(data, aux); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.raw = raw

	for key, value := range raw {
		switch {
		case key == "fixed" || hasTypedPrefix(key, "fixed"):
			e.Fixed = value
			e.FixedType = key[len("fixed"):]
		case key == "pattern" || hasTypedPrefix(key, "pattern"):
			e.Pattern = value
			e.PatternType = key[len("pattern"):]
		}
	}
	return nil
}

func hasTypedPrefix(key, prefix string) bool {
	if len(key) <= len(prefix) || key[:len(prefix)] != prefix {
		return false
	}
	// first rune after the prefix must be upper-case, e.g. fixedString,
	// patternCodeableConcept - this excludes unrelated keys like
	// "fixture" from accidentally matching "fixed".
	c := key[len(prefix)]
	return c >= 'A' && c <= 'Z'
}

// MinValue returns Min, defaulting to 0 when unset on the wire.
func (e *ElementDefinition) MinValue() int {
	if e.Min == nil {
		return 0
	}
	return *e.Min
}

// TypeRef is one admissible type for an element.
type TypeRef struct {
	Code          string   `json:"code"`
	Profile       []string `json:"profile,omitempty"`
	TargetProfile []string `json:"targetProfile,omitempty"`
	Aggregation   []string `json:"aggregation,omitempty"`
	Versioning    string   `json:"versioning,omitempty"`
}

// Binding is a terminology binding on an element.
type Binding struct {
	Strength    string `json:"strength"` // required | extensible | preferred | example
	ValueSet    string `json:"valueSet,omitempty"`
	Description string `json:"description,omitempty"`
}

// ConstraintDef is a single FHIRPath/XPath invariant attached to an
// element.
type ConstraintDef struct {
	Key        string `json:"key"`
	Severity   string `json:"severity"` // error | warning | information
	Human      string `json:"human,omitempty"`
	Expression string `json:"expression,omitempty"`
	XPath      string `json:"xpath,omitempty"`
	Source     string `json:"source,omitempty"`
}

// SlicingDef describes how a repeated element is partitioned into named
// slices.
type SlicingDef struct {
	Discriminator []DiscriminatorDef `json:"discriminator,omitempty"`
	Ordered       bool               `json:"ordered,omitempty"`
	Rules         string             `json:"rules"` // open | closed | openAtEnd
	Description   string             `json:"description,omitempty"`
}

// DiscriminatorDef identifies one field used to decide slice membership.
type DiscriminatorDef struct {
	Type string `json:"type"` // value | exists | pattern | type | profile
	Path string `json:"path"`
}

// ElementMapping maps an element to an external specification.
type ElementMapping struct {
	Identity string `json:"identity"`
	Language string `json:"language,omitempty"`
	Map      string `json:"map"`
	Comment  string `json:"comment,omitempty"`
}
