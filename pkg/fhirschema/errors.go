package fhirschema

import "errors"

// Sentinel errors returned by the converter and validator packages.
// Callers should use errors.Is against these values; the wrapping
// functions attach path/resource context with fmt.Errorf("%w: ...").
var (
	// ErrMissingElements is returned when a StructureDefinition carries
	// neither a snapshot nor a differential element list.
	ErrMissingElements = errors.New("fhirschema: structure definition has no snapshot or differential elements")

	// ErrBadDerivation is returned when a StructureDefinition's
	// derivation is "constraint" but it has no baseDefinition.
	ErrBadDerivation = errors.New("fhirschema: cannot resolve base definition for constraint derivation")

	// ErrInvalidCardinality is returned when an element's min exceeds its
	// numeric max. A max that is neither "*" nor an integer is not
	// rejected by the converter.
	ErrInvalidCardinality = errors.New("fhirschema: invalid element cardinality")

	// ErrInvalidSlicing is returned when a slicing rule is present but
	// malformed: an unrecognized rules value, or closed slicing with no
	// discriminators.
	ErrInvalidSlicing = errors.New("fhirschema: invalid slicing definition")

	// ErrInvalidDiscriminator is returned when a discriminator names an
	// unrecognized type or an empty path.
	ErrInvalidDiscriminator = errors.New("fhirschema: invalid slicing discriminator")

	// ErrInvalidConstraint is returned when a constraint's severity is not
	// error, warning or information, or when it has neither an expression
	// nor an xpath. An empty key is only a warning.
	ErrInvalidConstraint = errors.New("fhirschema: invalid constraint definition")

	// ErrMissingChoiceTypes is returned when an element's path ends in
	// "[x]" but carries no type entries to expand against.
	ErrMissingChoiceTypes = errors.New("fhirschema: choice element has no types to expand")

	// ErrUnresolvedProfile names a failed profile lookup. The converter
	// does not return it: ConvertAsync records a profile the resolver
	// cannot find as a warning and conversion continues.
	ErrUnresolvedProfile = errors.New("fhirschema: unable to resolve referenced profile")
)
