// Package converter transforms FHIR StructureDefinition resources into
// the normalized FhirSchema form consumed by the rest of the module.
//
// Convert runs a staged pipeline over a Context: header classification,
// element conversion (including choice-type expansion), constraint
// processing, and slicing processing, each stage walking the source
// element list in its given order. ConvertAsync adds
// profile resolution through a pluggable resolver capability.
package converter
