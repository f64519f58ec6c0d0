// Package schemavalidator performs structural validation of a JSON-shaped
// FHIR resource against a *fhirschema.FhirSchema: resourceType, cardinality,
// type compatibility, fixed/pattern constraints, constraint expressions, and
// slicing discriminators. It never evaluates FHIRPath expressions itself -
// see ConstraintEvaluator - and always returns a ValidationResult rather
// than an error.
package schemavalidator
