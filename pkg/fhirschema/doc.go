// Package fhirschema defines the input and output data model for the
// converter: the FHIR StructureDefinition/ElementDefinition resources
// consumed on one side, and the normalized FhirSchema/Element form
// produced on the other.
//
// Types in this package carry no behavior beyond small accessors; the
// conversion rules live in package converter, and the validation rules
// live in package schemavalidator.
package fhirschema
