package schemavalidator

import "github.com/buger/jsonparser"

// jsonKindsByPrimitive maps a FHIR primitive type code to the JSON value
// kinds it may legally appear as, mirroring pkg/provider's FHIR ->
// FHIRPath primitive table but used here for raw JSON-shape compatibility
// rather than reflection.
var jsonKindsByPrimitive = map[string][]jsonparser.ValueType{
	"boolean":      {jsonparser.Boolean},
	"integer":      {jsonparser.Number},
	"unsignedInt":  {jsonparser.Number},
	"positiveInt":  {jsonparser.Number},
	"decimal":      {jsonparser.Number},
	"string":       {jsonparser.String},
	"uri":          {jsonparser.String},
	"url":          {jsonparser.String},
	"canonical":    {jsonparser.String},
	"base64Binary": {jsonparser.String},
	"code":         {jsonparser.String},
	"oid":          {jsonparser.String},
	"id":           {jsonparser.String},
	"markdown":     {jsonparser.String},
	"uuid":         {jsonparser.String},
	"xhtml":        {jsonparser.String},
	"instant":      {jsonparser.String},
	"dateTime":     {jsonparser.String},
	"date":         {jsonparser.String},
	"time":         {jsonparser.String},
}

// isPrimitiveTypeCode reports whether code names a primitive FHIR type
// with a known JSON shape.
func isPrimitiveTypeCode(code string) bool {
	_, ok := jsonKindsByPrimitive[code]
	return ok
}

// typeCompatible checks the value's JSON kind against the primitive
// table, special-casing Reference (must be an object carrying at least
// one of "reference"/"identifier") and treating any non-primitive type
// code (complex types, resources, BackboneElement) as only requiring an
// object shape.
func typeCompatible(value []byte, valType jsonparser.ValueType, typeCode string) bool {
	if typeCode == "Reference" {
		if valType != jsonparser.Object {
			return false
		}
		_, _, _, refErr := jsonparser.Get(value, "reference")
		_, _, _, idErr := jsonparser.Get(value, "identifier")
		return refErr == nil || idErr == nil
	}

	kinds, ok := jsonKindsByPrimitive[typeCode]
	if !ok {
		return valType == jsonparser.Object
	}
	for _, k := range kinds {
		if valType == k {
			return true
		}
		// FHIR decimals/integers may be serialized without a trailing
		// fractional part; jsonparser still reports jsonparser.Number for
		// both, so the table above already covers this.
	}
	return false
}
