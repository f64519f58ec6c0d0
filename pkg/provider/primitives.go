package provider

// fhirToFHIRPathPrimitive is the closed FHIR -> FHIRPath primitive map
// used for type reflection; callers depend on these exact
// names.
var fhirToFHIRPathPrimitive = map[string]string{
	"boolean":      "Boolean",
	"integer":      "Integer",
	"unsignedInt":  "Integer",
	"positiveInt":  "Integer",
	"decimal":      "Decimal",
	"string":       "String",
	"uri":          "String",
	"url":          "String",
	"canonical":    "String",
	"base64Binary": "String",
	"code":         "String",
	"oid":          "String",
	"id":           "String",
	"markdown":     "String",
	"uuid":         "String",
	"xhtml":        "String",
	"instant":      "DateTime",
	"dateTime":     "DateTime",
	"date":         "Date",
	"time":         "Time",

	"Quantity":       "Quantity",
	"SimpleQuantity": "Quantity",
	"Money":          "Quantity",
	"Duration":       "Quantity",
	"Age":            "Quantity",
	"Distance":       "Quantity",
	"Count":          "Quantity",

	"Any": "Any",
}

// fhirPathSystemTypes lets a bare FHIRPath system type name pass
// through GetType unchanged.
var fhirPathSystemTypes = map[string]bool{
	"Boolean": true, "Integer": true, "Decimal": true, "String": true,
	"DateTime": true, "Date": true, "Time": true, "Quantity": true, "Any": true,
}
