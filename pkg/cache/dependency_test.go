package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

func TestDependencyTracker_RegisterAndDependents(t *testing.T) {
	tracker := NewDependencyTracker()
	s := fhirschema.NewSchema()
	s.Base = "http://hl7.org/fhir/StructureDefinition/Patient"

	tracker.Register("http://example.org/USPatient", s)

	assert.Contains(t, tracker.Dependents("http://hl7.org/fhir/StructureDefinition/Patient"), "http://example.org/USPatient")
}

func TestDependencyTracker_TypeCodeEdge(t *testing.T) {
	tracker := NewDependencyTracker()
	s := fhirschema.NewSchema()
	el := fhirschema.NewElement("Observation.value")
	el.Type = []fhirschema.TypeRef{{Code: "http://example.org/CustomQuantity"}}
	s.SetElement("value", el)

	tracker.Register("http://example.org/Observation", s)

	assert.Contains(t, tracker.Dependents("http://example.org/CustomQuantity"), "http://example.org/Observation")
}

func TestExpandPackage(t *testing.T) {
	urls := []string{
		"http://hl7.org/fhir/r4/StructureDefinition/Patient",
		"http://example.org/us-core/StructureDefinition/USPatient",
	}
	assert.Equal(t, []string{urls[1]}, ExpandPackage(urls, "us-core"))
}
