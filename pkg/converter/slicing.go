package converter

import (
	"fmt"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

var allowedSlicingRules = map[string]bool{
	fhirschema.SlicingOpen:      true,
	fhirschema.SlicingClosed:    true,
	fhirschema.SlicingOpenAtEnd: true,
}

var allowedDiscriminatorTypes = map[string]bool{
	fhirschema.DiscriminatorValue:   true,
	fhirschema.DiscriminatorExists:  true,
	fhirschema.DiscriminatorPattern: true,
	fhirschema.DiscriminatorType:    true,
	fhirschema.DiscriminatorProfile: true,
}

// convertSlicing builds a Slicing record. path is the path of the sliced
// element.
func convertSlicing(ctx *Context, path string, src *fhirschema.SlicingDef) (*fhirschema.Slicing, error) {
	if !allowedSlicingRules[src.Rules] {
		return nil, fmt.Errorf("%w: %s: unknown rules %q", fhirschema.ErrInvalidSlicing, path, src.Rules)
	}

	if src.Rules == fhirschema.SlicingClosed && len(src.Discriminator) == 0 {
		return nil, fmt.Errorf("%w: %s: closed slicing with no discriminators", fhirschema.ErrInvalidSlicing, path)
	}
	if len(src.Discriminator) == 0 {
		ctx.Warn(path, "slicing has an empty discriminator list")
	}
	if src.Rules == fhirschema.SlicingOpenAtEnd && !src.Ordered {
		ctx.Warn(path, "openAtEnd slicing without ordered=true")
	}

	discriminators := make([]fhirschema.Discriminator, 0, len(src.Discriminator))
	for _, d := range src.Discriminator {
		if !allowedDiscriminatorTypes[d.Type] {
			return nil, fmt.Errorf("%w: %s: unknown discriminator type %q", fhirschema.ErrInvalidDiscriminator, path, d.Type)
		}
		if d.Path == "" {
			return nil, fmt.Errorf("%w: %s: discriminator has empty path", fhirschema.ErrInvalidDiscriminator, path)
		}
		discriminators = append(discriminators, fhirschema.Discriminator{Type: d.Type, Path: d.Path})
	}

	return &fhirschema.Slicing{
		Rules:         src.Rules,
		Ordered:       src.Ordered,
		Description:   src.Description,
		Discriminator: discriminators,
	}, nil
}
