package packagemanager

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// canonicalResolver adapts a CanonicalManager's Resolve method to
// converter.ProfileResolver, so Manager.Install can drive
// ConvertAsync against the same capability it downloads packages
// through.
type canonicalResolver struct {
	ctx context.Context
	cm  CanonicalManager
}

func newCanonicalResolver(ctx context.Context, cm CanonicalManager) *canonicalResolver {
	return &canonicalResolver{ctx: ctx, cm: cm}
}

// Resolve implements converter.ProfileResolver.
func (r *canonicalResolver) Resolve(url string) (*fhirschema.StructureDefinition, error) {
	envelope, err := r.cm.Resolve(r.ctx, url)
	if err != nil {
		return nil, fmt.Errorf("packagemanager: resolving %s: %w", url, err)
	}
	var sd fhirschema.StructureDefinition
	if err := json.Unmarshal(envelope.Content, &sd); err != nil {
		return nil, fmt.Errorf("packagemanager: decoding resolved %s: %w", url, err)
	}
	return &sd, nil
}
