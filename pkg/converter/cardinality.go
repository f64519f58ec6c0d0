package converter

import (
	"fmt"
	"strconv"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// checkCardinality treats min > max as fatal when max is
// numeric; max == "*" is unbounded; max == "0" excludes the element.
func checkCardinality(src fhirschema.ElementDefinition) error {
	if src.Min == nil || src.Max == "" || src.Max == "*" {
		return nil
	}
	max, err := strconv.Atoi(src.Max)
	if err != nil {
		// Non-numeric, non-"*" max is nonsensical but not itself
		// fatal here; leave it for the validator to
		// reject at use time.
		return nil
	}
	if src.MinValue() > max {
		return fmt.Errorf("%w: %s (min=%d, max=%s)", fhirschema.ErrInvalidCardinality, src.Path, src.MinValue(), src.Max)
	}
	return nil
}
