package converter

import "github.com/octofhir-go/fhirschema/pkg/fhirschema"

// resolveProfiles consults the resolver for every type.profile[] reference
// on every element, memoizing the results.
// Resolution failures are warnings, never fatal - the profile pointer
// itself is preserved on the element regardless of outcome.
func resolveProfiles(ctx *Context, elements []fhirschema.ElementDefinition) {
	for _, src := range elements {
		for _, t := range src.Type {
			for _, url := range t.Profile {
				resolveOne(ctx, src.Path, url)
			}
			for _, url := range t.TargetProfile {
				resolveOne(ctx, src.Path, url)
			}
		}
	}
}

func resolveOne(ctx *Context, path, url string) {
	if url == "" {
		return
	}
	if _, seen := ctx.ResolvedProfiles[url]; seen {
		return
	}
	resolved, err := ctx.Resolver.Resolve(url)
	if err != nil {
		ctx.Warn(path, "profile resolution failed for "+url+": "+err.Error())
		return
	}
	if resolved == nil {
		ctx.Warn(path, "profile not found: "+url)
		return
	}
	if ctx.Config.CacheResults {
		ctx.ResolvedProfiles[url] = resolved
	}
}
