package converter

import (
	"fmt"
	"strings"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Convert runs the synchronous pipeline. Profile
// resolution is skipped even if cfg.ResolveProfiles is set, since there
// is no resolver to consult; use ConvertAsync for that stage.
func Convert(sd *fhirschema.StructureDefinition, opts ...Option) (*fhirschema.FhirSchema, *Context, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	ctx := NewContext(cfg, nil)
	schema, err := run(ctx, sd)
	return schema, ctx, err
}

// ConvertAsync runs the pipeline with the profile-resolution stage
// enabled. resolver may be nil, in which case resolution is
// skipped even if cfg.ResolveProfiles is set.
func ConvertAsync(sd *fhirschema.StructureDefinition, resolver ProfileResolver, opts ...Option) (*fhirschema.FhirSchema, *Context, error) {
	cfg := DefaultConfig()
	cfg.ResolveProfiles = resolver != nil
	for _, opt := range opts {
		opt(cfg)
	}
	ctx := NewContext(cfg, resolver)
	schema, err := run(ctx, sd)
	return schema, ctx, err
}

// run implements the five pipeline stages against ctx,
// returning the first fatal error encountered, if any.
func run(ctx *Context, sd *fhirschema.StructureDefinition) (*fhirschema.FhirSchema, error) {
	defer ctx.Finish()

	elements, err := sd.Elements()
	if err != nil {
		ctx.Fatal(err)
		return nil, err
	}
	ctx.Stats.ElementsIn = len(elements)

	// Stage 1: header & classification.
	schema := fhirschema.NewSchema()
	schema.Name = sd.Name
	schema.URL = sd.URL
	schema.Version = sd.Version
	schema.Title = sd.Title
	schema.Description = sd.Description
	schema.Status = sd.Status
	schema.Kind = sd.Kind
	schema.Abstract = sd.Abstract
	schema.Derivation = sd.Derivation
	schema.Base = sd.BaseDefinition
	schema.Class = fhirschema.DeriveClass(sd.Kind, sd.Derivation, sd.Type)

	if sd.Derivation == "constraint" && sd.BaseDefinition == "" {
		err := fmt.Errorf("%w: %s", fhirschema.ErrBadDerivation, sd.Type)
		ctx.Fatal(err)
		return nil, err
	}

	// Stage 2: element conversion.
	rootPrefix := sd.Type + "."
	for _, src := range elements {
		if src.Path == sd.Type {
			// The root element itself; its constraints are handled in
			// stage 3 below, it contributes no Element entry.
			ctx.MarkProcessed(src.Path)
			continue
		}
		outs, err := convertElement(ctx, src)
		if err != nil {
			ctx.Fatal(err)
			return nil, err
		}

		relPath := strings.TrimPrefix(src.Path, rootPrefix)
		parentSegs := splitParent(relPath)
		container := ensureContainer(schema, parentSegs)

		for _, el := range outs {
			key := lastSegment(el.Path)
			container[key] = el
			ctx.Stats.ElementsOut++
		}
	}

	// Stage 3: constraint processing. Root-element constraints
	// become schema-level; all others attach to the element already
	// placed in stage 2.
	for _, src := range elements {
		if !ctx.Config.ProcessConstraints || len(src.Constraint) == 0 {
			continue
		}
		ctx.Stats.ConstraintsIn += len(src.Constraint)

		if src.Path == sd.Type {
			for _, c := range src.Constraint {
				out, err := convertConstraint(ctx, src.Path, c)
				if err != nil {
					ctx.Fatal(err)
					return nil, err
				}
				schema.Constraints = append(schema.Constraints, *out)
				ctx.Stats.ConstraintsOut++
			}
			continue
		}

		target := findConvertedElement(schema, rootPrefix, src.Path)
		if target == nil {
			continue // element itself failed validation upstream; skip
		}
		for _, c := range src.Constraint {
			out, err := convertConstraint(ctx, src.Path, c)
			if err != nil {
				ctx.Fatal(err)
				return nil, err
			}
			target.Constraints = append(target.Constraints, *out)
			ctx.Stats.ConstraintsOut++
		}
	}

	// Stage 4: slicing processing.
	if ctx.Config.IncludeSlicing {
		for _, src := range elements {
			if src.Slicing == nil {
				continue
			}
			slicing, err := convertSlicing(ctx, src.Path, src.Slicing)
			if err != nil {
				ctx.Fatal(err)
				return nil, err
			}
			schema.Slicing[src.Path] = slicing
			ctx.Stats.SlicesBuilt++
		}
	}

	// Stage 4b: async profile resolution, only when enabled and
	// a resolver was supplied.
	if ctx.Config.ResolveProfiles && ctx.Resolver != nil {
		resolveProfiles(ctx, elements)
	}

	return schema, nil
}

// splitParent returns the segment chain identifying the element's
// parent container (all but the last path component).
func splitParent(relPath string) []string {
	segs := strings.Split(relPath, ".")
	if len(segs) <= 1 {
		return nil
	}
	return segs[:len(segs)-1]
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "."); i >= 0 {
		return path[i+1:]
	}
	return path
}

// ensureContainer walks (creating as needed) the chain of backbone
// elements named by segs and returns the map into which a leaf element
// at that position should be inserted. An empty segs returns the
// schema's top-level element map.
func ensureContainer(schema *fhirschema.FhirSchema, segs []string) map[string]*fhirschema.Element {
	if len(segs) == 0 {
		return schema.Elements
	}
	container := schema.Elements
	path := ""
	for _, seg := range segs {
		if path == "" {
			path = seg
		} else {
			path = path + "." + seg
		}
		el, ok := container[seg]
		if !ok {
			el = fhirschema.NewElement(path)
			el.Elements = make(map[string]*fhirschema.Element)
			container[seg] = el
		} else if el.Elements == nil {
			el.Elements = make(map[string]*fhirschema.Element)
		}
		container = el.Elements
	}
	return container
}

// findConvertedElement looks up the element previously placed for
// source path srcPath (relative to rootPrefix) by walking the same
// segment chain ensureContainer used to place it. When choice expansion
// ran, nothing is stored under an "[x]" key, so an "[x]" srcPath returns
// nil here and its constraints are attached in choice.go at expansion
// time instead; with expansion disabled the element keeps its "[x]" key
// and is found like any other.
func findConvertedElement(schema *fhirschema.FhirSchema, rootPrefix, srcPath string) *fhirschema.Element {
	relPath := strings.TrimPrefix(srcPath, rootPrefix)
	segs := strings.Split(relPath, ".")
	container := schema.Elements
	var el *fhirschema.Element
	for i, seg := range segs {
		candidate, ok := container[seg]
		if !ok {
			return nil
		}
		el = candidate
		if i < len(segs)-1 {
			container = el.Elements
			if container == nil {
				return nil
			}
		}
	}
	return el
}
