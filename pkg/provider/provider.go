package provider

import (
	"net/url"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Provider is the model provider: a read-only snapshot of every
// known schema, indexed by canonical URL and by name.
type Provider struct {
	byURL  map[string]*fhirschema.FhirSchema
	byName map[string]*fhirschema.FhirSchema
}

// New builds a Provider by pulling every schema out of store. The
// snapshot is immutable thereafter; build a new Provider to observe
// later writes.
func New(store SchemaStore) (*Provider, error) {
	urls, err := store.List()
	if err != nil {
		return nil, err
	}
	p := &Provider{
		byURL:  make(map[string]*fhirschema.FhirSchema, len(urls)),
		byName: make(map[string]*fhirschema.FhirSchema, len(urls)),
	}
	for _, u := range urls {
		schema, err := store.Get(u)
		if err != nil {
			continue
		}
		p.byURL[u] = schema
		if schema.Name != "" {
			p.byName[schema.Name] = schema
		}
	}
	return p, nil
}

// GetType resolves a type name to its reflection record: direct schema lookup by name, then
// URL reverse index, then the FHIR-primitive map, then FHIRPath-name
// pass-through.
func (p *Provider) GetType(name string) *TypeInfo {
	if schema, ok := p.byName[name]; ok {
		return &TypeInfo{TypeName: schema.Name, Name: schema.Name, Namespace: NamespaceFHIR, IsSingleton: true}
	}
	if schema, ok := p.byURL[name]; ok {
		return &TypeInfo{TypeName: schema.Name, Name: schema.Name, Namespace: NamespaceFHIR, IsSingleton: true}
	}
	if fp, ok := fhirToFHIRPathPrimitive[name]; ok {
		return &TypeInfo{TypeName: fp, Name: fp, Namespace: NamespaceSystem, IsSingleton: true}
	}
	if fhirPathSystemTypes[name] {
		return &TypeInfo{TypeName: name, Name: name, Namespace: NamespaceSystem, IsSingleton: true}
	}
	return nil
}

// elementsAt walks parentName - a simple type name or a dotted backbone
// path like "Task.input" - down to the element map that should be
// searched, the traversal shared by GetElementType,
// GetElementNames, and the backbone convenience wrappers.
func (p *Provider) elementsAt(parentName string) (map[string]*fhirschema.Element, bool) {
	segs := strings.Split(parentName, ".")
	schema, ok := p.byName[segs[0]]
	if !ok {
		return nil, false
	}
	container := schema.Elements
	for _, seg := range segs[1:] {
		el, ok := container[seg]
		if !ok || el.Elements == nil {
			return nil, false
		}
		container = el.Elements
	}
	return container, true
}

// GetElementType returns the type of property under parent.
func (p *Provider) GetElementType(parent TypeInfo, property string) *TypeInfo {
	container, ok := p.elementsAt(parent.Name)
	if !ok {
		return nil
	}

	if el, ok := container[property]; ok {
		if el.IsBackbone() {
			return &TypeInfo{
				Name:        parent.Name + "." + property,
				TypeName:    "BackboneElement",
				Namespace:   NamespaceFHIR,
				IsSingleton: elementIsSingleton(el),
			}
		}
		code := el.SingleType()
		if code == "" && len(el.Type) > 0 {
			code = el.Type[0].Code
		}
		info := p.GetType(code)
		if info == nil {
			return nil
		}
		singleton := elementIsSingleton(el)
		return &TypeInfo{TypeName: info.TypeName, Name: info.Name, Namespace: info.Namespace, IsSingleton: singleton}
	}

	// No direct match: scan choice-element base keys.
	for key, el := range container {
		if !strings.HasSuffix(key, "[x]") {
			continue
		}
		base := strings.TrimSuffix(key, "[x]")
		if !strings.HasPrefix(property, base) {
			continue
		}
		suffix := property[len(base):]
		for _, t := range el.Type {
			if capitalize(t.Code) == suffix {
				info := p.GetType(t.Code)
				if info == nil {
					return nil
				}
				ns := NamespaceFHIR
				if t.Code != "" && t.Code[0] >= 'a' && t.Code[0] <= 'z' {
					ns = NamespaceSystem
				}
				return &TypeInfo{TypeName: info.TypeName, Name: info.Name, Namespace: ns, IsSingleton: elementIsSingleton(el)}
			}
		}
	}
	return nil
}

// ElementCardinality returns the declared min/max of property within
// parentName (a simple type name or a dotted backbone path), resolving
// through a choice-element base key when there is no direct match. It
// backs PathResolver's per-segment cardinality lookups.
func (p *Provider) ElementCardinality(parentName, property string) (min int, max string, ok bool) {
	container, found := p.elementsAt(parentName)
	if !found {
		return 0, "", false
	}
	if el, found := container[property]; found {
		return el.Min, el.Max, true
	}
	for key, el := range container {
		if !strings.HasSuffix(key, "[x]") {
			continue
		}
		base := strings.TrimSuffix(key, "[x]")
		if strings.HasPrefix(property, base) {
			return el.Min, el.Max, true
		}
	}
	return 0, "", false
}

// GetElementNames lists the element names visible at parent.
func (p *Provider) GetElementNames(parent TypeInfo) []string {
	container, ok := p.elementsAt(parent.Name)
	if !ok {
		return nil
	}
	names := maps.Keys(container)
	slices.Sort(names)
	return names
}

// GetElements walks the inheritance chain
// via each schema's Base URL, accumulating elements with children
// overriding (i.e. winning over) parents.
func (p *Provider) GetElements(typeName string) []ElementInfo {
	result := make(map[string]ElementInfo)
	visited := make(map[string]bool)
	cur := typeName
	inherited := false

	for cur != "" && !visited[cur] {
		visited[cur] = true
		schema, ok := p.byName[cur]
		if !ok {
			break
		}
		for name, el := range schema.Elements {
			if _, exists := result[name]; exists {
				continue
			}
			tn := el.SingleType()
			if el.IsBackbone() {
				tn = "BackboneElement"
			}
			result[name] = ElementInfo{Name: name, Path: el.Path, TypeName: tn, Min: el.Min, Max: el.Max, Inherited: inherited}
		}
		cur = lastURLSegment(schema.Base)
		inherited = true
	}

	out := maps.Values(result)
	slices.SortFunc(out, func(a, b ElementInfo) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// OfType tests subtype membership: direct match on either TypeName or
// Name, otherwise a recursive walk up the Base chain from the declared
// Name, then from TypeName.
func (p *Provider) OfType(info TypeInfo, target string) *TypeInfo {
	if info.TypeName == target || info.Name == target {
		return &info
	}
	if p.isDescendantOf(info.Name, target) || p.isDescendantOf(info.TypeName, target) {
		return &info
	}
	return nil
}

func (p *Provider) isDescendantOf(name, target string) bool {
	cur := name
	visited := make(map[string]bool)
	for cur != "" && !visited[cur] {
		visited[cur] = true
		schema, ok := p.byName[cur]
		if !ok {
			return false
		}
		base := lastURLSegment(schema.Base)
		if base == target {
			return true
		}
		cur = base
	}
	return false
}

// GetResourceTypes, GetComplexTypes, and GetPrimitiveTypes filter the
// schema set by kind. Primitives-that-are-complex (Quantity,
// Money...) carry Kind == "complex-type" and are naturally excluded
// from GetPrimitiveTypes even though they appear in the primitive map.
func (p *Provider) GetResourceTypes() []string { return p.namesByKind("resource") }
func (p *Provider) GetComplexTypes() []string  { return p.namesByKind("complex-type") }
func (p *Provider) GetPrimitiveTypes() []string { return p.namesByKind("primitive-type") }

func (p *Provider) namesByKind(kind string) []string {
	var out []string
	for name, schema := range p.byName {
		if schema.Kind == kind {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// GetBackboneElementChildren is a convenience wrapper over
// GetElementNames for the backbone path "parentType.elementPath".
func (p *Provider) GetBackboneElementChildren(parentType, elementPath string) []string {
	return p.GetElementNames(TypeInfo{Name: joinBackbonePath(parentType, elementPath)})
}

// IsBackboneElement reports whether parentType.elementPath names a
// backbone element (has nested children).
func (p *Provider) IsBackboneElement(parentType, elementPath string) bool {
	_, ok := p.elementsAt(joinBackbonePath(parentType, elementPath))
	return ok
}

func joinBackbonePath(parentType, elementPath string) string {
	if elementPath == "" {
		return parentType
	}
	return parentType + "." + elementPath
}

// elementIsSingleton reports whether el's cardinality admits at most
// one value.
func elementIsSingleton(el *fhirschema.Element) bool {
	if el.Unbounded() {
		return false
	}
	if el.Max == "" {
		return true
	}
	return el.Max == "0" || el.Max == "1"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// lastURLSegment extracts the trailing path segment of a canonical URL,
// used to turn a Base URL into the schema name it refers to.
func lastURLSegment(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	path := u.Path
	if path == "" {
		path = raw
	}
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
