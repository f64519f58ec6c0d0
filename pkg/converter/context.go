package converter

import (
	"time"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Severity classifies a non-fatal anomaly recorded during conversion.
type Severity string

const (
	SeverityInfo    Severity = "information"
	SeverityWarning Severity = "warning"
)

// Anomaly is a single non-fatal conversion note.
type Anomaly struct {
	Severity Severity
	Path     string
	Message  string
}

// ChoiceExpansion records, for traceability, a single `[x]` element and
// the concrete paths it expanded into.
type ChoiceExpansion struct {
	BasePath      string
	ExpandedPaths []string
}

// Stats is the per-run statistics record produced alongside a FhirSchema.
type Stats struct {
	ElementsIn       int
	ElementsOut      int
	ChoiceExpansions int
	ConstraintsIn    int
	ConstraintsOut   int
	SlicesBuilt      int
	Duration         time.Duration
}

// ProfileResolver is the capability ConvertAsync uses to dereference
// external profile URLs.
type ProfileResolver interface {
	Resolve(url string) (*fhirschema.StructureDefinition, error)
}

// Context is the shared mutable state threaded through a single
// conversion run.
//
// A Context is not safe for concurrent use; one is created per call to
// Convert/ConvertAsync.
type Context struct {
	Config *Config

	Errors   []error
	Warnings []Anomaly

	// Processed records the set of source element paths that have been
	// consumed, including the base path of any `[x]` element.
	Processed map[string]bool

	Expansions []ChoiceExpansion

	// Resolver and ResolvedProfiles back the async profile-resolution
	// stage; when Config.CacheResults is set, ResolvedProfiles memoizes
	// successful lookups for the duration of the run and a URL already
	// in it is not resolved again. Resolved profiles are not themselves
	// searched for further profile references.
	Resolver         ProfileResolver
	ResolvedProfiles map[string]*fhirschema.StructureDefinition

	Stats Stats

	startedAt time.Time
}

// NewContext creates a Context ready for a single conversion run.
func NewContext(cfg *Config, resolver ProfileResolver) *Context {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Context{
		Config:           cfg,
		Processed:        make(map[string]bool),
		Resolver:         resolver,
		ResolvedProfiles: make(map[string]*fhirschema.StructureDefinition),
		startedAt:        time.Now(),
	}
}

// Fatal appends a fatal error. The pipeline checks Errors after each
// stage and aborts the run as soon as one is present.
func (c *Context) Fatal(err error) {
	c.Errors = append(c.Errors, err)
}

// Failed reports whether a fatal error has been recorded.
func (c *Context) Failed() bool {
	return len(c.Errors) > 0
}

// Warn records a non-fatal anomaly.
func (c *Context) Warn(path, message string) {
	c.Warnings = append(c.Warnings, Anomaly{Severity: SeverityWarning, Path: path, Message: message})
}

// Info records an informational anomaly.
func (c *Context) Info(path, message string) {
	c.Warnings = append(c.Warnings, Anomaly{Severity: SeverityInfo, Path: path, Message: message})
}

// MarkProcessed records a source path as consumed.
func (c *Context) MarkProcessed(path string) {
	c.Processed[path] = true
}

// RecordExpansion records a choice-type expansion for traceability.
func (c *Context) RecordExpansion(base string, expanded []string) {
	c.Expansions = append(c.Expansions, ChoiceExpansion{BasePath: base, ExpandedPaths: expanded})
	c.Stats.ChoiceExpansions++
}

// Finish stamps the elapsed duration into Stats. Called once at the end
// of the pipeline regardless of success.
func (c *Context) Finish() {
	c.Stats.Duration = time.Since(c.startedAt)
}
