package converter

// Config controls which optional pipeline stages run.
type Config struct {
	// ExpandChoiceTypes expands `value[x]`-style elements into one
	// concrete element per admissible type. Enabled by default.
	ExpandChoiceTypes bool

	// IncludeSlicing builds Slicing records for sliced elements.
	// Enabled by default.
	IncludeSlicing bool

	// ProcessConstraints converts constraint entries into schema- and
	// element-level Constraint records. Enabled by default.
	ProcessConstraints bool

	// ResolveProfiles enables the async profile-resolution stage.
	// Only consulted by ConvertAsync.
	ResolveProfiles bool

	// CacheResults memoizes resolver lookups for the duration of a run.
	// Has no effect unless ResolveProfiles is set.
	CacheResults bool
}

// DefaultConfig returns the configuration used when Convert is called
// without options: every stage enabled except profile resolution, which
// requires a resolver capability the synchronous path does not have.
func DefaultConfig() *Config {
	return &Config{
		ExpandChoiceTypes:  true,
		IncludeSlicing:     true,
		ProcessConstraints: true,
		ResolveProfiles:    false,
		CacheResults:       true,
	}
}

// Option is a functional option for Config.
type Option func(*Config)

// WithExpandChoiceTypes toggles choice-type expansion.
func WithExpandChoiceTypes(enabled bool) Option {
	return func(c *Config) { c.ExpandChoiceTypes = enabled }
}

// WithIncludeSlicing toggles slicing-record construction.
func WithIncludeSlicing(enabled bool) Option {
	return func(c *Config) { c.IncludeSlicing = enabled }
}

// WithProcessConstraints toggles constraint conversion.
func WithProcessConstraints(enabled bool) Option {
	return func(c *Config) { c.ProcessConstraints = enabled }
}

// WithResolveProfiles toggles async profile resolution. Only consulted
// by ConvertAsync.
func WithResolveProfiles(enabled bool) Option {
	return func(c *Config) { c.ResolveProfiles = enabled }
}

// WithCacheResults toggles resolver-result memoization.
func WithCacheResults(enabled bool) Option {
	return func(c *Config) { c.CacheResults = enabled }
}
