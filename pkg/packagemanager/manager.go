package packagemanager

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/octofhir-go/fhirschema/pkg/cache"
	"github.com/octofhir-go/fhirschema/pkg/converter"
	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// Manager drives a CanonicalManager to install packages, converts each
// package's StructureDefinitions, and writes the results into a
// pkg/cache.Cache.
type Manager struct {
	cm          CanonicalManager
	cache       *cache.Cache
	cfg         *Config
	convertOpts []converter.Option
}

// New builds a Manager. cfg may be nil for DefaultConfig(). convertOpts
// are forwarded to every converter.Convert/ConvertAsync call the batch
// stage makes.
func New(cm CanonicalManager, c *cache.Cache, cfg *Config, convertOpts ...converter.Option) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Manager{cm: cm, cache: c, cfg: cfg, convertOpts: convertOpts}
}

// Install runs the install pipeline for each spec in order,
// producing one InstallReport covering all of them. A spec's failure
// does not abort the remaining specs; per-spec failures are recorded in
// the report's Failed list.
func (m *Manager) Install(ctx context.Context, specs []PackageSpec) (*InstallReport, error) {
	start := time.Now()
	report := &InstallReport{ConversionResults: make(map[string]ConversionResults)}

	for _, spec := range specs {
		key := spec.ID + "@" + spec.Version

		installed, err := m.alreadyInstalled(ctx, spec)
		if err != nil {
			report.Failed = append(report.Failed, FailedPackage{PackageID: key, Message: err.Error(), Category: CategoryNetwork})
			continue
		}
		if installed && !spec.Force {
			report.Skipped = append(report.Skipped, key)
			continue
		}

		record, convResults, err := m.installOne(ctx, spec)
		if err != nil {
			report.Failed = append(report.Failed, FailedPackage{PackageID: key, Message: err.Error(), Category: categorize(err)})
			if m.cfg.CleanupOnFailure {
				m.rollback(report.Installed)
				report.Installed = nil
			}
			continue
		}
		report.ConversionResults[key] = convResults
		report.Installed = append(report.Installed, *record)
	}

	report.Duration = time.Since(start)
	return report, nil
}

func (m *Manager) alreadyInstalled(ctx context.Context, spec PackageSpec) (bool, error) {
	installed, err := m.cm.ListPackages(ctx)
	if err != nil {
		return false, fmt.Errorf("packagemanager: listing installed packages: %w", err)
	}
	want := spec.ID + "@" + spec.Version
	for _, id := range installed {
		if id == want {
			return true, nil
		}
	}
	return false, nil
}

// installOne downloads, converts, stores, and records a single package.
func (m *Manager) installOne(ctx context.Context, spec PackageSpec) (*InstalledPackage, ConversionResults, error) {
	downloadCtx, cancel := context.WithTimeout(ctx, m.cfg.PackageTimeout)
	defer cancel()

	if err := m.cm.InstallPackage(downloadCtx, spec.ID, spec.Version); err != nil {
		if downloadCtx.Err() == context.DeadlineExceeded {
			return nil, ConversionResults{}, fmt.Errorf("%w: %s@%s", ErrTimeout, spec.ID, spec.Version)
		}
		return nil, ConversionResults{}, fmt.Errorf("packagemanager: installing %s@%s: %w", spec.ID, spec.Version, err)
	}

	results, err := m.cm.Search().ResourceType("StructureDefinition").Execute(ctx)
	if err != nil {
		return nil, ConversionResults{}, fmt.Errorf("packagemanager: enumerating %s@%s: %w", spec.ID, spec.Version, err)
	}

	sds := make([]*fhirschema.StructureDefinition, 0, len(results))
	var skipped int
	for _, r := range results {
		if isJSONSchemaDocument(r.Resource.Content) {
			skipped++
			continue
		}
		var sd fhirschema.StructureDefinition
		if err := json.Unmarshal(r.Resource.Content, &sd); err != nil {
			skipped++
			continue // element-extraction-failed
		}
		sds = append(sds, &sd)
	}

	schemas, convResults := m.convertBatch(ctx, spec, sds)
	convResults.Skipped += skipped
	convResults.TotalSD = len(results)

	urls := make([]string, 0, len(schemas))
	for url, schema := range schemas {
		if err := m.cache.Put(url, schema); err != nil {
			convResults.Failed = append(convResults.Failed, FailedConversion{URL: url, Message: err.Error()})
			continue
		}
		urls = append(urls, url)
	}
	sort.Strings(urls)

	checksum, err := m.checksum(schemas)
	if err != nil {
		return nil, convResults, fmt.Errorf("packagemanager: checksumming %s@%s: %w", spec.ID, spec.Version, err)
	}

	record := &InstalledPackage{
		ID:          spec.ID,
		Version:     spec.Version,
		InstallTime: time.Now(),
		FilePath:    spec.ID + "@" + spec.Version,
		Checksum:    checksum,
		SchemaURLs:  urls,
		Metadata:    map[string]string{},
	}
	return record, convResults, nil
}

// convertBatch converts the package's StructureDefinitions, sequential below
// cfg.ParallelThreshold, parallel at or above it, using ConvertAsync so
// profile references resolve through the same canonical manager.
func (m *Manager) convertBatch(ctx context.Context, spec PackageSpec, sds []*fhirschema.StructureDefinition) (map[string]*fhirschema.FhirSchema, ConversionResults) {
	resolver := newCanonicalResolver(ctx, m.cm)
	results := ConversionResults{}
	durations := make([]time.Duration, 0, len(sds))
	out := make(map[string]*fhirschema.FhirSchema, len(sds))

	convertOne := func(sd *fhirschema.StructureDefinition) (*fhirschema.FhirSchema, time.Duration, error) {
		t0 := time.Now()
		schema, _, err := converter.ConvertAsync(sd, resolver, m.convertOpts...)
		return schema, time.Since(t0), err
	}

	if len(sds) < m.cfg.ParallelThreshold {
		for _, sd := range sds {
			schema, d, err := convertOne(sd)
			durations = append(durations, d)
			if err != nil {
				results.Failed = append(results.Failed, FailedConversion{URL: sd.URL, Name: sd.Name, Message: err.Error()})
				continue
			}
			out[schemaKey(schema)] = schema
			results.Converted++
		}
	} else {
		var mu sync.Mutex
		var wg sync.WaitGroup
		workers := runtime.NumCPU()
		if workers < 1 {
			workers = 1
		}
		sem := make(chan struct{}, workers)
		for _, sd := range sds {
			sd := sd
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				schema, d, err := convertOne(sd)
				mu.Lock()
				defer mu.Unlock()
				durations = append(durations, d)
				if err != nil {
					results.Failed = append(results.Failed, FailedConversion{URL: sd.URL, Name: sd.Name, Message: err.Error()})
					return
				}
				out[schemaKey(schema)] = schema
				results.Converted++
			}()
		}
		wg.Wait()
	}

	results.Duration = sumDurations(durations)
	results.PerfStats = computePerfStats(durations)
	return out, results
}

func schemaKey(schema *fhirschema.FhirSchema) string {
	if schema.URL != "" {
		return schema.URL
	}
	return "urn:fhirschema:name:" + schema.Name
}

func sumDurations(ds []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total
}

func computePerfStats(ds []time.Duration) PerfStats {
	if len(ds) == 0 {
		return PerfStats{}
	}
	var total, max, min time.Duration
	min = ds[0]
	for _, d := range ds {
		total += d
		if d > max {
			max = d
		}
		if d < min {
			min = d
		}
	}
	avg := total / time.Duration(len(ds))
	return PerfStats{
		AvgMS: msOf(avg),
		MaxMS: msOf(max),
		MinMS: msOf(min),
	}
}

func msOf(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// isJSONSchemaDocument filters JSON-Schema documents out of a package: a
// positive resourceType check is tried first; the $schema/id substring
// heuristic is only a fallback for documents that omit resourceType.
func isJSONSchemaDocument(content json.RawMessage) bool {
	var probe struct {
		ResourceType string `json:"resourceType"`
		Schema       string `json:"$schema"`
		ID           string `json:"id"`
	}
	if err := json.Unmarshal(content, &probe); err != nil {
		return false
	}
	if probe.ResourceType == "StructureDefinition" {
		return false
	}
	if probe.ResourceType != "" {
		return true
	}
	return strings.Contains(probe.Schema, "json-schema.org") || strings.Contains(probe.ID, "json-schema")
}

// checksum is SHA-256 over the URL-sorted
// serialized schemas, the same deterministic shape storage.Fingerprint
// uses.
func (m *Manager) checksum(schemas map[string]*fhirschema.FhirSchema) (string, error) {
	urls := make([]string, 0, len(schemas))
	for u := range schemas {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	h := sha256.New()
	for _, u := range urls {
		data, err := json.Marshal(schemas[u])
		if err != nil {
			return "", err
		}
		h.Write([]byte(u))
		h.Write([]byte{0})
		h.Write(data)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// rollback uninstalls already-installed packages in reverse order by
// evicting their schemas from the cache.
func (m *Manager) rollback(installed []InstalledPackage) {
	for i := len(installed) - 1; i >= 0; i-- {
		for _, url := range installed[i].SchemaURLs {
			m.cache.InvalidateSync(url, cache.Immediate)
		}
	}
}

// categorize maps an install error to a FailureCategory.
func categorize(err error) FailureCategory {
	switch {
	case err == nil:
		return ""
	case err.Error() != "" && containsAny(err.Error(), "timed out", "deadline"):
		return CategoryNetwork
	case containsAny(err.Error(), "enumerating"):
		return CategoryParsing
	case containsAny(err.Error(), "checksumming"):
		return CategoryStorage
	case containsAny(err.Error(), "installing"):
		return CategoryDownload
	default:
		return CategoryConversion
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
