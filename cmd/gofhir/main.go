package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/octofhir-go/fhirschema/pkg/cache"
	"github.com/octofhir-go/fhirschema/pkg/converter"
	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
	"github.com/octofhir-go/fhirschema/pkg/packagemanager"
	"github.com/octofhir-go/fhirschema/pkg/schemavalidator"
	"github.com/octofhir-go/fhirschema/pkg/storage"
)

var version = "dev"

func main() {
	if err := execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func execute() error {
	rootCmd := newRootCmd()
	return rootCmd.Execute()
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gofhir",
		Short: "GoFHIR - FHIR schema toolkit for Go",
		Long: `GoFHIR converts FHIR StructureDefinitions into compact, query-optimized
FhirSchemas, stores and caches them, and answers type-reflection queries
over the result.

It provides:
  - StructureDefinition to FhirSchema conversion
  - A hierarchical schema cache backed by in-memory or on-disk storage
  - Structural resource validation with pluggable constraint evaluation

For more information, visit: https://github.com/octofhir-go/fhirschema`,
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newSchemaCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newInstallCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("gofhir version %s\n", version)
		},
	}
}

func newValidateCmd() *cobra.Command {
	var schemaPath string
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate a FHIR resource",
		Long: `Validate a FHIR resource against a StructureDefinition.

The StructureDefinition is converted to a FhirSchema first, then the
resource is checked structurally (cardinality, types, fixed/pattern).
Simple constraints are checked by the built-in recognizer; complex
FHIRPath constraints need an external evaluator and are reported as
warnings here.

Examples:
  gofhir validate --schema patient-sd.json patient.json
  gofhir validate --schema us-core-patient.json patient.json --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if schemaPath == "" {
				return fmt.Errorf("--schema is required")
			}
			schema, err := convertFile(schemaPath)
			if err != nil {
				return err
			}
			resource, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file %s: %w", args[0], err)
			}

			result := schemavalidator.New(nil).Validate(schema, resource)

			if outputFormat == "json" {
				return printJSON(result.Issues)
			}
			for _, issue := range result.Issues {
				fmt.Printf("%s [%s] %s: %s\n", issue.Severity, issue.Code, issue.Path, issue.Message)
			}
			if result.Valid() {
				fmt.Println("valid")
				return nil
			}
			return fmt.Errorf("%d error(s)", result.CountsBySeverity[fhirschema.SeverityError])
		},
	}

	cmd.Flags().StringVar(&schemaPath, "schema", "", "Path to the StructureDefinition to validate against")
	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json)")

	return cmd
}

func newSchemaCmd() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "schema [structuredefinition.json]",
		Short: "Convert a StructureDefinition to a FhirSchema",
		Long: `Convert a StructureDefinition file to its FhirSchema form and print
the result as JSON.

Examples:
  gofhir schema patient-sd.json
  gofhir schema observation-sd.json -o observation.schema.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			schema, err := convertFile(args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(schema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			if outFile != "" {
				return os.WriteFile(outFile, append(data, '\n'), 0o644)
			}
			fmt.Println(string(data))
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "output", "o", "", "Write the schema to a file instead of stdout")

	return cmd
}

func convertFile(path string) (*fhirschema.FhirSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	var sd fhirschema.StructureDefinition
	if err := json.Unmarshal(data, &sd); err != nil {
		return nil, fmt.Errorf("failed to parse StructureDefinition %s: %w", path, err)
	}
	schema, _, err := converter.Convert(&sd)
	if err != nil {
		return nil, fmt.Errorf("conversion failed for %s: %w", path, err)
	}
	return schema, nil
}

func newCacheCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "cache [list|clear]",
		Short: "Inspect or clear an on-disk schema cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			backend, err := storage.NewDiskBackend(storage.DefaultDiskStorageConfig(dir))
			if err != nil {
				return fmt.Errorf("failed to open cache directory %s: %w", dir, err)
			}
			defer backend.Close()

			switch args[0] {
			case "list":
				urls, err := backend.List()
				if err != nil {
					return err
				}
				for _, u := range urls {
					fmt.Println(u)
				}
				fmt.Printf("%d schema(s)\n", len(urls))
				return nil
			case "clear":
				return backend.Clear()
			default:
				return fmt.Errorf("unknown cache action %q (want list or clear)", args[0])
			}
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".gofhir-cache", "Cache directory")

	return cmd
}

func newInstallCmd() *cobra.Command {
	var pkgDir string
	var cacheDir string
	var force bool

	cmd := &cobra.Command{
		Use:   "install [id@version...]",
		Short: "Convert a local FHIR package into an on-disk schema cache",
		Long: `Install packages through the package manager, converting every
StructureDefinition and writing the resulting schemas to an on-disk
cache. Packages are read from a local directory of StructureDefinition
JSON files; downloading from a registry is out of scope and delegated
to an external canonical package manager.

Examples:
  gofhir install hl7.fhir.r4.core@4.0.1 --packages ./specs/r4 --cache-dir ./.gofhir-cache`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs := make([]packagemanager.PackageSpec, 0, len(args))
			for _, arg := range args {
				id, ver, ok := strings.Cut(arg, "@")
				if !ok {
					return fmt.Errorf("package %q is not in id@version form", arg)
				}
				specs = append(specs, packagemanager.PackageSpec{ID: id, Version: ver, Force: force})
			}

			backend, err := storage.NewDiskBackend(storage.DefaultDiskStorageConfig(cacheDir))
			if err != nil {
				return fmt.Errorf("failed to open cache directory %s: %w", cacheDir, err)
			}
			defer backend.Close()

			schemaCache := cache.New(backend, nil)
			defer schemaCache.Close()

			manager := packagemanager.New(newDirManager(pkgDir), schemaCache, nil)
			report, err := manager.Install(cmd.Context(), specs)
			if err != nil {
				return err
			}

			for _, pkg := range report.Installed {
				fmt.Printf("installed %s@%s: %d schema(s)\n", pkg.ID, pkg.Version, len(pkg.SchemaURLs))
			}
			for _, key := range report.Skipped {
				fmt.Printf("skipped %s (already installed)\n", key)
			}
			for _, failure := range report.Failed {
				fmt.Fprintf(os.Stderr, "failed %s [%s]: %s\n", failure.PackageID, failure.Category, failure.Message)
			}
			if len(report.Failed) > 0 {
				return fmt.Errorf("%d package(s) failed", len(report.Failed))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pkgDir, "packages", "./specs", "Directory holding the package's StructureDefinition JSON files")
	cmd.Flags().StringVar(&cacheDir, "cache-dir", ".gofhir-cache", "Cache directory to write schemas into")
	cmd.Flags().BoolVar(&force, "force", false, "Reinstall even if the package is already present")

	return cmd
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// dirManager is a packagemanager.CanonicalManager over a local directory
// of StructureDefinition JSON files. It stands in for a real canonical
// package manager when working offline; InstallPackage only checks that
// the directory exists, and Search enumerates its *.json files.
type dirManager struct {
	dir string
}

func newDirManager(dir string) *dirManager {
	return &dirManager{dir: dir}
}

func (m *dirManager) ListPackages(context.Context) ([]string, error) {
	return nil, nil
}

func (m *dirManager) InstallPackage(_ context.Context, id, ver string) error {
	info, err := os.Stat(m.dir)
	if err != nil {
		return fmt.Errorf("package directory for %s@%s: %w", id, ver, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("package path %s for %s@%s is not a directory", m.dir, id, ver)
	}
	return nil
}

func (m *dirManager) Search() packagemanager.SearchBuilder {
	return &dirSearch{dir: m.dir}
}

func (m *dirManager) Resolve(_ context.Context, url string) (packagemanager.ResourceEnvelope, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return packagemanager.ResourceEnvelope{}, err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, entry.Name()))
		if err != nil {
			continue
		}
		var header struct {
			URL string `json:"url"`
		}
		if json.Unmarshal(data, &header) == nil && header.URL == url {
			return packagemanager.ResourceEnvelope{Content: data}, nil
		}
	}
	return packagemanager.ResourceEnvelope{}, fmt.Errorf("canonical %s not found under %s", url, m.dir)
}

type dirSearch struct {
	dir          string
	resourceType string
}

func (s *dirSearch) ResourceType(t string) packagemanager.SearchBuilder {
	s.resourceType = t
	return s
}

func (s *dirSearch) Execute(context.Context) ([]packagemanager.SearchResult, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var results []packagemanager.SearchResult
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		var header struct {
			ResourceType string `json:"resourceType"`
			URL          string `json:"url"`
		}
		if json.Unmarshal(data, &header) != nil {
			continue
		}
		if s.resourceType != "" && header.ResourceType != s.resourceType {
			continue
		}
		results = append(results, packagemanager.SearchResult{
			Resource: packagemanager.ResourceEnvelope{Content: data},
			Index:    packagemanager.IndexInfo{CanonicalURL: header.URL},
		})
	}
	return results, nil
}
