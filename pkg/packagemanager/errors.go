package packagemanager

import "errors"

// FailureCategory classifies why a single package install failed.
type FailureCategory string

const (
	CategoryDownload    FailureCategory = "Download"
	CategoryParsing     FailureCategory = "Parsing"
	CategoryConversion  FailureCategory = "Conversion"
	CategoryStorage     FailureCategory = "Storage"
	CategoryDependency  FailureCategory = "Dependency"
	CategoryValidation  FailureCategory = "Validation"
	CategoryNetwork     FailureCategory = "Network"
)

// ErrTimeout is returned when a package's install exceeds its
// per-package timeout.
var ErrTimeout = errors.New("packagemanager: package install timed out")
