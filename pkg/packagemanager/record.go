package packagemanager

import "time"

// InstalledPackage is the package record built on a successful install.
type InstalledPackage struct {
	ID             string
	Version        string
	InstallTime    time.Time
	FilePath       string
	Checksum       string
	SchemaURLs     []string
	DependencyIDs  []string
	Metadata       map[string]string
}
