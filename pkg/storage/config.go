package storage

// SerializationMode selects how DiskBackend encodes a schema on disk.
type SerializationMode int

const (
	// SerializationJSON writes human-readable, indented JSON with a
	// ".json" extension.
	SerializationJSON SerializationMode = iota
	// SerializationCompact writes a zstd-compressed, length-prefixed
	// payload with a ".bin" extension.
	SerializationCompact
)

// DiskStorageConfig configures a DiskBackend.
type DiskStorageConfig struct {
	// Dir is the root directory schemas are written under.
	Dir string

	// Mode selects JSON or compact serialization.
	Mode SerializationMode

	// MaxBlobBytes refuses a Put whose serialized size exceeds this
	// limit. Zero disables the check.
	MaxBlobBytes int64

	// PackageID/PackageVersion, when non-empty, attach a package
	// fingerprint file beside the backend's schemas.
	PackageID      string
	PackageVersion string
}

// DefaultDiskStorageConfig returns JSON serialization with a 16MiB blob
// limit and no package fingerprinting.
func DefaultDiskStorageConfig(dir string) *DiskStorageConfig {
	return &DiskStorageConfig{
		Dir:          dir,
		Mode:         SerializationJSON,
		MaxBlobBytes: 16 << 20,
	}
}
