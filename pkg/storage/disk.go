package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/octofhir-go/fhirschema/pkg/fhirschema"
)

// indexEntry is one record in the on-disk index file: URL -> relative
// path plus the fingerprint of the package that wrote it, if any.
type indexEntry struct {
	Path           string `json:"path"`
	PackageID      string `json:"packageId,omitempty"`
	PackageVersion string `json:"packageVersion,omitempty"`
}

// DiskBackend is a filesystem-backed Backend with atomic writes,
// optional zstd compression, and package fingerprint eviction.
type DiskBackend struct {
	cfg *DiskStorageConfig

	mu    sync.RWMutex
	index map[string]indexEntry
	meta  Metadata
}

const indexFileName = "index.json"
const fingerprintFileName = ".fingerprint.json"

// NewDiskBackend opens (or initializes) a disk-backed store rooted at
// cfg.Dir. It loads the index file if present, otherwise rebuilds it by
// scanning the directory.
func NewDiskBackend(cfg *DiskStorageConfig) (*DiskBackend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("storage: disk backend requires a config")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating %s: %w", cfg.Dir, err)
	}

	b := &DiskBackend{cfg: cfg, index: make(map[string]indexEntry)}
	if err := b.loadIndex(); err != nil {
		return nil, err
	}

	if cfg.PackageID != "" {
		if err := b.checkPackageFingerprint(); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *DiskBackend) extension() string {
	if b.cfg.Mode == SerializationCompact {
		return ".bin"
	}
	return ".json"
}

// pathFor maps a canonical URL to a safe relative filename by
// substituting scheme and path separators.
func (b *DiskBackend) pathFor(url string) string {
	name := strings.ReplaceAll(url, "://", "__")
	name = strings.NewReplacer("/", "_", ":", "_", "?", "_", "#", "_").Replace(name)
	if name == "" {
		name = "schema"
	}
	return name + b.extension()
}

func (b *DiskBackend) indexPath() string {
	return filepath.Join(b.cfg.Dir, indexFileName)
}

func (b *DiskBackend) fingerprintPath() string {
	return filepath.Join(b.cfg.Dir, fingerprintFileName)
}

func (b *DiskBackend) loadIndex() error {
	data, err := os.ReadFile(b.indexPath())
	if err != nil {
		if os.IsNotExist(err) {
			return b.rebuildIndex()
		}
		return fmt.Errorf("storage: reading index: %w", err)
	}
	var idx map[string]indexEntry
	if err := json.Unmarshal(data, &idx); err != nil {
		// A corrupt index self-heals via a full directory scan.
		return b.rebuildIndex()
	}
	b.index = idx
	b.meta.Count = len(idx)
	return nil
}

// rebuildIndex scans cfg.Dir for serialized schema files and
// reconstructs the index by reading each file's embedded URL.
func (b *DiskBackend) rebuildIndex() error {
	b.index = make(map[string]indexEntry)
	entries, err := os.ReadDir(b.cfg.Dir)
	if err != nil {
		return fmt.Errorf("storage: scanning %s: %w", b.cfg.Dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if name == indexFileName || name == fingerprintFileName || strings.HasSuffix(name, ".tmp") {
			continue
		}
		if !strings.HasSuffix(name, ".json") && !strings.HasSuffix(name, ".bin") {
			continue
		}
		schema, err := b.readFile(filepath.Join(b.cfg.Dir, name))
		if err != nil {
			continue // unreadable file; skip it rather than fail the whole scan
		}
		if schema.URL == "" {
			continue
		}
		b.index[schema.URL] = indexEntry{Path: name, PackageID: b.cfg.PackageID, PackageVersion: b.cfg.PackageVersion}
	}
	b.meta.Count = len(b.index)
	return b.writeIndexLocked()
}

func (b *DiskBackend) writeIndexLocked() error {
	data, err := json.MarshalIndent(b.index, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshaling index: %w", err)
	}
	return atomicWrite(b.indexPath(), data)
}

// atomicWrite writes data to a sibling ".tmp" file and renames it into
// place.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: renaming %s: %w", tmp, err)
	}
	return nil
}

func (b *DiskBackend) encode(schema *fhirschema.FhirSchema) ([]byte, error) {
	switch b.cfg.Mode {
	case SerializationCompact:
		raw, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("storage: marshaling schema: %w", err)
		}
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("storage: creating compressor: %w", err)
		}
		defer enc.Close()
		compressed := enc.EncodeAll(raw, nil)

		var buf bytes.Buffer
		if err := binary.Write(&buf, binary.BigEndian, uint64(len(raw))); err != nil {
			return nil, err
		}
		buf.Write(compressed)
		return buf.Bytes(), nil
	default:
		return json.MarshalIndent(schema, "", "  ")
	}
}

func (b *DiskBackend) decode(data []byte) (*fhirschema.FhirSchema, error) {
	switch b.cfg.Mode {
	case SerializationCompact:
		if len(data) < 8 {
			return nil, fmt.Errorf("storage: truncated compact blob")
		}
		wantLen := binary.BigEndian.Uint64(data[:8])
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("storage: creating decompressor: %w", err)
		}
		defer dec.Close()
		raw, err := dec.DecodeAll(data[8:], make([]byte, 0, wantLen))
		if err != nil {
			return nil, fmt.Errorf("storage: decompressing: %w", err)
		}
		var schema fhirschema.FhirSchema
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("storage: unmarshaling schema: %w", err)
		}
		return &schema, nil
	default:
		var schema fhirschema.FhirSchema
		if err := json.Unmarshal(data, &schema); err != nil {
			return nil, fmt.Errorf("storage: unmarshaling schema: %w", err)
		}
		return &schema, nil
	}
}

func (b *DiskBackend) readFile(path string) (*fhirschema.FhirSchema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return b.decode(data)
}

func (b *DiskBackend) Get(url string) (*fhirschema.FhirSchema, error) {
	b.mu.RLock()
	entry, ok := b.index[url]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	schema, err := b.readFile(filepath.Join(b.cfg.Dir, entry.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("storage: reading %s: %w", url, err)
	}
	return schema, nil
}

func (b *DiskBackend) Put(url string, schema *fhirschema.FhirSchema) error {
	data, err := b.encode(schema)
	if err != nil {
		return err
	}
	if b.cfg.MaxBlobBytes > 0 && int64(len(data)) > b.cfg.MaxBlobBytes {
		return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrBlobTooLarge, url, len(data), b.cfg.MaxBlobBytes)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	entry, exists := b.index[url]
	if !exists {
		entry = indexEntry{Path: b.pathFor(url), PackageID: b.cfg.PackageID, PackageVersion: b.cfg.PackageVersion}
	}
	if err := atomicWrite(filepath.Join(b.cfg.Dir, entry.Path), data); err != nil {
		return err
	}
	b.index[url] = entry
	b.meta.Count = len(b.index)
	b.meta.OpCounter++
	if err := b.writeIndexLocked(); err != nil {
		return err
	}
	return nil
}

func (b *DiskBackend) Remove(url string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.index[url]
	if !ok {
		return false, nil
	}
	if err := os.Remove(filepath.Join(b.cfg.Dir, entry.Path)); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("storage: removing %s: %w", url, err)
	}
	delete(b.index, url)
	b.meta.Count = len(b.index)
	b.meta.OpCounter++
	return true, b.writeIndexLocked()
}

func (b *DiskBackend) List() ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	urls := make([]string, 0, len(b.index))
	for u := range b.index {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls, nil
}

func (b *DiskBackend) Contains(url string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.index[url]
	return ok, nil
}

func (b *DiskBackend) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, entry := range b.index {
		_ = os.Remove(filepath.Join(b.cfg.Dir, entry.Path))
	}
	b.index = make(map[string]indexEntry)
	b.meta = Metadata{}
	return b.writeIndexLocked()
}

func (b *DiskBackend) Size() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.index), nil
}

// WritePackageFingerprint persists fp beside the backend's schemas. A
// later NewDiskBackend on the same directory whose configured PackageID
// or PackageVersion differs from the recorded ones clears the backend
// at open; the content hash is not compared then (IsPackageCached
// compares all three fields).
func (b *DiskBackend) WritePackageFingerprint(fp Fingerprint) error {
	data, err := json.MarshalIndent(fp, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(b.fingerprintPath(), data)
}

// checkPackageFingerprint compares the on-disk fingerprint file (if
// any) against cfg.PackageID/PackageVersion's expectation; a mismatch
// is not itself an error to the caller - it just clears the index so
// subsequent installs reconvert everything.
func (b *DiskBackend) checkPackageFingerprint() error {
	data, err := os.ReadFile(b.fingerprintPath())
	if err != nil {
		return nil // no fingerprint recorded yet
	}
	var fp Fingerprint
	if err := json.Unmarshal(data, &fp); err != nil {
		return nil
	}
	if fp.PackageID == b.cfg.PackageID && fp.PackageVersion == b.cfg.PackageVersion {
		return nil
	}
	return b.Clear()
}

// IsPackageCached reports whether the on-disk fingerprint matches fp
// exactly, meaning the caller may skip reconversion.
func (b *DiskBackend) IsPackageCached(fp Fingerprint) bool {
	data, err := os.ReadFile(b.fingerprintPath())
	if err != nil {
		return false
	}
	var existing Fingerprint
	if err := json.Unmarshal(data, &existing); err != nil {
		return false
	}
	return existing.Equal(fp)
}

var _ Backend = (*DiskBackend)(nil)
var _ io.Closer = (*DiskBackend)(nil)

// Close is a no-op; DiskBackend holds no long-lived file handles.
func (b *DiskBackend) Close() error { return nil }
