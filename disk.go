package prefstore

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf8"

	"github.com/spf13/afero"
)

// DefaultInlineThreshold is the largest value, in bytes, kept inline in the
// manifest. Anything bigger goes to its own file.
const DefaultInlineThreshold = 1024

// Placement tells where a Disk keeps a key's value.
type Placement int

const (
	PlacementInline Placement = iota + 1
	PlacementFile
)

func (p Placement) String() string {
	switch p {
	case PlacementInline:
		return "inline"
	case PlacementFile:
		return "file"
	default:
		return "unknown"
	}
}

// DiskOption customizes a Disk.
type DiskOption func(*Disk)

// WithFs sets the filesystem. Defaults to the OS filesystem.
func WithFs(fs afero.Fs) DiskOption {
	return func(d *Disk) {
		if fs != nil {
			d.fs = fs
		}
	}
}

// WithDir sets the storage directory explicitly, overriding WithAppID.
func WithDir(dir string) DiskOption {
	return func(d *Disk) {
		d.dir = dir
	}
}

// WithAppID selects the default storage directory for appID.
func WithAppID(appID string) DiskOption {
	return func(d *Disk) {
		d.appID = appID
	}
}

// WithInlineThreshold overrides DefaultInlineThreshold.
func WithInlineThreshold(n int) DiskOption {
	return func(d *Disk) {
		if n >= 0 {
			d.threshold = n
		}
	}
}

// WithCacheLimit bounds the memory cache by total bytes and entry count.
// Non-positive values keep the defaults.
func WithCacheLimit(costLimit, maxEntries int) DiskOption {
	return func(d *Disk) {
		d.cacheCost = costLimit
		d.cacheEntries = maxEntries
	}
}

// WithDiskLogger specifies a logger. Defaults to no logging.
func WithDiskLogger(logger Logger) DiskOption {
	return func(d *Disk) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDiskLogTag sets a tag prefix for all log messages.
func WithDiskLogTag(tag string) DiskOption {
	return func(d *Disk) {
		d.logTag = tag
	}
}

// Disk implements Driver on a directory: a JSON manifest holds small values
// inline, larger ones live in files named after the key's digest and are
// kept in a cost-bounded memory cache.
//
// I/O failures never surface from Get or Set: reads degrade to ErrNotFound,
// writes are dropped and logged.
type Disk struct {
	mu       sync.Mutex
	manifest manifest
	cache    *costCache

	fs           afero.Fs
	dir          string
	appID        string
	threshold    int
	cacheCost    int
	cacheEntries int
	logger       Logger
	logTag       string
}

// OpenDisk creates the storage directory if needed and loads its manifest.
// A missing or malformed manifest starts empty. The only error is
// ErrMisconfigured, when the directory cannot be created.
func OpenDisk(opts ...DiskOption) (*Disk, error) {
	d := &Disk{
		fs:        afero.NewOsFs(),
		threshold: DefaultInlineThreshold,
		logger:    defaultLogger,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.dir == "" {
		d.dir = StorageDir(d.appID)
	}
	d.dir = filepath.Clean(d.dir)
	d.cache = newCostCache(d.cacheCost, d.cacheEntries)

	ctx := context.Background()
	if isDir, _ := afero.IsDir(d.fs, d.dir); !isDir {
		if err := d.fs.MkdirAll(d.dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create storage directory %s: %v", ErrMisconfigured, d.dir, err)
		}
	}
	if err := markExcludedFromBackup(d.fs, d.dir); err != nil {
		d.logf("warn", ctx, "exclude %s from backup: %v", d.dir, err)
	}

	m, err := readManifest(d.fs, d.ManifestPath())
	if err != nil {
		d.logf("warn", ctx, "load manifest: %v", err)
	}
	d.manifest = m
	d.logf("debug", ctx, "opened %s with %d keys", d.dir, len(m))
	return d, nil
}

// Dir returns the storage directory.
func (d *Disk) Dir() string { return d.dir }

// ManifestPath returns the path of the manifest file.
func (d *Disk) ManifestPath() string {
	return filepath.Join(d.dir, manifestFileName)
}

// FilePath returns the backing file path used for key when its value is
// file-backed.
func (d *Disk) FilePath(key string) string {
	return filepath.Join(d.dir, fileNameForKey(key))
}

func (d *Disk) logf(level string, ctx context.Context, format string, args ...interface{}) {
	logTagged(d.logger, d.logTag, level, ctx, format, args...)
}

func (d *Disk) Get(ctx context.Context, key string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.manifest[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.fileBacked {
		return []byte(e.text), nil
	}
	if v, ok := d.cache.get(key); ok {
		return clone(v), nil
	}
	v, err := afero.ReadFile(d.fs, d.FilePath(key))
	if err != nil {
		d.logf("warn", ctx, "Get %s: read backing file: %v", key, err)
		return nil, ErrNotFound
	}
	d.cache.add(key, v)
	return clone(v), nil
}

// Set stores value. It always returns nil; a write that cannot be made
// durable is logged and leaves the previous value in place.
func (d *Disk) Set(ctx context.Context, key string, value []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev, had := d.manifest[key]
	// The manifest is JSON text, so bytes that are not UTF-8 go to a file
	// regardless of size.
	if len(value) > d.threshold || !utf8.Valid(value) {
		if err := writeFileAtomic(d.fs, d.FilePath(key), value); err != nil {
			d.logf("error", ctx, "Set %s: write backing file: %v", key, err)
			return nil
		}
		if !had || !prev.fileBacked {
			d.manifest[key] = fileBackedEntry
			if err := d.persist(ctx); err != nil {
				d.restore(key, prev, had)
				d.removeBackingFile(ctx, key)
				return nil
			}
		}
		d.cache.add(key, clone(value))
		return nil
	}

	d.manifest[key] = inlineEntry(string(value))
	if err := d.persist(ctx); err != nil {
		d.restore(key, prev, had)
		return nil
	}
	if had && prev.fileBacked {
		d.removeBackingFile(ctx, key)
	}
	return nil
}

func (d *Disk) Delete(ctx context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.manifest[key]
	if !ok {
		return nil
	}
	delete(d.manifest, key)
	if err := d.persist(ctx); err != nil {
		d.manifest[key] = e
		return nil
	}
	if e.fileBacked {
		d.removeBackingFile(ctx, key)
	}
	return nil
}

func (d *Disk) Exists(ctx context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.manifest[key]
	return ok, nil
}

// Keys returns all keys matching the prefix and pattern, sorted.
func (d *Disk) Keys(ctx context.Context, prefix, pattern string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var result []string
	for key := range d.manifest {
		ok, err := matchKey(key, prefix, pattern)
		if err != nil {
			return nil, err
		}
		if ok {
			result = append(result, key)
		}
	}
	sort.Strings(result)
	return result, nil
}

// Clear removes all keys with the given prefix and rewrites the manifest
// once.
func (d *Disk) Clear(ctx context.Context, prefix string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := make(manifest)
	for key, e := range d.manifest {
		if ok, _ := matchKey(key, prefix, ""); !ok {
			continue
		}
		removed[key] = e
		delete(d.manifest, key)
	}
	if len(removed) == 0 {
		return nil
	}
	if err := d.persist(ctx); err != nil {
		for key, e := range removed {
			d.manifest[key] = e
		}
		return nil
	}
	for key, e := range removed {
		if e.fileBacked {
			d.removeBackingFile(ctx, key)
		}
	}
	return nil
}

// Placement reports where key's value is kept.
func (d *Disk) Placement(key string) (Placement, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.manifest[key]
	if !ok {
		return 0, false
	}
	if e.fileBacked {
		return PlacementFile, true
	}
	return PlacementInline, true
}

// Reload re-reads the manifest from disk, evicts the cache entries of the
// keys whose manifest entries changed and returns those keys. A file-backed
// value rewritten in place by another process is not reported.
func (d *Disk) Reload(ctx context.Context) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	m, err := readManifest(d.fs, d.ManifestPath())
	if err != nil {
		d.logf("warn", ctx, "reload manifest: %v", err)
	}
	changed := d.manifest.diff(m)
	d.manifest = m
	for _, key := range changed {
		d.cache.remove(key)
	}
	return changed
}

// removeBackingFile deletes key's file and cache entry. Callers hold d.mu.
func (d *Disk) removeBackingFile(ctx context.Context, key string) {
	if err := d.fs.Remove(d.FilePath(key)); err != nil && !isNotExist(err) {
		d.logf("warn", ctx, "remove backing file of %s: %v", key, err)
	}
	d.cache.remove(key)
}

// restore puts back the entry key had before a failed mutation. Callers
// hold d.mu.
func (d *Disk) restore(key string, prev manifestEntry, had bool) {
	if had {
		d.manifest[key] = prev
		return
	}
	delete(d.manifest, key)
}

// persist rewrites the manifest, logging failures. Callers hold d.mu and
// roll back their in-memory change when it fails.
func (d *Disk) persist(ctx context.Context) error {
	err := writeManifest(d.fs, d.ManifestPath(), d.manifest)
	if err != nil {
		d.logf("error", ctx, "write manifest: %v", err)
	}
	return err
}
