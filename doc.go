// Package prefstore provides application preference storage with typed,
// observable bindings.
//
// # Overview
//
// prefstore separates concerns between typed properties (Preferences and
// Binding) and storage (Driver). Three drivers are provided:
//
//  1. Disk: a directory holding a JSON manifest and one file per large value
//  2. Memory: a process-local map
//  3. SQLite: a single-table database
//
// # Disk layout
//
// Values up to the inline threshold (1024 bytes by default) are kept as text
// in manifest.json. Larger values, and values that are not valid UTF-8, are
// written to a file named by the MD5 hex digest of the key and marked null
// in the manifest. File-backed values are cached in memory, bounded by total
// byte size. The manifest is rewritten atomically on every change.
//
// Get and Set on a Disk never fail: unreadable values are reported as
// ErrNotFound and failed writes are logged and dropped. Only OpenDisk can
// fail, when the storage directory cannot be created.
//
// # Quick Start
//
//	disk, err := prefstore.OpenDisk(prefstore.WithAppID("com.example.app"))
//	if err != nil {
//	    return err
//	}
//	prefs := prefstore.NewPreferences(prefstore.WithDriver(disk))
//
//	theme := prefstore.MustBind(prefs, "theme", "light")
//	fontSize := prefstore.MustBind(prefs, "font_size", 14)
//
//	_ = theme.Set(ctx, "dark")
//	size := fontSize.Get(ctx) // 14 until set
//
// # Observing changes
//
// Every successful Set publishes the binding's identity. Subscriptions only
// receive notifications of the binding they were created from:
//
//	for v := range theme.Values(ctx) {
//	    apply(v) // current value first, then every change
//	}
//
// Subscribe returns an explicit handle whose Cancel is synchronous; after it
// returns no further values are delivered.
//
// # Thread Safety
//
// All drivers, containers and bindings are safe for concurrent use. A Disk
// serializes manifest and cache access behind one mutex.
//
// # Error Handling
//
// Binding.Get never fails; it falls back to the binding default. Other
// operations return sentinel errors usable with errors.Is:
//
//	_, err := prefstore.Bind(prefs, "theme", "blue")
//	if errors.Is(err, prefstore.ErrDuplicateBinding) {
//	    // already declared
//	}
//
// Available errors: ErrNotFound, ErrInvalidPattern, ErrInvalidKey,
// ErrDuplicateBinding, ErrDecode, ErrMisconfigured, ErrWatchUnsupported
package prefstore
