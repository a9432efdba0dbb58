package prefstore

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

// ErrWatchUnsupported is returned by Watch when the Disk does not sit on the
// OS filesystem.
var ErrWatchUnsupported = errors.New("prefstore: watch requires the OS filesystem")

// Watch observes the storage directory and calls fn with the changed keys
// whenever the manifest is replaced or written, by this process or another
// one. Writes from this Disk produce no change set and therefore no call.
// Watch blocks until ctx is done.
func (d *Disk) Watch(ctx context.Context, fn func(keys []string)) error {
	if _, ok := d.fs.(*afero.OsFs); !ok {
		return ErrWatchUnsupported
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() {
		_ = w.Close()
	}()
	if err := w.Add(d.dir); err != nil {
		return fmt.Errorf("watch %s: %w", d.dir, err)
	}

	manifestPath := d.ManifestPath()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != manifestPath {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if keys := d.Reload(ctx); len(keys) > 0 {
				d.logf("debug", ctx, "manifest changed externally: %v", keys)
				fn(keys)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			d.logf("warn", ctx, "watch %s: %v", d.dir, err)
		}
	}
}
