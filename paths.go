package prefstore

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/afero"
)

const (
	// StorageSubdir is the fixed directory under <data-home>/<app-id>.
	StorageSubdir = "localstorage_v1"

	// DefaultAppID is used when no application identifier is configured.
	DefaultAppID = "prefstore"

	cacheDirTagName = "CACHEDIR.TAG"
	cacheDirTag     = "Signature: 8a477f597d28d172789f06886806bc55\n" +
		"# This file is a cache directory tag created by prefstore.\n" +
		"# Backup tools that honour CACHEDIR.TAG skip this directory.\n"
)

// StorageDir returns the per-application storage directory,
// <xdg.DataHome>/<appID>/localstorage_v1. On macOS xdg.DataHome is
// ~/Library/Application Support.
func StorageDir(appID string) string {
	if appID == "" {
		appID = DefaultAppID
	}
	return filepath.Join(xdg.DataHome, appID, StorageSubdir)
}

// fileNameForKey derives the backing file name of key: the hex MD5 digest,
// so arbitrary key content never reaches the filesystem.
func fileNameForKey(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// markExcludedFromBackup drops a CACHEDIR.TAG into dir unless one exists.
func markExcludedFromBackup(afs afero.Fs, dir string) error {
	tag := filepath.Join(dir, cacheDirTagName)
	if _, err := afs.Stat(tag); err == nil {
		return nil
	}
	return afero.WriteFile(afs, tag, []byte(cacheDirTag), 0o644)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist) || os.IsNotExist(err)
}
