package prefstore

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound         = errors.New("prefstore: not found")
	ErrInvalidPattern   = errors.New("prefstore: invalid pattern")
	ErrInvalidKey       = errors.New("prefstore: invalid key")
	ErrDuplicateBinding = errors.New("prefstore: duplicate binding")
	ErrDecode           = errors.New("prefstore: decode failure")
	ErrMisconfigured    = errors.New("prefstore: misconfigured")
)

// Driver describes the backing store of a Preferences container.
// Implementations must be thread-safe.
type Driver interface {
	// Get returns ErrNotFound when the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	// Delete of an absent key is not an error.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Namespace operations
	Keys(ctx context.Context, prefix, pattern string) ([]string, error)
	Clear(ctx context.Context, prefix string) error
}

// Watcher is implemented by drivers that can observe writes made by other
// processes. fn receives the storage keys whose values changed.
type Watcher interface {
	Watch(ctx context.Context, fn func(keys []string)) error
}

// matchKey reports whether key lives in the namespace prefix and its
// remainder matches pattern. An empty prefix matches every key.
func matchKey(key, prefix, pattern string) (bool, error) {
	rest := key
	if prefix != "" {
		if !strings.HasPrefix(key, prefix+":") {
			return false, nil
		}
		rest = key[len(prefix)+1:]
	}
	if pattern == "" || pattern == "*" {
		return true, nil
	}
	matched, err := filepath.Match(pattern, rest)
	if err != nil {
		return false, ErrInvalidPattern
	}
	return matched, nil
}

func clone(src []byte) []byte {
	if src == nil {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}
