package prefstore

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
)

const manifestFileName = "manifest.json"

// manifestEntry is either inline text or a marker that the value lives in
// the key's backing file.
type manifestEntry struct {
	fileBacked bool
	text       string
}

func inlineEntry(s string) manifestEntry { return manifestEntry{text: s} }

var fileBackedEntry = manifestEntry{fileBacked: true}

// manifest maps keys to entries. On disk it is a JSON object whose values
// are strings (inline) or null (file-backed).
type manifest map[string]manifestEntry

func (m manifest) MarshalJSON() ([]byte, error) {
	raw := make(map[string]*string, len(m))
	for k, e := range m {
		if e.fileBacked {
			raw[k] = nil
			continue
		}
		text := e.text
		raw[k] = &text
	}
	return json.Marshal(raw)
}

func (m *manifest) UnmarshalJSON(data []byte) error {
	var raw map[string]*string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(manifest, len(raw))
	for k, v := range raw {
		if v == nil {
			out[k] = fileBackedEntry
			continue
		}
		out[k] = inlineEntry(*v)
	}
	*m = out
	return nil
}

// readManifest loads the manifest at path. A missing file yields an empty
// manifest and no error; a malformed one yields an empty manifest and the
// parse error so callers can log it.
func readManifest(fs afero.Fs, path string) (manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if isNotExist(err) {
			return manifest{}, nil
		}
		return manifest{}, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return manifest{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = manifest{}
	}
	return m, nil
}

func writeManifest(fs afero.Fs, path string, m manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return writeFileAtomic(fs, path, data)
}

// writeFileAtomic writes data next to path and renames it into place so
// readers never observe a partially written file.
func writeFileAtomic(fs afero.Fs, path string, data []byte) error {
	tmp, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := fs.Rename(tmpName, path); err != nil {
		_ = fs.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", tmpName, err)
	}
	return nil
}

// diff returns the keys whose entries differ between a and b, sorted.
func (m manifest) diff(other manifest) []string {
	var changed []string
	for k, e := range m {
		if o, ok := other[k]; !ok || o != e {
			changed = append(changed, k)
		}
	}
	for k := range other {
		if _, ok := m[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}
