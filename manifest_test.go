package prefstore

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManifest_JSONShape(t *testing.T) {
	m := manifest{
		"theme": inlineEntry("dark"),
		"empty": inlineEntry(""),
		"blob":  fileBackedEntry,
	}
	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark","empty":"","blob":null}`, string(data))

	var back manifest
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)
}

func TestManifest_UnmarshalRejectsOtherShapes(t *testing.T) {
	for _, input := range []string{
		`[]`,
		`{"a":1}`,
		`{"a":{"b":"c"}}`,
		`not json`,
	} {
		var m manifest
		assert.Error(t, json.Unmarshal([]byte(input), &m), input)
	}
}

func TestReadManifest(t *testing.T) {
	fs := afero.NewMemMapFs()

	m, err := readManifest(fs, "/d/manifest.json")
	require.NoError(t, err, "missing manifest is not an error")
	assert.Empty(t, m)

	require.NoError(t, afero.WriteFile(fs, "/d/manifest.json", []byte("{broken"), 0o644))
	m, err = readManifest(fs, "/d/manifest.json")
	assert.Error(t, err)
	assert.NotNil(t, m)
	assert.Empty(t, m)

	require.NoError(t, afero.WriteFile(fs, "/d/manifest.json", []byte("null"), 0o644))
	m, err = readManifest(fs, "/d/manifest.json")
	require.NoError(t, err)
	assert.NotNil(t, m, "a null document still yields a usable manifest")
}

func TestWriteManifest_RoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/d", 0o755))

	want := manifest{"a": inlineEntry("1"), "b": fileBackedEntry}
	require.NoError(t, writeManifest(fs, "/d/manifest.json", want))

	got, err := readManifest(fs, "/d/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestWriteFileAtomic_LeavesNoTempFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/d", 0o755))

	for i := 0; i < 3; i++ {
		require.NoError(t, writeFileAtomic(fs, "/d/file", []byte{byte('a' + i)}))
	}

	data, err := afero.ReadFile(fs, "/d/file")
	require.NoError(t, err)
	assert.Equal(t, []byte("c"), data)

	entries, err := afero.ReadDir(fs, "/d")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "file", entries[0].Name())
}

func TestWriteFileAtomic_ReadOnly(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(base, "/d/file", []byte("old"), 0o644))
	fs := afero.NewReadOnlyFs(base)

	assert.Error(t, writeFileAtomic(fs, "/d/file", []byte("new")))

	data, err := afero.ReadFile(base, "/d/file")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), data)
}

func TestManifest_Diff(t *testing.T) {
	old := manifest{
		"same":    inlineEntry("x"),
		"changed": inlineEntry("1"),
		"moved":   inlineEntry("small"),
		"gone":    inlineEntry("bye"),
	}
	cur := manifest{
		"same":    inlineEntry("x"),
		"changed": inlineEntry("2"),
		"moved":   fileBackedEntry,
		"new":     inlineEntry("hi"),
	}

	assert.Equal(t, []string{"changed", "gone", "moved", "new"}, old.diff(cur))
	assert.Equal(t, []string{"changed", "gone", "moved", "new"}, cur.diff(old))
	assert.Empty(t, old.diff(old))
}
