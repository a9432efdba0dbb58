package prefstore

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestNewPreferences_Defaults(t *testing.T) {
	p := NewPreferences()
	_, ok := p.Driver().(*Memory)
	assert.True(t, ok, "default driver should be in-memory")
	assert.Empty(t, p.Bindings())
}

func TestBind_RejectsEmptyKey(t *testing.T) {
	p := NewPreferences()
	_, err := Bind(p, "", 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBind_RejectsDuplicate(t *testing.T) {
	p := NewPreferences()
	_, err := Bind(p, "theme", "light")
	require.NoError(t, err)

	_, err = Bind(p, "theme", 0)
	assert.ErrorIs(t, err, ErrDuplicateBinding)

	assert.Panics(t, func() { MustBind(p, "theme", "dark") })
	assert.Equal(t, []string{"theme"}, p.Bindings())
}

func TestBinding_DefaultUntilSet(t *testing.T) {
	p := NewPreferences()
	ctx := context.Background()
	volume := MustBind(p, "volume", 7)

	assert.Equal(t, "volume", volume.Key())
	assert.Equal(t, 7, volume.Default())
	assert.Equal(t, 7, volume.Get(ctx))

	require.NoError(t, volume.Set(ctx, 11))
	assert.Equal(t, 11, volume.Get(ctx))

	require.NoError(t, volume.Delete(ctx))
	assert.Equal(t, 7, volume.Get(ctx))
}

func TestBinding_StoredEncoding(t *testing.T) {
	p := NewPreferences()
	ctx := context.Background()
	theme := MustBind(p, "theme", "light")
	size := MustBind(p, "size", windowState{Width: 1, Height: 1})

	require.NoError(t, theme.Set(ctx, "dark"))
	require.NoError(t, size.Set(ctx, windowState{Width: 800, Height: 600}))

	raw, err := p.Driver().Get(ctx, "theme")
	require.NoError(t, err)
	assert.Equal(t, `"dark"`, string(raw))

	raw, err = p.Driver().Get(ctx, "size")
	require.NoError(t, err)
	assert.JSONEq(t, `{"state":{"width":800,"height":600}}`, string(raw))
}

func TestBinding_DecodeFailureFallsBackToDefault(t *testing.T) {
	logger := &mockLogger{}
	p := NewPreferences(WithLogger(logger))
	ctx := context.Background()
	count := MustBind(p, "count", 3)

	require.NoError(t, p.Driver().Set(ctx, "count", []byte(`"not a number"`)))

	assert.Equal(t, 3, count.Get(ctx))
	assert.True(t, logger.contains("failed to decode count"), logger.getMessages())
}

type failingCodec struct{}

func (failingCodec) Encode(int) ([]byte, error) { return nil, errors.New("boom") }

func (failingCodec) Decode([]byte) (int, error) { return 0, errors.New("boom") }

func TestBinding_EncodeFailure(t *testing.T) {
	p := NewPreferences()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := MustBind(p, "n", 1, WithCodec[int](failingCodec{}))

	sub := n.Subscribe(ctx)
	defer sub.Cancel()
	_, _ = sub.Next(ctx)

	err := n.Set(ctx, 5)
	require.Error(t, err)

	ok, _ := p.Driver().Exists(ctx, "n")
	assert.False(t, ok, "nothing should be written")
	assert.Equal(t, 0, sub.s.pending, "nothing should be notified")
}

func TestBinding_CustomCodec(t *testing.T) {
	p := NewPreferences()
	ctx := context.Background()
	avatar := MustBind(p, "avatar", []byte(nil), WithCodec[[]byte](RawCodec{}))
	motd := MustBind(p, "motd", "", WithCodec[string](StringCodec{}))

	require.NoError(t, avatar.Set(ctx, []byte{0x89, 'P', 'N', 'G'}))
	require.NoError(t, motd.Set(ctx, "hello"))

	raw, _ := p.Driver().Get(ctx, "avatar")
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw)
	raw, _ = p.Driver().Get(ctx, "motd")
	assert.Equal(t, "hello", string(raw))
	assert.Equal(t, "hello", motd.Get(ctx))
}

func TestPreferences_Namespace(t *testing.T) {
	shared := NewMemory()
	ctx := context.Background()

	a := NewPreferences(WithDriver(shared), WithNamespace("editor"))
	b := NewPreferences(WithDriver(shared), WithNamespace("terminal"))
	fontA := MustBind(a, "font", "mono")
	fontB := MustBind(b, "font", "mono")

	require.NoError(t, fontA.Set(ctx, "fira"))
	assert.Equal(t, "fira", fontA.Get(ctx))
	assert.Equal(t, "mono", fontB.Get(ctx))

	ok, _ := shared.Exists(ctx, "editor:font")
	assert.True(t, ok)

	keys, err := a.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"font"}, keys)

	keys, err = b.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestPreferences_Reset(t *testing.T) {
	shared := NewMemory()
	other := NewMemory()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewPreferences(WithDriver(shared), WithNamespace("app"))
	theme := MustBind(p, "theme", "light")
	token := MustBind(p, "token", "", WithBindingDriver[string](other))
	require.NoError(t, shared.Set(ctx, "elsewhere", []byte("keep")))

	require.NoError(t, theme.Set(ctx, "dark"))
	require.NoError(t, token.Set(ctx, "secret"))

	sub := theme.Subscribe(ctx)
	defer sub.Cancel()
	v, _ := sub.Next(ctx)
	require.Equal(t, "dark", v)

	require.NoError(t, p.Reset(ctx))

	assert.Equal(t, "light", theme.Get(ctx))
	assert.Equal(t, "", token.Get(ctx))
	ok, _ := other.Exists(ctx, "app:token")
	assert.False(t, ok)
	ok, _ = shared.Exists(ctx, "elsewhere")
	assert.True(t, ok, "keys outside the namespace survive")

	v, ok = sub.Next(ctx)
	assert.True(t, ok)
	assert.Equal(t, "light", v)
}

func TestBinding_WithBindingDriver(t *testing.T) {
	ctx := context.Background()
	secure := NewMemory()
	p := NewPreferences()
	token := MustBind(p, "token", "", WithBindingDriver[string](secure))

	require.NoError(t, token.Set(ctx, "abc"))

	ok, _ := secure.Exists(ctx, "token")
	assert.True(t, ok)
	ok, _ = p.Driver().Exists(ctx, "token")
	assert.False(t, ok)
	assert.Equal(t, "abc", token.Get(ctx))
}

func TestBinding_OnDisk(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	disk, err := OpenDisk(WithFs(fs), WithDir("/prefs"))
	require.NoError(t, err)

	p := NewPreferences(WithDriver(disk))
	notes := MustBind(p, "notes", []string{})
	long := make([]string, 200)
	for i := range long {
		long[i] = "note"
	}
	require.NoError(t, notes.Set(ctx, long))

	placement, ok := disk.Placement("notes")
	require.True(t, ok)
	assert.Equal(t, PlacementFile, placement)

	reopened, err := OpenDisk(WithFs(fs), WithDir("/prefs"))
	require.NoError(t, err)
	p2 := NewPreferences(WithDriver(reopened))
	assert.Equal(t, long, MustBind(p2, "notes", []string{}).Get(ctx))
}
