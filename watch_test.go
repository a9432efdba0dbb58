package prefstore

import (
	"bytes"
	"context"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestDisk_WatchUnsupported(t *testing.T) {
	d := openTestDisk(t, afero.NewMemMapFs())
	err := d.Watch(context.Background(), func([]string) {})
	assert.ErrorIs(t, err, ErrWatchUnsupported)
}

func TestPreferences_WatchUnsupported(t *testing.T) {
	p := NewPreferences()
	assert.ErrorIs(t, p.Watch(context.Background()), ErrWatchUnsupported)
}

func TestDisk_WatchSeesOtherWriter(t *testing.T) {
	dir := t.TempDir()
	watched, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)
	writer, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		changed []string
	)
	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		return watched.Watch(ctx, func(keys []string) {
			mu.Lock()
			defer mu.Unlock()
			changed = append(changed, keys...)
		})
	})

	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = writer.Set(ctx, "theme", []byte("v"+strconv.Itoa(n)))
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(changed, "theme")
	}, 5*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, g.Wait())

	v, err := watched.Get(context.Background(), "theme")
	require.NoError(t, err)
	assert.Contains(t, string(v), "v")
}

// pingUntilSeen writes key through w until the watcher reports it.
func pingUntilSeen(t *testing.T, w *Disk, key string, seen func(string) bool) {
	t.Helper()
	n := 0
	require.Eventually(t, func() bool {
		n++
		_ = w.Set(context.Background(), key, []byte(strconv.Itoa(n)))
		return seen(key)
	}, 5*time.Second, 50*time.Millisecond)
}

func TestDisk_WatchKeepsCacheOnOwnWrites(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		changed []string
	)
	seen := func(key string) bool {
		mu.Lock()
		defer mu.Unlock()
		return slices.Contains(changed, key)
	}
	ctx, cancel := context.WithCancel(context.Background())
	var g errgroup.Group
	g.Go(func() error {
		return d.Watch(ctx, func(keys []string) {
			mu.Lock()
			defer mu.Unlock()
			changed = append(changed, keys...)
		})
	})

	ready, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)
	pingUntilSeen(t, ready, "ready", seen)

	big := bytes.Repeat([]byte("b"), 4000)
	require.NoError(t, d.Set(ctx, "big", big))
	_, err = d.Get(ctx, "big")
	require.NoError(t, err)
	require.NoError(t, d.Set(ctx, "small", []byte("s")))

	// Events are handled in order, so once the later writer is seen the
	// events of the own writes above have been processed too.
	later, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)
	pingUntilSeen(t, later, "marker", seen)

	cancel()
	require.NoError(t, g.Wait())

	assert.False(t, seen("big"), "own writes are not reported")
	assert.False(t, seen("small"), "own writes are not reported")
	d.mu.Lock()
	cached, ok := d.cache.get("big")
	d.mu.Unlock()
	assert.True(t, ok, "own writes must not drop cached values")
	assert.Equal(t, big, cached)
}

func TestPreferences_WatchNotifiesBindings(t *testing.T) {
	dir := t.TempDir()
	local, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)
	remote, err := OpenDisk(WithDir(dir))
	require.NoError(t, err)

	p := NewPreferences(WithDriver(local), WithNamespace("app"))
	theme := MustBind(p, "theme", "light")
	other := MustBind(p, "other", 0)

	remotePrefs := NewPreferences(WithDriver(remote), WithNamespace("app"))
	remoteTheme := MustBind(remotePrefs, "theme", "light")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := theme.Subscribe(ctx)
	defer sub.Cancel()
	otherSub := other.Subscribe(ctx)
	defer otherSub.Cancel()
	_, _ = sub.Next(ctx)
	_, _ = otherSub.Next(ctx)

	var g errgroup.Group
	g.Go(func() error {
		return p.Watch(ctx)
	})

	require.Eventually(t, func() bool {
		_ = remoteTheme.Set(ctx, "dark")
		return theme.Get(ctx) == "dark"
	}, 5*time.Second, 50*time.Millisecond)

	nextCtx, nextCancel := context.WithTimeout(ctx, 2*time.Second)
	defer nextCancel()
	v, ok := sub.Next(nextCtx)
	require.True(t, ok)
	assert.Equal(t, "dark", v)
	assert.True(t, noMore(t, otherSub), "unrelated binding was notified")

	cancel()
	require.NoError(t, g.Wait())
}
