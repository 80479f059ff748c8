package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/input"
	wt "github.com/wippyai/mod-runtime/internal/wasmtest"
	"github.com/wippyai/mod-runtime/modhost"
)

func newSupervisor(t *testing.T) (*Supervisor, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(Options{
		AssetDir: filepath.Join(dir, "assets"),
		DataDir:  filepath.Join(dir, "data"),
		Seed:     42,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s, dir
}

func writeMod(t *testing.T, dir, name string, wasm []byte) string {
	t.Helper()
	path := filepath.Join(dir, name+".wasm")
	require.NoError(t, os.WriteFile(path, wasm, 0o644))
	return path
}

// spawner spawns one entity per update.
func spawner(name string) []byte {
	g := wt.NewGuest(name)
	spawn := g.Import("ecs", "spawn-entity", nil, []byte{wt.I64})
	g.Define("update", nil, wt.Call(spawn), wt.Drop())
	return g.Build()
}

func crasher() []byte {
	g := wt.NewGuest("crasher")
	g.Define("update", nil, wt.Unreachable())
	return g.Build()
}

// keyMod spawns an entity per key_event and subscribes to key when
// subscribe is set.
func keyMod(name string, key input.Key, subscribe bool) []byte {
	g := wt.NewGuest(name)
	sub := g.Import("input", "subscribe-key", []byte{wt.I32}, nil)
	spawn := g.Import("ecs", "spawn-entity", nil, []byte{wt.I64})
	if subscribe {
		g.Define("init", nil, wt.I32Const(int32(key)), wt.Call(sub))
	}
	g.Define("key_event", nil, wt.Call(spawn), wt.Drop())
	return g.Build()
}

func TestLoadAndUpdate(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	h, err := s.Load(ctx, writeMod(t, dir, "spawner", spawner("spawner")))
	require.NoError(t, err)
	require.NotZero(t, h)

	for range 3 {
		require.NoError(t, s.Update(ctx, 0.016))
	}
	assert.Equal(t, 3, s.World().Len())

	mods := s.Mods()
	require.Len(t, mods, 1)
	assert.Equal(t, h, mods[0].Handle)
	assert.Equal(t, "spawner", mods[0].Name)
	assert.Equal(t, modhost.Running, mods[0].State)
}

func TestFailingModIsolated(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	_, err := s.Load(ctx, writeMod(t, dir, "crasher", crasher()))
	require.NoError(t, err)
	_, err = s.Load(ctx, writeMod(t, dir, "spawner", spawner("spawner")))
	require.NoError(t, err)

	err = s.Update(ctx, 0.016)
	require.Error(t, err)
	assert.True(t, errors.IsTrap(err))
	assert.Equal(t, 1, s.World().Len(), "sibling must still tick")

	require.NoError(t, s.Update(ctx, 0.016), "failed mod is skipped")
	assert.Equal(t, 2, s.World().Len())

	mods := s.Mods()
	require.Len(t, mods, 2)
	assert.Equal(t, modhost.Failed, mods[0].State)
	assert.Error(t, mods[0].Err)
	assert.Equal(t, modhost.Running, mods[1].State)
}

func TestLoadFailureLeavesNoSlot(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	g := wt.NewGuest("broken")
	g.Omit("update")
	_, err := s.Load(ctx, writeMod(t, dir, "broken", g.Build()))
	require.Error(t, err)
	assert.True(t, errors.IsLink(err))
	assert.Empty(t, s.Mods())

	_, err = s.Load(ctx, filepath.Join(dir, "missing.wasm"))
	require.Error(t, err)

	_, err = s.Load(ctx, writeMod(t, dir, "good", spawner("good")))
	require.NoError(t, err)
	assert.Len(t, s.Mods(), 1)
}

func TestKeyDispatch(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	_, err := s.Load(ctx, writeMod(t, dir, "listener", keyMod("listener", input.KeySpace, true)))
	require.NoError(t, err)
	_, err = s.Load(ctx, writeMod(t, dir, "deaf", keyMod("deaf", input.KeySpace, false)))
	require.NoError(t, err)

	require.NoError(t, s.Event(ctx, input.Press(input.KeySpace)))
	assert.Equal(t, 1, s.World().Len(), "only the subscribed mod receives the key")
	assert.True(t, s.Input().Down(input.KeySpace))

	require.NoError(t, s.Event(ctx, input.Press(input.KeyEnter)))
	assert.Equal(t, 1, s.World().Len())

	require.NoError(t, s.Event(ctx, input.Release(input.KeySpace)))
	assert.False(t, s.Input().Down(input.KeySpace))
}

func TestScrollReachesEveryMod(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	g := wt.NewGuest("zoomer")
	zoom := g.Import("camera", "set-zoom", []byte{wt.F32}, nil)
	g.Define("scroll", nil, wt.LocalGet(0), wt.Call(zoom))
	_, err := s.Load(ctx, writeMod(t, dir, "zoomer", g.Build()))
	require.NoError(t, err)

	require.NoError(t, s.Event(ctx, input.ScrollBy(3)))
	assert.Equal(t, float32(3), s.Scene().Camera.Zoom())
}

func TestReloadChanged(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	path := writeMod(t, dir, "mod", spawner("first"))
	h, err := s.Load(ctx, path)
	require.NoError(t, err)

	n, err := s.ReloadChanged(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	writeMod(t, dir, "mod", spawner("second"))
	n, err = s.ReloadChanged(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mods := s.Mods()
	require.Len(t, mods, 1)
	assert.Equal(t, "second", mods[0].Name)
	assert.Equal(t, h, mods[0].Handle, "reload keeps the slot handle")
}

func TestReloadAll(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	bad := writeMod(t, dir, "bad", spawner("bad"))
	_, err := s.Load(ctx, bad)
	require.NoError(t, err)
	_, err = s.Load(ctx, writeMod(t, dir, "good", spawner("good")))
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	err = s.ReloadAll(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCompile(err))

	mods := s.Mods()
	assert.Equal(t, modhost.Failed, mods[0].State)
	assert.Equal(t, modhost.Running, mods[1].State)

	require.NoError(t, s.Update(ctx, 0.016))
	assert.Equal(t, 1, s.World().Len())

	writeMod(t, dir, "bad", spawner("fixed"))
	require.NoError(t, s.ReloadAll(ctx))
	assert.Equal(t, modhost.Running, s.Mods()[0].State)
	assert.Equal(t, "fixed", s.Mods()[0].Name)
}

func TestLoadAll(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	paths := []string{
		writeMod(t, dir, "a", spawner("a")),
		filepath.Join(dir, "nope.wasm"),
		writeMod(t, dir, "b", spawner("b")),
	}
	handles, err := s.LoadAll(ctx, paths)
	require.Error(t, err)
	assert.Len(t, handles, 2)

	mods := s.Mods()
	require.Len(t, mods, 2)
	assert.Equal(t, "a", mods[0].Name)
	assert.Equal(t, "b", mods[1].Name)
}

func TestUnload(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	h, err := s.Load(ctx, writeMod(t, dir, "a", spawner("a")))
	require.NoError(t, err)
	require.NoError(t, s.Unload(ctx, h))
	assert.Empty(t, s.Mods())
	assert.Error(t, s.Unload(ctx, h))

	require.NoError(t, s.Update(ctx, 0.016))
	assert.Zero(t, s.World().Len())
}

// listener subscribes to channel in init and then traps when trap is set.
func listener(name, channel string, trap bool) []byte {
	g := wt.NewGuest(name)
	sub := g.Import("events", "subscribe", []byte{wt.I32, wt.I32}, []byte{wt.I64})
	body := [][]byte{g.PushString(channel), wt.Call(sub), wt.Drop()}
	if trap {
		body = append(body, wt.Unreachable())
	}
	g.Define("init", nil, body...)
	return g.Build()
}

// emitter sends an i32 record on channel every update.
func emitter(name, channel string) []byte {
	g := wt.NewGuest(name)
	sub := g.Import("events", "subscribe", []byte{wt.I32, wt.I32}, []byte{wt.I64})
	emit := g.Import("events", "emit", []byte{wt.I64, wt.I32, wt.I32}, nil)
	ch := g.GlobalI64(0)
	g.Define("init", nil, g.PushString(channel), wt.Call(sub), wt.GlobalSet(ch))
	g.Define("update", nil, wt.GlobalGet(ch), g.Push([]byte{5, 1, 0, 0, 0}), wt.Call(emit))
	return g.Build()
}

func TestUnload_DropsSubscriptions(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	a, err := s.Load(ctx, writeMod(t, dir, "a", listener("a", "x", false)))
	require.NoError(t, err)
	b, err := s.Load(ctx, writeMod(t, dir, "b", emitter("b", "x")))
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, 0.016))
	require.NoError(t, s.Unload(ctx, a))

	for range 1000 {
		require.NoError(t, s.Update(ctx, 0.016))
	}
	assert.Zero(t, s.Bus().Pending(a))
	ch, ok := s.Bus().Lookup("x")
	require.True(t, ok)
	assert.Equal(t, []events.ModHandle{b}, s.Bus().Listeners(ch))
}

func TestLoadFailure_DropsSubscriptions(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	_, err := s.Load(ctx, writeMod(t, dir, "a", listener("a", "x", true)))
	require.Error(t, err)
	assert.True(t, errors.IsTrap(err))

	b, err := s.Load(ctx, writeMod(t, dir, "b", emitter("b", "x")))
	require.NoError(t, err)
	for range 10 {
		require.NoError(t, s.Update(ctx, 0.016))
	}

	ch, ok := s.Bus().Lookup("x")
	require.True(t, ok)
	assert.Equal(t, []events.ModHandle{b}, s.Bus().Listeners(ch), "failed mod must not stay subscribed")
}

func TestModSandbox(t *testing.T) {
	s, dir := newSupervisor(t)
	ctx := context.Background()

	g := wt.NewGuest("saver")
	save := g.Import("file", "save", []byte{wt.I32, wt.I32, wt.I32, wt.I32}, []byte{wt.I32})
	g.Define("init", nil, g.PushString("state.txt"), g.PushString("v1"), wt.Call(save), wt.Drop())
	_, err := s.Load(ctx, writeMod(t, dir, "saver", g.Build()))
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "data", "saver", "state.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v1", string(got))
}
