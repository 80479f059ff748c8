package modhost

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/input"
	wt "github.com/wippyai/mod-runtime/internal/wasmtest"
	"github.com/wippyai/mod-runtime/scene"
)

var (
	pString = []byte{wt.I32, wt.I32}
	rI64    = []byte{wt.I64}
	rI32    = []byte{wt.I32}
)

func testEnv() Env {
	world := ecs.NewWorld(nil)
	return Env{
		World: world,
		Bus:   events.NewBus(nil),
		Scene: scene.New(world, nil),
		Input: input.NewState(),
	}
}

func load(t *testing.T, env Env, handle events.ModHandle, wasm []byte) *Host {
	t.Helper()
	h := New(env, Options{Handle: handle, Path: "test.wasm", Seed: 1})
	require.NoError(t, h.Load(context.Background(), wasm))
	t.Cleanup(func() { _ = h.Close(context.Background()) })
	return h
}

func emptyGuest(name string) []byte {
	return wt.NewGuest(name).Build()
}

func TestLoad_Running(t *testing.T) {
	h := load(t, testEnv(), 1, emptyGuest("demo"))

	assert.Equal(t, Running, h.State())
	assert.Equal(t, "demo", h.Name())
	assert.NoError(t, h.Err())
	require.NoError(t, h.Update(context.Background(), 0.016))
}

func TestLoad_UnnamedMod(t *testing.T) {
	h := load(t, testEnv(), 1, emptyGuest(""))
	assert.Equal(t, UnnamedMod, h.Name())
}

func TestLoad_Twice(t *testing.T) {
	h := load(t, testEnv(), 1, emptyGuest("demo"))
	err := h.Load(context.Background(), emptyGuest("demo"))
	require.Error(t, err)
	assert.Equal(t, Running, h.State())
}

func TestWaveStart(t *testing.T) {
	env := testEnv()

	a := wt.NewGuest("listener")
	subscribe := a.Import("events", "subscribe", pString, rI64)
	register := a.Import("ecs", "register-component", pString, rI32)
	spawn := a.Import("ecs", "spawn-entity", nil, rI64)
	set := a.Import("ecs", "set-component", []byte{wt.I64, wt.I32, wt.I32, wt.I32}, nil)
	entity := a.GlobalI64(0)
	comp := a.GlobalI32(0)
	a.Define("init", nil,
		a.PushString("wave_start"), wt.Call(subscribe), wt.Drop(),
		a.PushString("got"), wt.Call(register), wt.GlobalSet(comp),
		wt.Call(spawn), wt.GlobalSet(entity),
	)
	a.Define("event", nil,
		wt.GlobalGet(entity), wt.GlobalGet(comp), wt.LocalGet(1), wt.LocalGet(2), wt.Call(set),
	)

	b := wt.NewGuest("spawner")
	bsub := b.Import("events", "subscribe", pString, rI64)
	emit := b.Import("events", "emit", []byte{wt.I64, wt.I32, wt.I32}, nil)
	wave := b.GlobalI64(0)
	b.Define("init", nil, b.PushString("wave_start"), wt.Call(bsub), wt.GlobalSet(wave))
	b.Define("update", nil, wt.GlobalGet(wave), b.Push([]byte{5, 3, 0, 0, 0}), wt.Call(emit))

	ctx := context.Background()
	ha := load(t, env, 1, a.Build())
	hb := load(t, env, 2, b.Build())

	require.NoError(t, ha.Update(ctx, 0.016))
	require.NoError(t, hb.Update(ctx, 0.016))
	assert.Equal(t, 1, env.Bus.Pending(1))
	assert.Equal(t, 0, env.Bus.Pending(2), "sender must not receive its own event")
	require.NoError(t, ha.Update(ctx, 0.016))

	id, ok := env.World.Lookup("got")
	require.True(t, ok)
	ents := env.World.EntitiesWith(id)
	require.Len(t, ents, 1)
	got, ok := env.World.Get(ents[0], id)
	require.True(t, ok)
	v, ok := got.AsI32()
	require.True(t, ok)
	assert.Equal(t, int32(3), v)
}

func TestLoad_MissingExport(t *testing.T) {
	g := wt.NewGuest("broken")
	g.Omit("update")

	h := New(testEnv(), Options{Handle: 1})
	err := h.Load(context.Background(), g.Build())
	require.Error(t, err)
	assert.True(t, errors.IsLink(err))
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindMissingExport, e.Kind)
	assert.Equal(t, Failed, h.State())

	require.NoError(t, h.Load(context.Background(), emptyGuest("fixed")))
	assert.Equal(t, Running, h.State())
	assert.Equal(t, "fixed", h.Name())
	_ = h.Close(context.Background())
}

func TestLoad_MissingMemory(t *testing.T) {
	g := wt.NewGuest("")
	g.WithoutMemory()

	h := New(testEnv(), Options{Handle: 1})
	err := h.Load(context.Background(), g.Build())
	assert.True(t, errors.IsLink(err))
}

func TestLoad_ExportSignatureMismatch(t *testing.T) {
	g := wt.NewGuest("")
	g.DefineAs("key_event", wt.FuncType{Params: []byte{wt.I64}}, nil)

	h := New(testEnv(), Options{Handle: 1})
	err := h.Load(context.Background(), g.Build())
	require.Error(t, err)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindSignatureMismatch, e.Kind)
}

func TestLoad_BadImports(t *testing.T) {
	tests := []struct {
		name   string
		ns, fn string
		params []byte
		kind   errors.Kind
	}{
		{"unknown", "nope", "fn", nil, errors.KindMissingImport},
		{"mistyped", "log", "info", []byte{wt.I32}, errors.KindSignatureMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := wt.NewGuest("")
			g.Import(tt.ns, tt.fn, tt.params, nil)

			h := New(testEnv(), Options{Handle: 1})
			err := h.Load(context.Background(), g.Build())
			require.Error(t, err)
			assert.True(t, errors.IsLink(err))
			e, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, []string{tt.ns, tt.fn}, e.Path)
		})
	}
}

func TestLoad_GarbageIsCompileError(t *testing.T) {
	h := New(testEnv(), Options{Handle: 1})
	err := h.Load(context.Background(), []byte("not wasm"))
	assert.True(t, errors.IsCompile(err))
	assert.Equal(t, Failed, h.State())
}

func TestLoad_InitTrap(t *testing.T) {
	g := wt.NewGuest("")
	g.Define("init", nil, wt.Unreachable())

	h := New(testEnv(), Options{Handle: 1})
	err := h.Load(context.Background(), g.Build())
	assert.True(t, errors.IsTrap(err))
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, []string{"init"}, e.Path)
}

func TestUpdate_TrapFailsMod(t *testing.T) {
	g := wt.NewGuest("crashy")
	g.Define("update", nil, wt.Unreachable())
	h := load(t, testEnv(), 1, g.Build())

	err := h.Update(context.Background(), 0.016)
	require.Error(t, err)
	assert.True(t, errors.IsTrap(err))
	assert.Equal(t, Failed, h.State())
	assert.Equal(t, err, h.Err())

	err = h.Update(context.Background(), 0.016)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindFailed, e.Kind)
	assert.Equal(t, "crashy", e.Mod)
}

func TestUpdate_BoundaryFault(t *testing.T) {
	g := wt.NewGuest("")
	info := g.Import("log", "info", pString, nil)
	g.Define("update", nil, wt.I32Const(65530), wt.I32Const(100), wt.Call(info))
	h := load(t, testEnv(), 1, g.Build())

	err := h.Update(context.Background(), 0.016)
	require.Error(t, err)
	assert.True(t, errors.IsBoundary(err))
	assert.False(t, errors.IsTrap(err))
	assert.Equal(t, Failed, h.State())
}

func TestUpdate_InvalidRecord(t *testing.T) {
	g := wt.NewGuest("")
	spawn := g.Import("ecs", "spawn-entity", nil, rI64)
	set := g.Import("ecs", "set-component", []byte{wt.I64, wt.I32, wt.I32, wt.I32}, nil)
	g.Define("update", nil, wt.Call(spawn), wt.I32Const(0), g.Push([]byte{42}), wt.Call(set))
	h := load(t, testEnv(), 1, g.Build())

	err := h.Update(context.Background(), 0.016)
	e, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.KindInvalidRecord, e.Kind)
}

func TestUpdate_DeltaTime(t *testing.T) {
	env := testEnv()
	g := wt.NewGuest("")
	delta := g.Import("time", "delta", nil, []byte{wt.F32})
	zoom := g.Import("camera", "set-zoom", []byte{wt.F32}, nil)
	g.Define("update", nil, wt.Call(delta), wt.Call(zoom))
	h := load(t, env, 1, g.Build())

	require.NoError(t, h.Update(context.Background(), 0.5))
	assert.Equal(t, float32(0.5), env.Scene.Camera.Zoom())
}

func TestScroll(t *testing.T) {
	env := testEnv()
	g := wt.NewGuest("")
	zoom := g.Import("camera", "set-zoom", []byte{wt.F32}, nil)
	g.Define("scroll", nil, wt.LocalGet(0), wt.Call(zoom))
	h := load(t, env, 1, g.Build())

	require.NoError(t, h.Scroll(context.Background(), 2))
	assert.Equal(t, float32(2), env.Scene.Camera.Zoom())
}

func TestKeySubscriptions(t *testing.T) {
	env := testEnv()
	g := wt.NewGuest("")
	sub := g.Import("input", "subscribe-key", rI32, nil)
	spawn := g.Import("ecs", "spawn-entity", nil, rI64)
	g.Define("init", nil, wt.I32Const(int32(input.KeySpace)), wt.Call(sub))
	g.Define("key_event", nil, wt.Call(spawn), wt.Drop())
	h := load(t, env, 1, g.Build())

	assert.True(t, h.Subscribed(input.KeySpace))
	assert.False(t, h.Subscribed(input.KeyEnter))

	require.NoError(t, h.KeyEvent(context.Background(), input.KeySpace))
	assert.Equal(t, 1, env.World.Len())
}

type memFiles map[string][]byte

func (m memFiles) Load(path string) ([]byte, error) {
	b, ok := m[path]
	if !ok {
		return nil, errors.NotFound(errors.PhaseHost, "file", path)
	}
	return b, nil
}

func (m memFiles) Save(path string, data []byte) error {
	m[path] = append([]byte(nil), data...)
	return nil
}

func TestFileSaveAndLoad(t *testing.T) {
	files := memFiles{"in.txt": []byte("hello")}
	g := wt.NewGuest("")
	save := g.Import("file", "save", []byte{wt.I32, wt.I32, wt.I32, wt.I32}, rI32)
	loadFn := g.Import("file", "load", pString, rI64)
	region := g.GlobalI64(0)
	g.Define("init", nil,
		g.PushString("out.txt"), g.PushString("saved"), wt.Call(save), wt.Drop(),
		g.PushString("in.txt"), wt.Call(loadFn), wt.GlobalSet(region),
		// Write the loaded bytes back out so the test can see them.
		g.PushString("copy.txt"),
		wt.GlobalGet(region), wt.I32WrapI64(),
		wt.GlobalGet(region), wt.I64Const(32), wt.I64ShrU(), wt.I32WrapI64(),
		wt.Call(save), wt.Drop(),
	)

	h := New(testEnv(), Options{Handle: 1, Files: files})
	require.NoError(t, h.Load(context.Background(), g.Build()))
	defer h.Close(context.Background())

	assert.Equal(t, "saved", string(files["out.txt"]))
	assert.Equal(t, "hello", string(files["copy.txt"]))
}

func TestReload(t *testing.T) {
	ctx := context.Background()
	h := load(t, testEnv(), 7, emptyGuest("one"))

	require.NoError(t, h.Reload(ctx, emptyGuest("two")))
	assert.Equal(t, "two", h.Name())
	assert.Equal(t, events.ModHandle(7), h.Handle())
	assert.Equal(t, Running, h.State())

	err := h.Reload(ctx, []byte{0, 'a', 's', 'm'})
	require.Error(t, err)
	assert.Equal(t, Failed, h.State())
	assert.Error(t, h.Update(ctx, 0.016))

	require.NoError(t, h.Reload(ctx, emptyGuest("three")))
	assert.Equal(t, Running, h.State())
	assert.NoError(t, h.Update(ctx, 0.016))
}

func TestReload_KeepsEventSubscriptions(t *testing.T) {
	env := testEnv()
	g := wt.NewGuest("")
	sub := g.Import("events", "subscribe", pString, rI64)
	g.Define("init", nil, g.PushString("tick"), wt.Call(sub), wt.Drop())
	h := load(t, env, 3, g.Build())

	require.NoError(t, h.Reload(context.Background(), emptyGuest("plain")))
	hd, ok := env.Bus.Lookup("tick")
	require.True(t, ok)
	assert.Equal(t, []events.ModHandle{3}, env.Bus.Listeners(hd))
}

func TestClose(t *testing.T) {
	h := load(t, testEnv(), 1, emptyGuest("demo"))
	require.NoError(t, h.Close(context.Background()))
	assert.Equal(t, Unloaded, h.State())
	assert.Error(t, h.Update(context.Background(), 0.016))
}
