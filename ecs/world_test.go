package ecs

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/mod-runtime/resource"
)

func TestRegisterComponent_Deduplicates(t *testing.T) {
	w := NewWorld(nil)

	for _, name := range []string{"hp", "position", "", "sprite"} {
		first := w.RegisterComponent(name)
		second := w.RegisterComponent(name)
		assert.Equal(t, first, second, "name %q", name)
		assert.NotZero(t, first)

		got, ok := w.ComponentName(first)
		require.True(t, ok)
		assert.Equal(t, name, got)
	}

	a := w.RegisterComponent("a")
	b := w.RegisterComponent("b")
	assert.NotEqual(t, a, b)

	_, ok := w.ComponentName(0)
	assert.False(t, ok)
	_, ok = w.Lookup("missing")
	assert.False(t, ok)
}

func TestSetGet_ReadYourWrite(t *testing.T) {
	w := NewWorld(nil)
	e := w.Spawn()
	hp := w.RegisterComponent("hp")
	pos := w.RegisterComponent("position")

	values := []ComponentData{
		None(),
		String("goblin"),
		Vector(Vector2{X: 1.5, Y: -2}),
		RGBA(Color{R: 1, G: 0.5, B: 0.25, A: 1}),
		Raw([]byte{1, 2, 3}),
		I32(-7),
		I64(math.MaxInt64),
		Sprite(resource.NewHandle(3, 2)),
	}
	for _, v := range values {
		require.True(t, w.Set(e, hp, v))
		got, ok := w.Get(e, hp)
		require.True(t, ok)
		assert.True(t, got.Equal(v), "got %v, want %v", got, v)
	}

	_, ok := w.Get(e, pos)
	assert.False(t, ok, "unset component must read as absent")
}

func TestSet_UpsertsAndInserts(t *testing.T) {
	w := NewWorld(nil)
	e := w.Spawn()
	hp := w.RegisterComponent("hp")

	require.True(t, w.Set(e, hp, I32(10)))
	require.True(t, w.Set(e, hp, I32(4)))

	got, ok := w.Get(e, hp)
	require.True(t, ok)
	v, _ := got.AsI32()
	assert.Equal(t, int32(4), v)

	var count int
	w.View(func(r Reader) {
		r.Each(func(_ Entity, cs []Component) bool {
			count = len(cs)
			return true
		})
	})
	assert.Equal(t, 1, count, "upsert must not duplicate the pair")
}

func TestSet_LogicErrors(t *testing.T) {
	w := NewWorld(nil)
	e := w.Spawn()
	hp := w.RegisterComponent("hp")

	assert.False(t, w.Set(e, ComponentID(99), I32(1)), "unregistered id")
	assert.False(t, w.Set(e, 0, I32(1)), "zero id")

	w.Despawn(e)
	assert.False(t, w.Set(e, hp, I32(1)), "stale entity")
}

func TestDespawn_RemovesEverywhere(t *testing.T) {
	w := NewWorld(nil)
	hp := w.RegisterComponent("hp")
	tag := w.RegisterComponent("tag")

	e := w.Spawn()
	other := w.Spawn()
	w.Set(e, hp, I32(1))
	w.Set(e, tag, String("x"))
	w.Set(other, hp, I32(2))

	w.Despawn(e)

	for _, id := range []ComponentID{hp, tag} {
		_, ok := w.Get(e, id)
		assert.False(t, ok)
		assert.NotContains(t, w.EntitiesWith(id), e)
	}
	assert.NotContains(t, w.Query([]ComponentID{hp}, []ComponentID{tag}), e)
	assert.False(t, w.Alive(e))
	assert.Equal(t, 1, w.Len())

	// Idempotent.
	w.Despawn(e)
	assert.Equal(t, 1, w.Len())

	// The slot is reused but the old entity stays dead.
	fresh := w.Spawn()
	assert.Equal(t, e.Index(), fresh.Index())
	assert.NotEqual(t, e, fresh)
	_, ok := w.Get(e, hp)
	assert.False(t, ok)
	assert.NotContains(t, w.Query(nil, nil), e)
}

func TestQuery_HPScenario(t *testing.T) {
	w := NewWorld(nil)
	e1 := w.Spawn()
	e2 := w.Spawn()
	e3 := w.Spawn()
	hp := w.RegisterComponent("hp")

	w.Set(e1, hp, I32(10))
	w.Set(e2, hp, I32(5))

	got := w.Query([]ComponentID{hp}, nil)
	assert.ElementsMatch(t, []Entity{e1, e2}, got)
	assert.NotContains(t, got, e3)
}

func TestQuery_RequiredOnly(t *testing.T) {
	w := NewWorld(nil)
	a := w.RegisterComponent("a")
	b := w.RegisterComponent("b")
	c := w.RegisterComponent("c")
	d := w.RegisterComponent("d")

	// Every subset of {a, b, c}.
	ids := []ComponentID{a, b, c}
	want := map[Entity]bool{}
	for mask := 0; mask < 8; mask++ {
		e := w.Spawn()
		for bit, id := range ids {
			if mask&(1<<bit) != 0 {
				w.Set(e, id, I32(int32(mask)))
			}
		}
		if mask&1 != 0 && mask&2 != 0 {
			want[e] = true
		}
	}

	got := w.Query([]ComponentID{a, b}, nil)
	require.Len(t, got, len(want))
	for _, e := range got {
		assert.True(t, want[e], "unexpected %v", e)
	}

	withOptional := w.Query([]ComponentID{a, b}, []ComponentID{c, d})
	assert.Equal(t, got, withOptional, "optional ids must not filter")

	assert.Len(t, w.Query(nil, nil), 8, "no required ids matches every entity")
	assert.Empty(t, w.EntitiesWith(d))
}

func TestRemove(t *testing.T) {
	w := NewWorld(nil)
	e := w.Spawn()
	hp := w.RegisterComponent("hp")

	assert.False(t, w.Remove(e, hp))
	w.Set(e, hp, I32(3))
	assert.True(t, w.Remove(e, hp))
	_, ok := w.Get(e, hp)
	assert.False(t, ok)
	assert.Empty(t, w.EntitiesWith(hp))
}

func TestRawIsCopied(t *testing.T) {
	w := NewWorld(nil)
	e := w.Spawn()
	blob := w.RegisterComponent("blob")

	src := []byte{1, 2, 3}
	w.Set(e, blob, Raw(src))
	src[0] = 99

	got, _ := w.Get(e, blob)
	raw, ok := got.AsRaw()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, raw)

	raw[1] = 42
	again, _ := w.Get(e, blob)
	raw2, _ := again.AsRaw()
	assert.Equal(t, []byte{1, 2, 3}, raw2)
}

func TestView_ConcurrentWithWriters(t *testing.T) {
	w := NewWorld(nil)
	pos := w.RegisterComponent("position")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			e := w.Spawn()
			w.Set(e, pos, Vector(Vector2{X: float32(i)}))
			if i%2 == 0 {
				w.Despawn(e)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			w.View(func(r Reader) {
				for _, e := range r.EntitiesWith(pos) {
					_, ok := r.Get(e, pos)
					assert.True(t, ok)
				}
			})
		}
	}()
	wg.Wait()

	assert.Equal(t, 100, w.Len())
}

func TestComponentData_Accessors(t *testing.T) {
	assert.True(t, None().IsNone())

	_, ok := String("x").AsI32()
	assert.False(t, ok)

	v, ok := Vector(Vector2{X: 1, Y: 2}).AsVector2()
	assert.True(t, ok)
	assert.Equal(t, Vector2{X: 1, Y: 2}, v)

	nan := float32(math.NaN())
	assert.True(t, Vector(Vector2{X: nan}).Equal(Vector(Vector2{X: nan})))
	assert.False(t, Vector(Vector2{X: 0}).Equal(Vector(Vector2{X: float32(math.Copysign(0, -1))})))
	assert.False(t, I32(1).Equal(I64(1)))

	assert.Equal(t, "I32(3)", I32(3).String())
	assert.Equal(t, "vector2", KindVector2.String())
	assert.False(t, Kind(42).Valid())
}
