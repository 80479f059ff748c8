package resource

import (
	"sync"
	"testing"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

type dropCounter struct {
	drops *int
}

func (d dropCounter) Drop() { *d.drops++ }

func TestRegistry_Basic(t *testing.T) {
	reg := NewRegistry[string]()

	h := reg.Insert("test")
	if h == Invalid {
		t.Fatal("Expected non-zero handle")
	}
	if h.Generation() == 0 {
		t.Fatal("Expected generation >= 1")
	}

	val, ok := reg.Get(h)
	if !ok {
		t.Fatal("Get failed")
	}
	if val != "test" {
		t.Fatalf("Expected 'test', got %v", val)
	}

	val, ok = reg.Remove(h)
	if !ok || val != "test" {
		t.Fatalf("Remove = (%v, %v)", val, ok)
	}

	if reg.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestRegistry_StaleHandleNeverResolves(t *testing.T) {
	reg := NewRegistry[string]()

	old := reg.Insert("first")
	reg.Remove(old)

	fresh := reg.Insert("second")
	if fresh.Index() != old.Index() {
		t.Fatalf("Expected slot reuse, got index %d vs %d", fresh.Index(), old.Index())
	}
	if fresh.Generation() == old.Generation() {
		t.Fatal("Expected bumped generation on reuse")
	}
	if fresh == old {
		t.Fatal("Reused slot must produce a distinct handle")
	}

	if _, ok := reg.Get(old); ok {
		t.Fatal("Stale handle resolved")
	}
	if _, ok := reg.Remove(old); ok {
		t.Fatal("Stale handle removed a live value")
	}
	if v, ok := reg.Get(fresh); !ok || v != "second" {
		t.Fatalf("Fresh handle = (%v, %v)", v, ok)
	}
}

func TestRegistry_InvalidHandles(t *testing.T) {
	reg := NewRegistry[int]()
	reg.Insert(1)

	tests := []struct {
		name string
		h    Handle
	}{
		{"zero", Invalid},
		{"index out of range", NewHandle(99, 1)},
		{"wrong generation", NewHandle(0, 7)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := reg.Get(tt.h); ok {
				t.Errorf("Get(%v) resolved", tt.h)
			}
			if reg.Contains(tt.h) {
				t.Errorf("Contains(%v) = true", tt.h)
			}
		})
	}
}

func TestRegistry_Observer(t *testing.T) {
	reg := NewRegistry[string]()
	obs := &testObserver{}
	reg.Subscribe(obs)

	h := reg.Insert("test")
	if len(obs.events) != 1 || obs.events[0].Type != EventCreated || obs.events[0].Handle != h {
		t.Fatalf("unexpected events after insert: %+v", obs.events)
	}

	reg.Remove(h)
	if len(obs.events) != 2 || obs.events[1].Type != EventDropped {
		t.Fatalf("unexpected events after remove: %+v", obs.events)
	}
}

func TestRegistry_ClearDrops(t *testing.T) {
	drops := 0
	reg := NewRegistry[dropCounter]()

	h1 := reg.Insert(dropCounter{&drops})
	reg.Insert(dropCounter{&drops})
	reg.Insert(dropCounter{&drops})

	reg.Clear()

	if drops != 3 {
		t.Fatalf("Expected 3 drops, got %d", drops)
	}
	if reg.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
	if reg.Contains(h1) {
		t.Fatal("Handle survived Clear")
	}
}

func TestRegistry_EachOrderAndUpdate(t *testing.T) {
	reg := NewRegistry[int]()
	var hs []Handle
	for i := 0; i < 5; i++ {
		hs = append(hs, reg.Insert(i))
	}
	reg.Remove(hs[2])

	if !reg.Update(hs[4], func(v int) int { return v * 10 }) {
		t.Fatal("Update failed")
	}
	if reg.Update(hs[2], func(v int) int { return v }) {
		t.Fatal("Update on removed handle succeeded")
	}

	var got []int
	reg.Each(func(_ Handle, v int) bool {
		got = append(got, v)
		return true
	})
	want := []int{0, 1, 3, 40}
	if len(got) != len(want) {
		t.Fatalf("Each visited %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Each visited %v, want %v", got, want)
		}
	}
}

func TestRegistry_Concurrent(t *testing.T) {
	reg := NewRegistry[int]()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				h := reg.Insert(i)
				if v, ok := reg.Get(h); !ok || v != i {
					t.Errorf("Get = (%v, %v)", v, ok)
					return
				}
				reg.Remove(h)
			}
		}()
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Fatalf("Len = %d, want 0", reg.Len())
	}
}

func TestHandle_Packing(t *testing.T) {
	h := NewHandle(7, 3)
	if h.Index() != 7 || h.Generation() != 3 {
		t.Fatalf("unpacked (%d, %d)", h.Index(), h.Generation())
	}
	if uint64(h) != 3<<32|7 {
		t.Fatalf("bits = %#x", uint64(h))
	}
	if h.String() != "7:3" {
		t.Fatalf("String = %q", h.String())
	}
}
