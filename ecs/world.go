package ecs

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/resource"
)

// Entity is an opaque (index, generation) identifier. It shares the
// resource handle layout so it crosses the sandbox boundary as one u64.
type Entity resource.Handle

// Index returns the storage slot index.
func (e Entity) Index() uint32 { return resource.Handle(e).Index() }

// Generation returns the slot generation.
func (e Entity) Generation() uint32 { return resource.Handle(e).Generation() }

func (e Entity) String() string {
	return fmt.Sprintf("Entity(%s)", resource.Handle(e))
}

// ComponentID identifies a registered component name. IDs start at 1.
type ComponentID uint32

// Component is one (id, value) pair stored on an entity.
type Component struct {
	Data ComponentData
	ID   ComponentID
}

type entityData struct {
	components []Component
}

// Reader is the read-only view handed to View callbacks.
type Reader interface {
	Get(e Entity, id ComponentID) (ComponentData, bool)
	Alive(e Entity) bool
	Lookup(name string) (ComponentID, bool)
	EntitiesWith(id ComponentID) []Entity
	Query(required, optional []ComponentID) []Entity
	Each(fn func(e Entity, components []Component) bool)
}

// World stores entities and their components. Storage is a per-entity list
// of pairs; queries cost O(entities × components per entity).
//
// Each mutation takes the write lock for that one operation only, so a
// concurrent reader waits for at most one structural change.
type World struct {
	entities *resource.Registry[*entityData]
	log      *zap.Logger
	names    []string
	mu       sync.RWMutex
}

// NewWorld creates an empty world. A nil logger disables logging.
func NewWorld(log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{
		entities: resource.NewRegistry[*entityData](),
		log:      log,
	}
}

// Spawn allocates a new entity with no components.
func (w *World) Spawn() Entity {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Entity(w.entities.Insert(&entityData{}))
}

// Despawn frees e and drops its components. A stale entity is a no-op.
func (w *World) Despawn(e Entity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.entities.Remove(resource.Handle(e)); !ok {
		w.log.Debug("despawn of stale entity", zap.Stringer("entity", e))
	}
}

// Alive reports whether e refers to a live entity.
func (w *World) Alive(e Entity) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.entities.Contains(resource.Handle(e))
}

// Len returns the number of live entities.
func (w *World) Len() int {
	return w.entities.Len()
}

// RegisterComponent returns the id for name, allocating one on first use.
// Registration is a linear scan; catalogs are built at mod init, not per
// frame.
func (w *World) RegisterComponent(name string) ComponentID {
	w.mu.Lock()
	defer w.mu.Unlock()

	if id, ok := w.lookup(name); ok {
		return id
	}
	w.names = append(w.names, name)
	return ComponentID(len(w.names))
}

// Lookup returns the id of an already registered name.
func (w *World) Lookup(name string) (ComponentID, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lookup(name)
}

// ComponentName returns the name an id was registered under.
func (w *World) ComponentName(id ComponentID) (string, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.known(id) {
		return "", false
	}
	return w.names[id-1], true
}

// Set upserts the value of component id on e. It reports false without
// changing anything when e is stale or id was never registered.
func (w *World) Set(e Entity, id ComponentID, data ComponentData) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.known(id) {
		w.log.Debug("set of unknown component", zap.Stringer("entity", e), zap.Uint32("component", uint32(id)))
		return false
	}
	ed, ok := w.entities.Get(resource.Handle(e))
	if !ok {
		w.log.Debug("set on stale entity", zap.Stringer("entity", e), zap.Uint32("component", uint32(id)))
		return false
	}

	data = data.Clone()
	for i := range ed.components {
		if ed.components[i].ID == id {
			ed.components[i].Data = data
			return true
		}
	}
	ed.components = append(ed.components, Component{ID: id, Data: data})
	return true
}

// Get returns the value of component id on e.
func (w *World) Get(e Entity, id ComponentID) (ComponentData, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.get(e, id)
}

// Remove deletes component id from e and reports whether it was present.
func (w *World) Remove(e Entity, id ComponentID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ed, ok := w.entities.Get(resource.Handle(e))
	if !ok {
		return false
	}
	for i := range ed.components {
		if ed.components[i].ID == id {
			ed.components = append(ed.components[:i], ed.components[i+1:]...)
			return true
		}
	}
	return false
}

// EntitiesWith returns every live entity holding component id.
func (w *World) EntitiesWith(id ComponentID) []Entity {
	return w.Query([]ComponentID{id}, nil)
}

// Query returns the entities holding every id in required. Optional ids
// document intent only and never filter; components named in neither set
// never exclude a match.
func (w *World) Query(required, optional []ComponentID) []Entity {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.query(required)
}

// View runs fn with a read lock held across all of its reads, giving
// fn a consistent snapshot. fn must not call World methods.
func (w *World) View(fn func(Reader)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(view{w})
}

func (w *World) lookup(name string) (ComponentID, bool) {
	for i, n := range w.names {
		if n == name {
			return ComponentID(i + 1), true
		}
	}
	return 0, false
}

func (w *World) known(id ComponentID) bool {
	return id != 0 && int(id) <= len(w.names)
}

func (w *World) get(e Entity, id ComponentID) (ComponentData, bool) {
	ed, ok := w.entities.Get(resource.Handle(e))
	if !ok {
		return ComponentData{}, false
	}
	for _, c := range ed.components {
		if c.ID == id {
			return c.Data.Clone(), true
		}
	}
	return ComponentData{}, false
}

func (w *World) query(required []ComponentID) []Entity {
	var out []Entity
	w.entities.Each(func(h resource.Handle, ed *entityData) bool {
		if hasAll(ed.components, required) {
			out = append(out, Entity(h))
		}
		return true
	})
	return out
}

func (w *World) each(fn func(Entity, []Component) bool) {
	w.entities.Each(func(h resource.Handle, ed *entityData) bool {
		cs := make([]Component, len(ed.components))
		for i, c := range ed.components {
			cs[i] = Component{ID: c.ID, Data: c.Data.Clone()}
		}
		return fn(Entity(h), cs)
	})
}

func hasAll(components []Component, required []ComponentID) bool {
	for _, id := range required {
		found := false
		for _, c := range components {
			if c.ID == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// view reads a World whose read lock is already held.
type view struct {
	w *World
}

func (v view) Get(e Entity, id ComponentID) (ComponentData, bool) { return v.w.get(e, id) }

func (v view) Alive(e Entity) bool { return v.w.entities.Contains(resource.Handle(e)) }

func (v view) Lookup(name string) (ComponentID, bool) { return v.w.lookup(name) }

func (v view) EntitiesWith(id ComponentID) []Entity { return v.w.query([]ComponentID{id}) }

func (v view) Query(required, _ []ComponentID) []Entity { return v.w.query(required) }

func (v view) Each(fn func(Entity, []Component) bool) { v.w.each(fn) }
