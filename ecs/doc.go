// Package ecs implements the entity-component store shared by every mod.
//
// Entities are generational handles; components are registered by name and
// hold tagged ComponentData values:
//
//	w := ecs.NewWorld(log)
//	hp := w.RegisterComponent("hp")
//
//	e := w.Spawn()
//	w.Set(e, hp, ecs.I32(10))
//	v, ok := w.Get(e, hp) // I32(10), true
//
//	w.Despawn(e)
//	v, ok = w.Get(e, hp)  // None, false
//
// The store targets tens to hundreds of entities. It keeps a list of
// (ComponentID, ComponentData) pairs per entity and answers queries by
// scanning, with no archetype tables.
//
// Operations on stale entities or unregistered component ids are logic
// errors: they are logged at debug level and degrade to "not found".
package ecs
