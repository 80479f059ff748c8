// Package resource provides generational handle registries for host-owned
// resources referenced from inside the sandbox.
//
// A handle is a (slot index, generation) pair packed into a uint64. Guests
// store and forward handles verbatim; only the host can resolve them.
//
//	sounds := resource.NewRegistry[*Sound]()
//
//	h := sounds.Insert(snd)
//	s, ok := sounds.Get(h) // ok
//	sounds.Remove(h)
//	s, ok = sounds.Get(h)  // !ok, forever
//
// # Stale Handles
//
// Removing a value bumps its slot's generation. The slot index is reused
// for the next Insert, but the new handle carries the newer generation, so
// an old handle can never resolve to the wrong resource.
//
// # Observers
//
// Register observers to track resource lifecycle events:
//
//	reg.Subscribe(obs) // obs.OnResourceEvent(resource.Event{...})
//
// # Cleanup
//
// Values implementing Dropper have Drop called when removed or cleared.
package resource
