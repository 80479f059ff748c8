// Package supervisor runs a set of mods against one shared world.
//
// The Supervisor creates the services every mod binds to (entity store,
// event bus, scene, input state, audio thread, GUI backend and per-mod
// file sandboxes) and hands the same instances to each modhost.Host. Mods
// are identified by the slot handle they were loaded into; that handle is
// also their identity on the event bus and survives reloads.
//
// A failing mod never takes its siblings down: load and tick errors are
// reported per slot and the remaining mods keep running.
package supervisor
