// Package modhost hosts one sandboxed mod.
//
// A Host compiles a WebAssembly binary, checks its exports against the mod
// ABI, links the host function table into a fresh wazero runtime and runs
// the guest's new and init entry points. After that the Host is Running
// and the caller drives it with Update, KeyEvent, Scroll and Event.
//
// Every value crossing the boundary is validated on the host side. A bad
// pointer, invalid UTF-8 or a malformed record aborts the guest call with
// a boundary error and moves the Host to Failed; so does a guest trap. A
// Failed Host rejects calls until Reload installs a new instance.
//
// Host functions are grouped by namespace: time, log, input, camera, ecs,
// events, audio, sprite, object, gui, file and rand. Namespaces lists the
// full table.
package modhost
