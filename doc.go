// Package modruntime hosts sandboxed WebAssembly mods that observe and
// mutate host-owned game state.
//
// A mod is a core WebAssembly module. It never sees host memory: everything
// it learns about the world crosses the sandbox boundary as primitives,
// opaque 64-bit handles, or explicit byte ranges inside its own linear
// memory.
//
// # Architecture Overview
//
//	modruntime/      Root package with the guest Memory and Allocator interfaces
//	├── abi/         Marshalling protocol: guest memory access, packed regions, record codec
//	├── resource/    Generational slot registry for host-owned resources
//	├── ecs/         Entity-component store shared by all mods
//	├── events/      Named publish/subscribe bus with per-mod mailboxes
//	├── audio/       Audio command goroutine (blocking load, fire-and-forget play)
//	├── scene/       Camera, spawned objects and sprites read by renderers
//	├── gui/         Declarative windows with synchronous interaction results
//	├── input/       Shared keyboard and mouse state
//	├── storage/     Per-mod sandboxed file load/save
//	├── modhost/     One mod instance: lifecycle and host function table
//	├── supervisor/  All mod hosts: frame ticks, input routing, hot reload
//	├── snapshot/    WebSocket feed of renderer frames
//	├── config/      YAML + environment configuration
//	├── logging/     zap logger construction
//	├── errors/      Structured error types
//	├── internal/wasmtest/  In-memory module builder for tests
//	└── cmd/modhost/ Headless runner and terminal UI
//
// # Quick Start
//
//	sup, err := supervisor.New(supervisor.Options{Logger: log, AssetDir: "assets"})
//	if err != nil {
//	    log.Fatal("supervisor", zap.Error(err))
//	}
//	defer sup.Close(ctx)
//
//	if _, err := sup.Load(ctx, "mods/spawner.wasm"); err != nil {
//	    log.Error("load", zap.Error(err))
//	}
//
//	for frame := range ticker.C {
//	    sup.Update(ctx, dt)
//	}
//
// # Guest Contract
//
// Every mod exports new, init, update, key_event, scroll, event,
// get_mod_name, alloc and its linear memory. The host import catalog is
// documented in package modhost.
//
// # Thread Safety
//
// The supervisor and every mod host are driven by one simulation
// goroutine. The ECS world, the scene and the event bus are safe for
// concurrent readers such as renderers and snapshot servers.
package modruntime
