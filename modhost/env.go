package modhost

import (
	"context"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/gui"
	"github.com/wippyai/mod-runtime/input"
	"github.com/wippyai/mod-runtime/resource"
	"github.com/wippyai/mod-runtime/scene"
)

// Audio is the part of the audio manager mods can reach.
type Audio interface {
	Load(ctx context.Context, path string) (resource.Handle, error)
	Play(h resource.Handle)
}

// Files is a mod's private file sandbox.
type Files interface {
	Load(path string) ([]byte, error)
	Save(path string, data []byte) error
}

// Env holds the shared services every Host binds its host functions to.
// World, Bus and Scene are required; the rest may be nil, in which case
// the matching host functions degrade to no-ops.
type Env struct {
	World *ecs.World
	Bus   *events.Bus
	Scene *scene.Scene
	Input *input.State
	Audio Audio
	GUI   gui.Backend
	// Cache is shared by every runtime so reloads and sibling mods skip
	// recompilation of identical binaries.
	Cache wazero.CompilationCache
}

// Options configures one Host.
type Options struct {
	Logger *zap.Logger
	Files  Files
	// Path is the module's source path, used in logs.
	Path string
	// Handle is the mod's identity on the event bus. It survives reloads.
	Handle events.ModHandle
	// Seed seeds the mod's random source. Zero picks a random seed.
	Seed uint64
	// MemoryPages caps guest memory in 64KiB pages. Zero keeps the
	// engine default.
	MemoryPages uint32
}
