package supervisor

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wippyai/mod-runtime/audio"
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/gui"
	"github.com/wippyai/mod-runtime/input"
	"github.com/wippyai/mod-runtime/modhost"
	"github.com/wippyai/mod-runtime/resource"
	"github.com/wippyai/mod-runtime/scene"
	"github.com/wippyai/mod-runtime/storage"
)

// Options configures a Supervisor. Zero values pick headless backends
// rooted at AssetDir.
type Options struct {
	Logger *zap.Logger
	// AssetDir holds sounds and sprites. Created if missing.
	AssetDir string
	// DataDir holds one save directory per mod. Created if missing.
	DataDir     string
	Seed        uint64
	MemoryPages uint32
	AudioQueue  int

	Audio  audio.Backend
	Images scene.ImageDecoder
	GUI    gui.Backend
}

// ModInfo describes one slot for front ends.
type ModInfo struct {
	Err    error
	Name   string
	Path   string
	State  modhost.State
	Handle events.ModHandle
}

type slot struct {
	host   *modhost.Host
	path   string
	digest uint64
}

// Supervisor owns the shared services and every loaded mod. Update,
// Event and the load and reload methods are driven from one goroutine;
// Mods may be called from any goroutine.
type Supervisor struct {
	opts  Options
	log   *zap.Logger
	world *ecs.World
	bus   *events.Bus
	scene *scene.Scene
	input *input.State
	audio *audio.Manager
	gui   gui.Backend
	store *storage.Store
	cache wazero.CompilationCache

	slots   *resource.Registry[*slot]
	order   []resource.Handle
	mu      sync.RWMutex
	closers []func() error
}

// New builds the shared services. Nothing is loaded yet.
func New(opts Options) (*Supervisor, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.AssetDir == "" {
		opts.AssetDir = "."
	}
	if opts.DataDir == "" {
		opts.DataDir = "data"
	}
	if err := os.MkdirAll(opts.AssetDir, 0o755); err != nil {
		return nil, errors.Load("create asset dir", err)
	}

	s := &Supervisor{
		opts:  opts,
		log:   opts.Logger,
		input: input.NewState(),
		slots: resource.NewRegistry[*slot](),
		cache: wazero.NewCompilationCache(),
	}
	s.world = ecs.NewWorld(s.log.Named("ecs"))
	s.bus = events.NewBus(s.log.Named("events"))

	fail := func(err error) (*Supervisor, error) {
		_ = s.Close(context.Background())
		return nil, err
	}

	images := opts.Images
	if images == nil {
		d, err := scene.NewDirDecoder(opts.AssetDir)
		if err != nil {
			return fail(err)
		}
		s.closers = append(s.closers, d.Close)
		images = d
	}
	s.scene = scene.New(s.world, images)

	backend := opts.Audio
	if backend == nil {
		b, err := audio.NewHeadless(opts.AssetDir, s.log.Named("audio"))
		if err != nil {
			return fail(err)
		}
		backend = b
	}
	s.audio = audio.NewManager(backend, audio.Options{Logger: s.log.Named("audio"), Queue: opts.AudioQueue})

	s.gui = opts.GUI
	if s.gui == nil {
		s.gui = gui.NewHeadless()
	}

	store, err := storage.NewStore(opts.DataDir, s.log.Named("storage"))
	if err != nil {
		return fail(err)
	}
	s.store = store
	return s, nil
}

func (s *Supervisor) World() *ecs.World   { return s.world }
func (s *Supervisor) Bus() *events.Bus    { return s.bus }
func (s *Supervisor) Scene() *scene.Scene { return s.scene }
func (s *Supervisor) Input() *input.State { return s.input }
func (s *Supervisor) GUI() gui.Backend    { return s.gui }

func (s *Supervisor) env() modhost.Env {
	return modhost.Env{
		World: s.world,
		Bus:   s.bus,
		Scene: s.scene,
		Input: s.input,
		Audio: s.audio,
		GUI:   s.gui,
		Cache: s.cache,
	}
}

func (s *Supervisor) live() []*slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*slot, 0, len(s.order))
	for _, h := range s.order {
		if sl, ok := s.slots.Get(h); ok {
			out = append(out, sl)
		}
	}
	return out
}

// Load reads the module at path and starts it in a new slot. A failed
// load leaves no slot behind.
func (s *Supervisor) Load(ctx context.Context, path string) (events.ModHandle, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Load(fmt.Sprintf("read %s", path), err)
	}
	return s.load(ctx, path, wasm)
}

func (s *Supervisor) load(ctx context.Context, path string, wasm []byte) (events.ModHandle, error) {
	files, err := s.store.Sandbox(storage.Stem(path))
	if err != nil {
		return 0, errors.Load("open mod sandbox", err)
	}

	sl := &slot{path: path, digest: xxhash.Sum64(wasm)}
	h := s.slots.Insert(sl)
	sl.host = modhost.New(s.env(), modhost.Options{
		Logger:      s.log.Named("mod"),
		Files:       files,
		Path:        path,
		Handle:      events.ModHandle(h),
		Seed:        s.seed(h),
		MemoryPages: s.opts.MemoryPages,
	})
	if err := sl.host.Load(ctx, wasm); err != nil {
		s.slots.Remove(h)
		// init may have subscribed before the failure.
		s.bus.Forget(events.ModHandle(h))
		return 0, err
	}

	s.mu.Lock()
	s.order = append(s.order, h)
	s.mu.Unlock()
	return events.ModHandle(h), nil
}

// seed derives a per-slot seed so mods sharing a configured seed still
// see distinct sequences.
func (s *Supervisor) seed(h resource.Handle) uint64 {
	if s.opts.Seed == 0 {
		return 0
	}
	return s.opts.Seed ^ xxhash.Sum64String(h.String())
}

// LoadAll reads and precompiles every path in parallel, then loads them in
// order. Failed paths are skipped; their errors are joined.
func (s *Supervisor) LoadAll(ctx context.Context, paths []string) ([]events.ModHandle, error) {
	bins := make([][]byte, len(paths))
	readErrs := make([]error, len(paths))

	// Compiled modules stay in the shared cache while rt is open, so the
	// per-mod runtimes below find them there.
	rt := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(s.cache))
	defer rt.Close(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range paths {
		g.Go(func() error {
			wasm, err := os.ReadFile(path)
			if err != nil {
				readErrs[i] = errors.Load(fmt.Sprintf("read %s", path), err)
				return nil
			}
			bins[i] = wasm
			if _, err := rt.CompileModule(gctx, wasm); err != nil {
				s.log.Debug("precompile failed", zap.String("path", path), zap.Error(err))
			}
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var handles []events.ModHandle
	var errs []error
	for i, path := range paths {
		if readErrs[i] != nil {
			errs = append(errs, readErrs[i])
			continue
		}
		h, err := s.load(ctx, path, bins[i])
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handles = append(handles, h)
	}
	return handles, stderrors.Join(errs...)
}

// Unload closes the mod in slot h, frees the slot and removes the mod
// from every event channel.
func (s *Supervisor) Unload(ctx context.Context, h events.ModHandle) error {
	sl, ok := s.slots.Remove(resource.Handle(h))
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "mod", resource.Handle(h).String())
	}
	s.mu.Lock()
	for i, o := range s.order {
		if o == resource.Handle(h) {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	s.bus.Forget(h)
	return sl.host.Close(ctx)
}

// Update ticks every running mod once in load order. A failing mod is
// marked failed; the rest still tick. Errors are joined.
func (s *Supervisor) Update(ctx context.Context, dt float32) error {
	if f, ok := s.gui.(interface{ BeginFrame() }); ok {
		f.BeginFrame()
	}
	var errs []error
	for _, sl := range s.live() {
		if !sl.host.State().Live() {
			// Nobody drains a failed mod's mailbox until it reloads.
			s.bus.Drain(sl.host.Handle())
			continue
		}
		if err := sl.host.Update(ctx, dt); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// Event applies ev to the shared input state and dispatches it. Key
// presses reach only mods subscribed to that key; scrolls reach every
// running mod.
func (s *Supervisor) Event(ctx context.Context, ev input.Event) error {
	s.input.Apply(ev)

	var errs []error
	for _, sl := range s.live() {
		h := sl.host
		if !h.State().Live() {
			continue
		}
		var err error
		switch ev.Type {
		case input.KeyPressed:
			if h.Subscribed(ev.Key) {
				err = h.KeyEvent(ctx, ev.Key)
			}
		case input.Scroll:
			err = h.Scroll(ctx, ev.Amount)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// ReloadAll rebuilds every slot from its file. Slots that fail are left
// failed; their errors are joined.
func (s *Supervisor) ReloadAll(ctx context.Context) error {
	var errs []error
	for _, sl := range s.live() {
		if err := s.reload(ctx, sl, nil); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// ReloadChanged reloads the slots whose file contents changed since they
// were last loaded and reports how many were reloaded.
func (s *Supervisor) ReloadChanged(ctx context.Context) (int, error) {
	var (
		n    int
		errs []error
	)
	for _, sl := range s.live() {
		wasm, err := os.ReadFile(sl.path)
		if err != nil {
			// Editors often replace files non-atomically; try next poll.
			s.log.Debug("read mod", zap.String("path", sl.path), zap.Error(err))
			continue
		}
		if xxhash.Sum64(wasm) == sl.digest {
			continue
		}
		n++
		if err := s.reload(ctx, sl, wasm); err != nil {
			errs = append(errs, err)
		}
	}
	return n, stderrors.Join(errs...)
}

func (s *Supervisor) reload(ctx context.Context, sl *slot, wasm []byte) error {
	if wasm == nil {
		var err error
		if wasm, err = os.ReadFile(sl.path); err != nil {
			err = errors.WithMod(errors.Load(fmt.Sprintf("read %s", sl.path), err), sl.host.Name())
			sl.host.Fail(err)
			return err
		}
	}
	sl.digest = xxhash.Sum64(wasm)
	return sl.host.Reload(ctx, wasm)
}

// Mods lists every slot in load order.
func (s *Supervisor) Mods() []ModInfo {
	slots := s.live()
	out := make([]ModInfo, len(slots))
	for i, sl := range slots {
		out[i] = ModInfo{
			Handle: sl.host.Handle(),
			Name:   sl.host.Name(),
			Path:   sl.path,
			State:  sl.host.State(),
			Err:    sl.host.Err(),
		}
	}
	return out
}

// Close unloads every mod and releases the shared services.
func (s *Supervisor) Close(ctx context.Context) error {
	var errs []error
	for _, sl := range s.live() {
		errs = append(errs, sl.host.Close(ctx))
	}
	s.slots.Clear()
	s.mu.Lock()
	s.order = nil
	s.mu.Unlock()

	if s.audio != nil {
		errs = append(errs, s.audio.Close())
	}
	if s.store != nil {
		errs = append(errs, s.store.Close())
	}
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	s.closers = nil
	errs = append(errs, s.cache.Close(ctx))
	return stderrors.Join(errs...)
}
