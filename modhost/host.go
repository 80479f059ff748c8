package modhost

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/abi"
	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/input"
)

// Host owns one mod: its live instance, its bindings to the shared
// services and its lifecycle state.
//
// Guest calls are not safe for concurrent use; one simulation goroutine
// drives Load, Reload, Update and the input entry points. State, Name and
// Err may be read from any goroutine.
type Host struct {
	env  Env
	opts Options
	log  *zap.Logger
	rng  *rand.Rand
	cur  *instance
	seq  int
	// dt is the delta of the last Update, seen by input callbacks.
	dt float32

	mu    sync.RWMutex
	state State
	name  string
	err   error
}

// New creates an unloaded Host.
func New(env Env, opts Options) *Host {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	return &Host{
		env:  env,
		opts: opts,
		log:  opts.Logger.With(zap.String("path", opts.Path), zap.Uint64("handle", uint64(opts.Handle))),
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		name: UnnamedMod,
	}
}

// Handle returns the mod's event bus identity.
func (h *Host) Handle() events.ModHandle { return h.opts.Handle }

// Path returns the module's source path.
func (h *Host) Path() string { return h.opts.Path }

// State returns the lifecycle state.
func (h *Host) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// Name returns the name the mod reported, or UnnamedMod.
func (h *Host) Name() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.name
}

// Err returns the error that moved the Host to Failed.
func (h *Host) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

func (h *Host) setState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
}

// Load builds the first instance from wasm. A failed load leaves the Host
// Failed with nothing instantiated.
func (h *Host) Load(ctx context.Context, wasm []byte) error {
	if h.cur != nil {
		return errors.InvalidInput(errors.PhaseLoad, "mod already loaded; use Reload")
	}
	return h.swap(ctx, wasm)
}

// Reload builds a fresh instance from wasm and swaps it in once it has
// initialized. The previous instance is closed only after a successful
// swap; on failure the Host is Failed and keeps no live instance in
// service until the next successful reload.
func (h *Host) Reload(ctx context.Context, wasm []byte) error {
	return h.swap(ctx, wasm)
}

func (h *Host) swap(ctx context.Context, wasm []byte) error {
	inst, err := h.build(ctx, wasm)
	if err != nil {
		err = errors.WithMod(err, h.Name())
		h.fail(err)
		return err
	}

	old := h.cur
	h.cur = inst
	h.mu.Lock()
	h.state = Running
	h.name = inst.name
	h.err = nil
	h.mu.Unlock()

	if old != nil {
		old.close(ctx)
		inst.log.Info("mod reloaded")
	} else {
		inst.log.Info("mod loaded")
	}
	return nil
}

// Fail moves the Host to Failed with err, for failures found outside a
// guest call such as an unreadable module file on reload.
func (h *Host) Fail(err error) { h.fail(err) }

func (h *Host) fail(err error) {
	h.mu.Lock()
	h.state = Failed
	h.err = err
	name := h.name
	h.mu.Unlock()
	h.log.Error("mod failed", zap.String("mod", name), zap.Error(err))
}

// live returns the running instance or the error explaining why there is
// none.
func (h *Host) live() (*instance, error) {
	switch s := h.State(); s {
	case Running:
		return h.cur, nil
	case Failed:
		return nil, errors.Failed(h.Name())
	default:
		return nil, errors.New(errors.PhaseCall, errors.KindInvalidInput).
			Mod(h.Name()).
			Detail("mod is %s", s).
			Build()
	}
}

// call invokes export on the live instance. Any failure moves the Host
// to Failed.
func (h *Host) call(ctx context.Context, export string, params ...uint64) error {
	inst, err := h.live()
	if err != nil {
		return err
	}
	if _, err := inst.invoke(ctx, export, params...); err != nil {
		err = errors.WithMod(err, inst.name)
		h.fail(err)
		return err
	}
	return nil
}

// Update runs one tick: the mailbox is drained into the guest's event
// export in emission order, then update is called. dt is visible to the
// guest through time.delta for the duration of the tick.
func (h *Host) Update(ctx context.Context, dt float32) error {
	if _, err := h.live(); err != nil {
		return err
	}
	h.dt = dt
	ctx = WithDelta(ctx, dt)
	for _, ev := range h.env.Bus.Drain(h.opts.Handle) {
		if err := h.deliver(ctx, ev); err != nil {
			return err
		}
	}
	return h.call(ctx, "update")
}

// Event delivers one event directly, bypassing the mailbox.
func (h *Host) Event(ctx context.Context, ev events.Event) error {
	if _, err := h.live(); err != nil {
		return err
	}
	return h.deliver(WithDelta(ctx, h.dt), ev)
}

func (h *Host) deliver(ctx context.Context, ev events.Event) error {
	inst := h.cur
	var packed uint64
	err := func() (err error) {
		// Allocation runs guest code outside invoke, so a trap there
		// needs its own classification.
		tr := abi.Transfer{
			Mem:   abi.WrapMemory(inst.mod.Memory()),
			Alloc: &abi.Allocator{Ctx: ctx, Fn: inst.alloc},
		}
		packed, err = tr.Put(abi.EncodeData(ev.Data))
		return err
	}()
	if err != nil {
		err = errors.WithMod(err, inst.name)
		h.fail(err)
		return err
	}
	ptr, n := abi.Unpack(packed)
	return h.call(ctx, "event", uint64(ev.Handle), api.EncodeU32(ptr), api.EncodeU32(n))
}

// KeyEvent calls key_event with code. Callers check Subscribed first.
// time.delta reports the delta of the last Update.
func (h *Host) KeyEvent(ctx context.Context, key input.Key) error {
	return h.call(WithDelta(ctx, h.dt), "key_event", api.EncodeU32(uint32(key)))
}

// Scroll calls scroll with amount, under the last Update's delta.
func (h *Host) Scroll(ctx context.Context, amount float32) error {
	return h.call(WithDelta(ctx, h.dt), "scroll", api.EncodeF32(amount))
}

// Subscribed reports whether the live instance asked for key.
func (h *Host) Subscribed(key input.Key) bool {
	if h.cur == nil || !h.State().Live() {
		return false
	}
	return h.cur.subscribed(key)
}

// Close releases the instance and returns the Host to Unloaded.
func (h *Host) Close(ctx context.Context) error {
	if h.cur != nil {
		h.cur.close(ctx)
		h.cur = nil
	}
	h.mu.Lock()
	h.state = Unloaded
	h.mu.Unlock()
	return nil
}
