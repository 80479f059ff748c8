package modhost

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/abi"
	"github.com/wippyai/mod-runtime/errors"
	"github.com/wippyai/mod-runtime/input"
)

// UnnamedMod is the name used in logs before a mod reports its own.
const UnnamedMod = "<unnamed>"

// instance is one instantiation of a mod's binary. Each instance owns its
// runtime, so the host modules it links against are bound to it alone and
// reloads never collide on module names.
type instance struct {
	host  *Host
	rt    wazero.Runtime
	mod   api.Module
	fns   map[string]api.Function
	alloc api.Function
	keys  map[input.Key]struct{}
	fault error
	log   *zap.Logger
	name  string
}

func (inst *instance) recordFault(err error) {
	if inst.fault == nil {
		inst.fault = err
	}
}

func (inst *instance) subscribeKey(k input.Key) {
	inst.keys[k] = struct{}{}
}

func (inst *instance) subscribed(k input.Key) bool {
	_, ok := inst.keys[k]
	return ok
}

// build runs compile, link, instantiate and init for wasm. On failure the
// partial instance is closed.
func (h *Host) build(ctx context.Context, wasm []byte) (*instance, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(false)
	if h.env.Cache != nil {
		cfg = cfg.WithCompilationCache(h.env.Cache)
	}
	if h.opts.MemoryPages > 0 {
		cfg = cfg.WithMemoryLimitPages(h.opts.MemoryPages)
	}

	h.seq++
	inst := &instance{
		host: h,
		rt:   wazero.NewRuntimeWithConfig(ctx, cfg),
		keys: make(map[input.Key]struct{}),
		log:  h.log.With(zap.String("mod", UnnamedMod)),
	}
	ok := false
	defer func() {
		if !ok {
			_ = inst.rt.Close(ctx)
		}
	}()

	h.setState(Compiling)
	cm, err := inst.rt.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Compile(err)
	}

	h.setState(Linking)
	if err := validateExports(cm); err != nil {
		return nil, err
	}
	list, byName := catalog()
	if err := validateImports(cm, byName); err != nil {
		return nil, err
	}
	if err := inst.link(ctx, list); err != nil {
		return nil, err
	}

	modName := fmt.Sprintf("mod-%d-%d", h.opts.Handle, h.seq)
	inst.mod, err = inst.rt.InstantiateModule(ctx, cm, wazero.NewModuleConfig().
		WithName(modName).
		WithStartFunctions())
	if err != nil {
		return nil, errors.Instantiation(err)
	}
	h.setState(Instantiated)

	inst.fns = make(map[string]api.Function, len(requiredExports))
	for _, e := range requiredExports {
		inst.fns[e.name] = inst.mod.ExportedFunction(e.name)
	}
	inst.alloc = inst.fns["alloc"]

	for _, export := range []string{"new", "init"} {
		if _, err := inst.invoke(ctx, export); err != nil {
			return nil, err
		}
	}
	h.setState(Initialized)

	res, err := inst.invoke(ctx, "get_mod_name")
	if err != nil {
		return nil, err
	}
	name, err := inst.readName(res[0])
	if err != nil {
		return nil, err
	}
	inst.name = name
	inst.log = h.log.With(zap.String("mod", name))

	ok = true
	return inst, nil
}

// link instantiates one host module per namespace, each function bound to
// inst.
func (inst *instance) link(ctx context.Context, list []*binding) error {
	builders := make(map[string]wazero.HostModuleBuilder)
	var order []string
	for _, b := range list {
		mb, ok := builders[b.namespace]
		if !ok {
			mb = inst.rt.NewHostModuleBuilder(b.namespace)
			builders[b.namespace] = mb
			order = append(order, b.namespace)
		}
		fn := b.fn
		mb.NewFunctionBuilder().
			WithGoModuleFunction(api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
				fn(&call{ctx: ctx, inst: inst, mod: mod}, stack)
			}), b.flatParams, b.flatResults).
			WithName(b.name).
			Export(b.name)
	}
	for _, ns := range order {
		if _, err := builders[ns].Instantiate(ctx); err != nil {
			return errors.Registration(ns, "*", err)
		}
	}
	return nil
}

// invoke calls an export. A boundary fault raised by a host function
// during the call takes precedence over the engine error that carries it.
func (inst *instance) invoke(ctx context.Context, export string, params ...uint64) ([]uint64, error) {
	fn := inst.fns[export]
	inst.fault = nil
	res, err := fn.Call(ctx, params...)
	if err != nil {
		if fault := inst.fault; fault != nil {
			inst.fault = nil
			return nil, fault
		}
		return nil, errors.Trap(export, err)
	}
	return res, nil
}

func (inst *instance) readName(packed uint64) (string, error) {
	if packed == abi.NoValue {
		return UnnamedMod, nil
	}
	ptr, n := abi.Unpack(packed)
	mem := abi.WrapMemory(inst.mod.Memory())
	if mem == nil {
		return "", errors.MissingExport(memoryExport)
	}
	name, err := mem.ReadString(ptr, n)
	if err != nil {
		return "", err
	}
	if name == "" {
		return UnnamedMod, nil
	}
	return name, nil
}

func (inst *instance) close(ctx context.Context) {
	if err := inst.rt.Close(ctx); err != nil {
		inst.log.Debug("close runtime", zap.Error(err))
	}
}
