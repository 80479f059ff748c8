package modhost

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/mod-runtime/abi"
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/errors"
)

type tickKey struct{}

// WithDelta returns ctx carrying the frame delta time that the guest reads
// through time.delta during calls made with it.
func WithDelta(ctx context.Context, dt float32) context.Context {
	return context.WithValue(ctx, tickKey{}, dt)
}

// Delta returns the frame delta time carried by ctx, or zero.
func Delta(ctx context.Context) float32 {
	dt, _ := ctx.Value(tickKey{}).(float32)
	return dt
}

// call is the state of one host function invocation.
type call struct {
	ctx  context.Context
	inst *instance
	mod  api.Module
	mem  *abi.Memory
}

func (c *call) memory() *abi.Memory {
	if c.mem == nil {
		c.mem = abi.WrapMemory(c.mod.Memory())
		if c.mem == nil {
			c.fault(errors.InvalidInput(errors.PhaseBoundary, "guest has no memory"))
		}
	}
	return c.mem
}

// fault aborts the guest call with a boundary fault. The instance records
// the fault so the Host reports it instead of the engine's wrapped panic.
func (c *call) fault(err error) {
	c.inst.recordFault(err)
	panic(err)
}

func (c *call) string(ptr, length uint64) string {
	s, err := c.memory().ReadString(api.DecodeU32(ptr), api.DecodeU32(length))
	if err != nil {
		c.fault(err)
	}
	return s
}

func (c *call) bytes(ptr, length uint64) []byte {
	b, err := c.memory().Read(api.DecodeU32(ptr), api.DecodeU32(length))
	if err != nil {
		c.fault(err)
	}
	return b
}

func (c *call) data(ptr, length uint64) ecs.ComponentData {
	d, err := abi.DecodeData(c.bytes(ptr, length))
	if err != nil {
		c.fault(err)
	}
	return d
}

func (c *call) componentIDs(ptr, length uint64) []ecs.ComponentID {
	ids, err := abi.DecodeComponentIDs(c.bytes(ptr, length))
	if err != nil {
		c.fault(err)
	}
	return ids
}

// put copies b into guest memory through the guest allocator and returns
// the packed region.
func (c *call) put(b []byte) uint64 {
	tr := abi.Transfer{
		Mem:   c.memory(),
		Alloc: &abi.Allocator{Ctx: c.ctx, Fn: c.inst.alloc},
	}
	packed, err := tr.Put(b)
	if err != nil {
		c.fault(err)
	}
	return packed
}
