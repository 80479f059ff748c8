package modhost

import (
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/mod-runtime/abi"
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/events"
	"github.com/wippyai/mod-runtime/gui"
	"github.com/wippyai/mod-runtime/input"
	"github.com/wippyai/mod-runtime/resource"
)

// binding is one guest-callable host function. Handlers read their
// flattened parameters from stack and write results back into it.
type binding struct {
	fn          func(c *call, stack []uint64)
	namespace   string
	name        string
	params      []wit.Type
	results     []wit.Type
	flatParams  []api.ValueType
	flatResults []api.ValueType
}

func bind(namespace, name string, params, results []wit.Type, fn func(*call, []uint64)) *binding {
	return &binding{
		namespace:   namespace,
		name:        name,
		params:      params,
		results:     results,
		flatParams:  flatten(params),
		flatResults: flatten(results),
		fn:          fn,
	}
}

func types(ts ...wit.Type) []wit.Type { return ts }

func encodeBool(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

var catalog = sync.OnceValues(func() ([]*binding, map[string]*binding) {
	list := buildCatalog()
	byName := make(map[string]*binding, len(list))
	for _, b := range list {
		key := b.namespace + "." + b.name
		if _, dup := byName[key]; dup {
			panic("modhost: duplicate host function " + key)
		}
		byName[key] = b
	}
	return list, byName
})

// Namespaces returns every host function as "namespace.name", in table
// order.
func Namespaces() []string {
	list, _ := catalog()
	out := make([]string, len(list))
	for i, b := range list {
		out[i] = b.namespace + "." + b.name
	}
	return out
}

func buildCatalog() []*binding {
	var t []*binding
	add := func(b *binding) { t = append(t, b) }

	// time
	add(bind("time", "delta", nil, types(tF32), func(c *call, s []uint64) {
		s[0] = api.EncodeF32(Delta(c.ctx))
	}))

	// log
	for _, lv := range []struct {
		name  string
		level zapcore.Level
		trace bool
	}{
		{"trace", zap.DebugLevel, true},
		{"debug", zap.DebugLevel, false},
		{"info", zap.InfoLevel, false},
		{"warn", zap.WarnLevel, false},
		{"error", zap.ErrorLevel, false},
	} {
		add(bind("log", lv.name, types(tString), nil, func(c *call, s []uint64) {
			msg := c.string(s[0], s[1])
			if ce := c.inst.log.Check(lv.level, msg); ce != nil {
				if lv.trace {
					ce.Write(zap.Bool("trace", true))
				} else {
					ce.Write()
				}
			}
		}))
	}

	// input
	add(bind("input", "key-down", types(tU32), types(tBool), func(c *call, s []uint64) {
		in := c.inst.host.env.Input
		s[0] = encodeBool(in != nil && in.Down(input.Key(api.DecodeU32(s[0]))))
	}))
	add(bind("input", "subscribe-key", types(tU32), nil, func(c *call, s []uint64) {
		c.inst.subscribeKey(input.Key(api.DecodeU32(s[0])))
	}))
	add(bind("input", "mouse-x", nil, types(tF32), func(c *call, s []uint64) {
		var x float32
		if in := c.inst.host.env.Input; in != nil {
			x, _ = in.Mouse()
		}
		s[0] = api.EncodeF32(x)
	}))
	add(bind("input", "mouse-y", nil, types(tF32), func(c *call, s []uint64) {
		var y float32
		if in := c.inst.host.env.Input; in != nil {
			_, y = in.Mouse()
		}
		s[0] = api.EncodeF32(y)
	}))

	// camera
	add(bind("camera", "x", nil, types(tF32), func(c *call, s []uint64) {
		s[0] = api.EncodeF32(c.inst.host.env.Scene.Camera.Position().X)
	}))
	add(bind("camera", "y", nil, types(tF32), func(c *call, s []uint64) {
		s[0] = api.EncodeF32(c.inst.host.env.Scene.Camera.Position().Y)
	}))
	add(bind("camera", "zoom", nil, types(tF32), func(c *call, s []uint64) {
		s[0] = api.EncodeF32(c.inst.host.env.Scene.Camera.Zoom())
	}))
	add(bind("camera", "set-position", types(tF32, tF32), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.Camera.SetPosition(api.DecodeF32(s[0]), api.DecodeF32(s[1]))
	}))
	add(bind("camera", "set-zoom", types(tF32), nil, func(c *call, s []uint64) {
		z := api.DecodeF32(s[0])
		if !c.inst.host.env.Scene.Camera.SetZoom(z) {
			c.inst.log.Debug("camera zoom rejected", zap.Float32("zoom", z))
		}
	}))

	// ecs
	add(bind("ecs", "spawn-entity", nil, types(tHandle), func(c *call, s []uint64) {
		s[0] = uint64(c.inst.host.env.World.Spawn())
	}))
	add(bind("ecs", "despawn", types(tHandle), nil, func(c *call, s []uint64) {
		c.inst.host.env.World.Despawn(ecs.Entity(s[0]))
	}))
	add(bind("ecs", "register-component", types(tString), types(tU32), func(c *call, s []uint64) {
		name := c.string(s[0], s[1])
		s[0] = api.EncodeU32(uint32(c.inst.host.env.World.RegisterComponent(name)))
	}))
	add(bind("ecs", "set-component", types(tHandle, tU32, tRecord), nil, func(c *call, s []uint64) {
		data := c.data(s[2], s[3])
		c.inst.host.env.World.Set(ecs.Entity(s[0]), ecs.ComponentID(api.DecodeU32(s[1])), data)
	}))
	add(bind("ecs", "get-component", types(tHandle, tU32), types(tRegion), func(c *call, s []uint64) {
		data, ok := c.inst.host.env.World.Get(ecs.Entity(s[0]), ecs.ComponentID(api.DecodeU32(s[1])))
		if !ok {
			s[0] = abi.NoValue
			return
		}
		s[0] = c.put(abi.EncodeData(data))
	}))
	add(bind("ecs", "remove-component", types(tHandle, tU32), nil, func(c *call, s []uint64) {
		c.inst.host.env.World.Remove(ecs.Entity(s[0]), ecs.ComponentID(api.DecodeU32(s[1])))
	}))
	add(bind("ecs", "entity-exists", types(tHandle), types(tBool), func(c *call, s []uint64) {
		s[0] = encodeBool(c.inst.host.env.World.Alive(ecs.Entity(s[0])))
	}))
	add(bind("ecs", "entities-with-component", types(tU32), types(tRegion), func(c *call, s []uint64) {
		list := c.inst.host.env.World.EntitiesWith(ecs.ComponentID(api.DecodeU32(s[0])))
		s[0] = c.put(abi.EncodeEntities(list))
	}))
	add(bind("ecs", "entities-with-components", types(tRecord, tRecord), types(tRegion), func(c *call, s []uint64) {
		required := c.componentIDs(s[0], s[1])
		optional := c.componentIDs(s[2], s[3])
		s[0] = c.put(abi.EncodeEntities(c.inst.host.env.World.Query(required, optional)))
	}))

	// events
	add(bind("events", "subscribe", types(tString), types(tHandle), func(c *call, s []uint64) {
		name := c.string(s[0], s[1])
		s[0] = uint64(c.inst.host.env.Bus.Subscribe(name, c.inst.host.opts.Handle))
	}))
	add(bind("events", "subscribe-handle", types(tHandle), nil, func(c *call, s []uint64) {
		c.inst.host.env.Bus.SubscribeHandle(events.Handle(s[0]), c.inst.host.opts.Handle)
	}))
	add(bind("events", "emit", types(tHandle, tRecord), nil, func(c *call, s []uint64) {
		data := c.data(s[1], s[2])
		c.inst.host.env.Bus.Emit(c.inst.host.opts.Handle, events.Event{Handle: events.Handle(s[0]), Data: data})
	}))

	// audio
	add(bind("audio", "load-sound", types(tString), types(tHandle), func(c *call, s []uint64) {
		path := c.string(s[0], s[1])
		a := c.inst.host.env.Audio
		if a == nil {
			c.inst.log.Debug("audio unavailable", zap.String("path", path))
			s[0] = uint64(resource.Invalid)
			return
		}
		h, err := a.Load(c.ctx, path)
		if err != nil {
			c.inst.log.Warn("sound load failed", zap.String("path", path), zap.Error(err))
		}
		s[0] = uint64(h)
	}))
	add(bind("audio", "play", types(tHandle), nil, func(c *call, s []uint64) {
		if a := c.inst.host.env.Audio; a != nil {
			a.Play(resource.Handle(s[0]))
		}
	}))

	// sprite
	add(bind("sprite", "load", types(tString), types(tHandle), func(c *call, s []uint64) {
		path := c.string(s[0], s[1])
		h, err := c.inst.host.env.Scene.Sprites.Load(path)
		if err != nil {
			c.inst.log.Warn("sprite load failed", zap.String("path", path), zap.Error(err))
		}
		s[0] = uint64(h)
	}))
	add(bind("sprite", "assign", types(tHandle, tHandle), nil, func(c *call, s []uint64) {
		if !c.inst.host.env.Scene.AssignSprite(ecs.Entity(s[0]), resource.Handle(s[1])) {
			c.inst.log.Debug("sprite assign ignored", zap.Stringer("entity", ecs.Entity(s[0])), zap.Stringer("sprite", resource.Handle(s[1])))
		}
	}))
	add(bind("sprite", "remove", types(tHandle), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.RemoveSprite(ecs.Entity(s[0]))
	}))
	add(bind("sprite", "unload", types(tHandle), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.Sprites.Unload(resource.Handle(s[0]))
	}))

	// object
	add(bind("object", "spawn", types(tF32, tF32, tF32, tF32), types(tHandle), func(c *call, s []uint64) {
		h := c.inst.host.env.Scene.Objects.Spawn(api.DecodeF32(s[0]), api.DecodeF32(s[1]), api.DecodeF32(s[2]), api.DecodeF32(s[3]))
		s[0] = uint64(h)
	}))
	add(bind("object", "set-position", types(tHandle, tF32, tF32), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.Objects.SetPosition(resource.Handle(s[0]), api.DecodeF32(s[1]), api.DecodeF32(s[2]))
	}))
	add(bind("object", "set-color", types(tHandle, tF32, tF32, tF32, tF32), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.Objects.SetColor(resource.Handle(s[0]), ecs.Color{
			R: api.DecodeF32(s[1]),
			G: api.DecodeF32(s[2]),
			B: api.DecodeF32(s[3]),
			A: api.DecodeF32(s[4]),
		})
	}))
	add(bind("object", "despawn", types(tHandle), nil, func(c *call, s []uint64) {
		c.inst.host.env.Scene.Objects.Despawn(resource.Handle(s[0]))
	}))

	// gui
	add(bind("gui", "window", types(tRecord), types(tRegion), func(c *call, s []uint64) {
		w, err := gui.DecodeWindow(c.bytes(s[0], s[1]))
		if err != nil {
			c.fault(err)
		}
		backend := c.inst.host.env.GUI
		if backend == nil {
			s[0] = abi.NoValue
			return
		}
		s[0] = c.put(gui.EncodeResponse(backend.Show(w)))
	}))

	// file
	add(bind("file", "load", types(tString), types(tRegion), func(c *call, s []uint64) {
		path := c.string(s[0], s[1])
		files := c.inst.host.opts.Files
		if files == nil {
			s[0] = abi.NoValue
			return
		}
		data, err := files.Load(path)
		if err != nil {
			c.inst.log.Debug("file load failed", zap.String("path", path), zap.Error(err))
			s[0] = abi.NoValue
			return
		}
		s[0] = c.put(data)
	}))
	add(bind("file", "save", types(tString, tRecord), types(tBool), func(c *call, s []uint64) {
		path := c.string(s[0], s[1])
		data := c.bytes(s[2], s[3])
		files := c.inst.host.opts.Files
		if files == nil {
			s[0] = 0
			return
		}
		if err := files.Save(path, data); err != nil {
			c.inst.log.Warn("file save failed", zap.String("path", path), zap.Error(err))
			s[0] = 0
			return
		}
		s[0] = 1
	}))

	// rand
	add(bind("rand", "u64", nil, types(wit.U64{}), func(c *call, s []uint64) {
		s[0] = c.inst.host.rng.Uint64()
	}))
	add(bind("rand", "f32", nil, types(tF32), func(c *call, s []uint64) {
		s[0] = api.EncodeF32(c.inst.host.rng.Float32())
	}))
	add(bind("rand", "range", types(tS32, tS32), types(tS32), func(c *call, s []uint64) {
		lo, hi := api.DecodeI32(s[0]), api.DecodeI32(s[1])
		s[0] = api.EncodeI32(randRange(c.inst.host.rng.Int64N, lo, hi))
	}))

	return t
}

// randRange returns a value in [lo, hi). An empty range yields lo.
func randRange(int64n func(int64) int64, lo, hi int32) int32 {
	if hi <= lo {
		return lo
	}
	return lo + int32(int64n(int64(hi)-int64(lo)))
}
