package scene

import (
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/resource"
)

// Object is a colored rectangle in world space, spawned directly by a mod
// outside the ECS.
type Object struct {
	Position ecs.Vector2
	Size     ecs.Vector2
	Color    ecs.Color
}

// Objects is the registry of spawned objects. The registry's own lock
// covers every mutation, so a snapshot never sees a half-written object.
type Objects struct {
	reg *resource.Registry[Object]
}

func NewObjects() *Objects {
	return &Objects{reg: resource.NewRegistry[Object]()}
}

// Spawn adds a white rectangle.
func (o *Objects) Spawn(x, y, w, h float32) resource.Handle {
	return o.reg.Insert(Object{
		Position: ecs.Vector2{X: x, Y: y},
		Size:     ecs.Vector2{X: w, Y: h},
		Color:    ecs.Color{R: 1, G: 1, B: 1, A: 1},
	})
}

func (o *Objects) Get(h resource.Handle) (Object, bool) {
	return o.reg.Get(h)
}

func (o *Objects) SetPosition(h resource.Handle, x, y float32) bool {
	return o.reg.Update(h, func(obj Object) Object {
		obj.Position = ecs.Vector2{X: x, Y: y}
		return obj
	})
}

func (o *Objects) SetColor(h resource.Handle, c ecs.Color) bool {
	return o.reg.Update(h, func(obj Object) Object {
		obj.Color = c
		return obj
	})
}

func (o *Objects) Despawn(h resource.Handle) bool {
	_, ok := o.reg.Remove(h)
	return ok
}

func (o *Objects) Len() int { return o.reg.Len() }

// ObjectView is one object in a Frame.
type ObjectView struct {
	Handle resource.Handle `json:"handle"`
	X      float32         `json:"x"`
	Y      float32         `json:"y"`
	W      float32         `json:"w"`
	H      float32         `json:"h"`
	Color  [4]float32      `json:"color"`
}

func (o *Objects) views() []ObjectView {
	var out []ObjectView
	o.reg.Each(func(h resource.Handle, obj Object) bool {
		out = append(out, ObjectView{
			Handle: h,
			X:      obj.Position.X,
			Y:      obj.Position.Y,
			W:      obj.Size.X,
			H:      obj.Size.Y,
			Color:  [4]float32{obj.Color.R, obj.Color.G, obj.Color.B, obj.Color.A},
		})
		return true
	})
	return out
}
