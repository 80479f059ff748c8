// Package scene holds the renderable state shared by all mods: the
// camera, directly spawned objects and sprites, and the snapshot handed to
// renderers once per frame.
package scene

import (
	"github.com/wippyai/mod-runtime/ecs"
	"github.com/wippyai/mod-runtime/resource"
)

// Well-known component names. The host registers them on first use like
// any mod-defined component.
const (
	ComponentSprite   = "sprite"
	ComponentPosition = "position"
)

// Scene ties renderable state to the ECS world.
type Scene struct {
	World   *ecs.World
	Camera  *Camera
	Objects *Objects
	Sprites *Sprites
}

// New builds a scene over world. decoder may be nil.
func New(world *ecs.World, decoder ImageDecoder) *Scene {
	s := &Scene{
		World:   world,
		Camera:  NewCamera(),
		Objects: NewObjects(),
		Sprites: NewSprites(decoder),
	}
	s.Sprites.reg.Subscribe(spriteReaper{s})
	return s
}

// spriteReaper detaches unloaded sprites from the entities showing them.
type spriteReaper struct {
	s *Scene
}

func (r spriteReaper) OnResourceEvent(ev resource.Event) {
	if ev.Type != resource.EventDropped {
		return
	}
	w := r.s.World
	id, ok := w.Lookup(ComponentSprite)
	if !ok {
		return
	}
	var stale []ecs.Entity
	w.View(func(v ecs.Reader) {
		for _, e := range v.EntitiesWith(id) {
			d, _ := v.Get(e, id)
			if h, ok := d.AsSprite(); ok && h == ev.Handle {
				stale = append(stale, e)
			}
		}
	})
	for _, e := range stale {
		w.Remove(e, id)
	}
}

// AssignSprite attaches sprite s to entity e. It reports false when either
// handle is stale.
func (s *Scene) AssignSprite(e ecs.Entity, sprite resource.Handle) bool {
	if !s.Sprites.Contains(sprite) {
		return false
	}
	id := s.World.RegisterComponent(ComponentSprite)
	return s.World.Set(e, id, ecs.Sprite(sprite))
}

// RemoveSprite detaches any sprite from e.
func (s *Scene) RemoveSprite(e ecs.Entity) bool {
	id, ok := s.World.Lookup(ComponentSprite)
	if !ok {
		return false
	}
	return s.World.Remove(e, id)
}

// SpriteView is one sprite-bearing entity in a Frame.
type SpriteView struct {
	Entity ecs.Entity      `json:"entity"`
	Sprite resource.Handle `json:"sprite"`
	Path   string          `json:"path"`
	X      float32         `json:"x"`
	Y      float32         `json:"y"`
	W      int             `json:"w"`
	H      int             `json:"h"`
}

// Frame is everything a renderer needs for one frame.
type Frame struct {
	Camera  CameraState  `json:"camera"`
	Objects []ObjectView `json:"objects"`
	Sprites []SpriteView `json:"sprites"`
}

// Snapshot copies the scene. The ECS part is read under one World.View so
// the entity list and their components are consistent with each other.
func (s *Scene) Snapshot() Frame {
	f := Frame{
		Camera:  s.Camera.state(),
		Objects: s.Objects.views(),
	}
	s.World.View(func(r ecs.Reader) {
		sid, ok := r.Lookup(ComponentSprite)
		if !ok {
			return
		}
		pid, hasPos := r.Lookup(ComponentPosition)
		for _, e := range r.EntitiesWith(sid) {
			data, _ := r.Get(e, sid)
			h, ok := data.AsSprite()
			if !ok {
				continue
			}
			img, ok := s.Sprites.Get(h)
			if !ok {
				continue
			}
			v := SpriteView{Entity: e, Sprite: h, Path: img.Path}
			v.W, v.H = img.Size()
			if hasPos {
				if pd, ok := r.Get(e, pid); ok {
					if p, ok := pd.AsVector2(); ok {
						v.X, v.Y = p.X, p.Y
					}
				}
			}
			f.Sprites = append(f.Sprites, v)
		}
	})
	return f
}
