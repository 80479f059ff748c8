package scene

import (
	"math"
	"sync"

	"github.com/wippyai/mod-runtime/ecs"
)

// Camera is the shared 2D view transform. Any mod may move it.
type Camera struct {
	pos  ecs.Vector2
	zoom float32
	mu   sync.RWMutex
}

// NewCamera returns a camera at the origin with zoom 1.
func NewCamera() *Camera {
	return &Camera{zoom: 1}
}

func (c *Camera) Position() ecs.Vector2 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pos
}

func (c *Camera) Zoom() float32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.zoom
}

func (c *Camera) SetPosition(x, y float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pos = ecs.Vector2{X: x, Y: y}
}

// SetZoom changes the zoom factor. Non-positive and non-finite values are
// rejected.
func (c *Camera) SetZoom(z float32) bool {
	if !(z > 0) || math.IsInf(float64(z), 0) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.zoom = z
	return true
}

// CameraState is a copy of the camera for one frame.
type CameraState struct {
	X    float32 `json:"x"`
	Y    float32 `json:"y"`
	Zoom float32 `json:"zoom"`
}

func (c *Camera) state() CameraState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CameraState{X: c.pos.X, Y: c.pos.Y, Zoom: c.zoom}
}
