// Package input holds the shared keyboard and mouse state that mods query,
// and the events the windowing layer feeds into the supervisor.
package input

import (
	"fmt"
	"sync"
)

// Key is a platform-neutral key code. Values below 128 are ASCII; named
// keys live above that.
type Key uint32

const (
	KeyUnknown Key = 0
	KeyEscape  Key = 27
	KeySpace   Key = 32
	KeyEnter   Key = 13
	KeyTab     Key = 9

	KeyUp Key = 256 + iota
	KeyDown
	KeyLeft
	KeyRight
	KeyBackspace
	KeyDelete
	KeyHome
	KeyEnd
	KeyPageUp
	KeyPageDown
)

var keyNames = map[Key]string{
	KeyEscape:    "esc",
	KeySpace:     "space",
	KeyEnter:     "enter",
	KeyTab:       "tab",
	KeyUp:        "up",
	KeyDown:      "down",
	KeyLeft:      "left",
	KeyRight:     "right",
	KeyBackspace: "backspace",
	KeyDelete:    "delete",
	KeyHome:      "home",
	KeyEnd:       "end",
	KeyPageUp:    "pgup",
	KeyPageDown:  "pgdown",
}

func (k Key) String() string {
	if n, ok := keyNames[k]; ok {
		return n
	}
	if k > 32 && k < 127 {
		return string(rune(k))
	}
	return fmt.Sprintf("key(%d)", uint32(k))
}

// ParseKey maps a key name as produced by String back to its code.
func ParseKey(name string) (Key, bool) {
	for k, n := range keyNames {
		if n == name {
			return k, true
		}
	}
	if r := []rune(name); len(r) == 1 && r[0] > 32 && r[0] < 127 {
		return Key(r[0]), true
	}
	return KeyUnknown, false
}

// EventType discriminates Event.
type EventType uint8

const (
	KeyPressed EventType = iota
	KeyReleased
	Scroll
	MouseMoved
)

func (t EventType) String() string {
	switch t {
	case KeyPressed:
		return "key_pressed"
	case KeyReleased:
		return "key_released"
	case Scroll:
		return "scroll"
	case MouseMoved:
		return "mouse_moved"
	}
	return fmt.Sprintf("event(%d)", uint8(t))
}

// Event is one input event from the windowing layer.
type Event struct {
	Key    Key
	X, Y   float32 // mouse position for MouseMoved
	Amount float32 // scroll delta
	Type   EventType
}

// Press returns a key press event.
func Press(k Key) Event { return Event{Type: KeyPressed, Key: k} }

// Release returns a key release event.
func Release(k Key) Event { return Event{Type: KeyReleased, Key: k} }

// ScrollBy returns a scroll event.
func ScrollBy(amount float32) Event { return Event{Type: Scroll, Amount: amount} }

// MoveTo returns a mouse move event.
func MoveTo(x, y float32) Event { return Event{Type: MouseMoved, X: x, Y: y} }

// State is the current input state shared by every mod.
type State struct {
	down   map[Key]bool
	mouseX float32
	mouseY float32
	mu     sync.RWMutex
}

// NewState returns a state with no keys down.
func NewState() *State {
	return &State{down: make(map[Key]bool)}
}

// Apply folds ev into the state.
func (s *State) Apply(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch ev.Type {
	case KeyPressed:
		s.down[ev.Key] = true
	case KeyReleased:
		delete(s.down, ev.Key)
	case MouseMoved:
		s.mouseX, s.mouseY = ev.X, ev.Y
	}
}

// Down reports whether k is held.
func (s *State) Down(k Key) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.down[k]
}

// Mouse returns the last mouse position.
func (s *State) Mouse() (x, y float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mouseX, s.mouseY
}

// ReleaseAll clears every held key. Front ends without release events
// call it once per frame.
func (s *State) ReleaseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.down)
}
