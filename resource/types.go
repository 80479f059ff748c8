package resource

import "fmt"

// Handle is an opaque reference to a resource in a registry.
// The low 32 bits hold the slot index, the high 32 bits the slot
// generation. Generations start at 1, so Handle 0 is always invalid.
type Handle uint64

// Invalid is the zero handle; it never resolves.
const Invalid Handle = 0

// NewHandle packs a slot index and generation.
func NewHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

// Index returns the slot index.
func (h Handle) Index() uint32 { return uint32(h) }

// Generation returns the slot generation the handle was minted with.
func (h Handle) Generation() uint32 { return uint32(h >> 32) }

func (h Handle) String() string {
	return fmt.Sprintf("%d:%d", h.Index(), h.Generation())
}

// EventType identifies a resource lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a resource lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Type   EventType
}

// Observer receives notifications about resource lifecycle events.
// Observers are called with the registry lock released.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by resource values that need cleanup.
type Dropper interface {
	Drop()
}
