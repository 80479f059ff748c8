package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/mod-runtime/ecs"
)

// Handle names a registered event channel. Handles start at 1.
type Handle uint64

// ModHandle identifies a loaded mod. It is the subscriber identity and the
// sender exclusion key.
type ModHandle uint64

// Event is one emitted value.
type Event struct {
	Data   ecs.ComponentData
	Handle Handle
}

type channel struct {
	name      string
	listeners []ModHandle
}

func (c *channel) has(sub ModHandle) bool {
	for _, l := range c.listeners {
		if l == sub {
			return true
		}
	}
	return false
}

// Bus routes events between mods. Delivery appends to each receiver's
// mailbox; the owner drains it once per tick in emission order.
//
// Listener sets only grow while a mod lives; Forget removes a mod that
// is gone for good.
type Bus struct {
	log       *zap.Logger
	mailboxes map[ModHandle][]Event
	channels  []channel
	mu        sync.Mutex
}

// NewBus creates an empty bus. A nil logger disables logging.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:       log,
		mailboxes: make(map[ModHandle][]Event),
	}
}

// Subscribe registers name if needed and adds sub to its listeners.
// Calling it again with the same name returns the same handle.
func (b *Bus) Subscribe(name string, sub ModHandle) Handle {
	b.mu.Lock()
	defer b.mu.Unlock()

	h, ok := b.lookup(name)
	if !ok {
		b.channels = append(b.channels, channel{name: name})
		h = Handle(len(b.channels))
	}
	b.addListener(h, sub)
	return h
}

// SubscribeHandle adds sub to the listeners of an existing handle. It
// reports false for an unknown handle.
func (b *Bus) SubscribeHandle(h Handle, sub ModHandle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.known(h) {
		b.log.Debug("subscribe to unknown event handle", zap.Uint64("handle", uint64(h)), zap.Uint64("mod", uint64(sub)))
		return false
	}
	b.addListener(h, sub)
	return true
}

// Emit delivers ev to every subscriber of ev.Handle except sender.
// Events on unknown handles are dropped.
func (b *Bus) Emit(sender ModHandle, ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.known(ev.Handle) {
		b.log.Debug("emit on unknown event handle", zap.Uint64("handle", uint64(ev.Handle)), zap.Uint64("mod", uint64(sender)))
		return
	}
	for _, l := range b.channels[ev.Handle-1].listeners {
		if l == sender {
			continue
		}
		b.mailboxes[l] = append(b.mailboxes[l], Event{Handle: ev.Handle, Data: ev.Data.Clone()})
	}
}

// Drain returns and clears sub's mailbox, oldest event first.
func (b *Bus) Drain(sub ModHandle) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.mailboxes[sub]
	if len(out) == 0 {
		return nil
	}
	delete(b.mailboxes, sub)
	return out
}

// Forget removes sub from every listener set and discards its mailbox.
// Later emits skip it. It reports whether sub was subscribed anywhere or
// had pending events.
func (b *Bus) Forget(sub ModHandle) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, found := b.mailboxes[sub]
	delete(b.mailboxes, sub)
	for i := range b.channels {
		c := &b.channels[i]
		for j, l := range c.listeners {
			if l == sub {
				c.listeners = append(c.listeners[:j], c.listeners[j+1:]...)
				found = true
				break
			}
		}
	}
	return found
}

// Pending returns the number of undelivered events for sub.
func (b *Bus) Pending(sub ModHandle) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.mailboxes[sub])
}

// Lookup returns the handle registered for name.
func (b *Bus) Lookup(name string) (Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lookup(name)
}

// Name returns the name a handle was registered under.
func (b *Bus) Name(h Handle) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known(h) {
		return "", false
	}
	return b.channels[h-1].name, true
}

// Listeners returns a copy of the listener set of h.
func (b *Bus) Listeners(h Handle) []ModHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known(h) {
		return nil
	}
	return append([]ModHandle(nil), b.channels[h-1].listeners...)
}

func (b *Bus) lookup(name string) (Handle, bool) {
	for i := range b.channels {
		if b.channels[i].name == name {
			return Handle(i + 1), true
		}
	}
	return 0, false
}

func (b *Bus) known(h Handle) bool {
	return h != 0 && h <= Handle(len(b.channels))
}

func (b *Bus) addListener(h Handle, sub ModHandle) {
	c := &b.channels[h-1]
	if !c.has(sub) {
		c.listeners = append(c.listeners, sub)
	}
}
