// Package events implements the named publish/subscribe bus mods use to
// talk to each other.
//
// A channel is registered by name and identified by a Handle. Emitting
// appends the value to the mailbox of every other subscriber; the sender
// never receives its own emission. Each mod host drains its mailbox once
// per tick and receives events in emission order.
//
//	bus := events.NewBus(log)
//	h := bus.Subscribe("wave_start", modA)
//	bus.Emit(modB, events.Event{Handle: h, Data: ecs.I32(3)})
//	bus.Drain(modA) // [{h, I32(3)}]
//	bus.Drain(modB) // []
package events
