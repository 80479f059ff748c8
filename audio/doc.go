// Package audio runs sound loading and playback on a dedicated goroutine.
//
// The simulation thread talks to it through a command channel. Load waits
// for a one-shot reply carrying the new handle; Play does not wait at all.
// Decoding and output are delegated to a Backend.
package audio
