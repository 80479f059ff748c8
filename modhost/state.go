package modhost

import "fmt"

// State is a Host's lifecycle position.
type State uint8

const (
	Unloaded State = iota
	Compiling
	Linking
	Instantiated
	Initialized
	Running
	Failed
)

var stateNames = [...]string{"unloaded", "compiling", "linking", "instantiated", "initialized", "running", "failed"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// Live reports whether the Host accepts guest calls.
func (s State) Live() bool { return s == Running }
