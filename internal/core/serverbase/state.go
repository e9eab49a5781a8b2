// SPDX-License-Identifier: MPL-2.0

package serverbase

// State is a lifecycle state. A Base only moves forward through the states;
// Stopped and Failed are terminal.
type State int32

const (
	StateCreated State = iota
	StateStarting
	StateRunning
	StateStopping
	StateStopped
	StateFailed
)

var stateNames = [...]string{"created", "starting", "running", "stopping", "stopped", "failed"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) IsTerminal() bool {
	return s >= StateStopped
}
