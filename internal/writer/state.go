package writer

import "strconv"

// State is the state of the writer driver.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateBuffering
	StateFlushing
	StateRotating
	StateClosed
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateOpen:      "open",
	StateBuffering: "buffering",
	StateFlushing:  "flushing",
	StateRotating:  "rotating",
	StateClosed:    "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}
