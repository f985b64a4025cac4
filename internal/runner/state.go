package runner

import "github.com/yanun0323/errors"

var ErrInvalidStateChange = errors.New("invalid lifecycle transition")

// State is the orchestrator lifecycle phase.
type State uint16

const (
	StateInitializing State = iota
	StateRunning
	StateDraining
	StateStopped
	// StateHalted is absorbing: once entered, no transition leaves it.
	// Clearing a halt requires a process restart by an operator.
	StateHalted
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateHalted:
		return "halted"
	default:
		return "unknown"
	}
}

var transitions = map[State][]State{
	StateInitializing: {StateRunning, StateHalted},
	StateRunning:      {StateDraining, StateHalted},
	StateDraining:     {StateStopped, StateHalted},
	StateStopped:      {},
	StateHalted:       {},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
