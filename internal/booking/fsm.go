// Package booking validates candidate slots, tracks a client's booking
// session and submits staged picks to the backend.
package booking

// State represents the current state of a booking session.
type State string

const (
	StateIdle             State = "idle"
	StateDateSelected     State = "date_selected"
	StateResourceSelected State = "resource_selected"
	StateSlotsStaged      State = "slots_staged"
	StateSubmitting       State = "submitting"
	StateCommitted        State = "committed"
	StateRejected         State = "rejected"
)

// FSM holds the allowed session transitions.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates an FSM with the booking session transitions.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle:             {StateDateSelected},
			StateDateSelected:     {StateDateSelected, StateResourceSelected, StateSlotsStaged, StateIdle},
			StateResourceSelected: {StateResourceSelected, StateDateSelected, StateSlotsStaged, StateIdle},
			StateSlotsStaged:      {StateSlotsStaged, StateDateSelected, StateResourceSelected, StateSubmitting, StateIdle},
			StateSubmitting:       {StateCommitted, StateRejected},
			StateCommitted:        {StateIdle},
			StateRejected:         {StateSubmitting, StateSlotsStaged, StateDateSelected, StateResourceSelected, StateIdle},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	for _, s := range f.transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
