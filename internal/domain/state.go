package domain

// LeadState is the triage status shown to staff.
type LeadState string

const (
	StateUnhandled  LeadState = "unhandled"
	StateInProgress LeadState = "in_progress"
	StateClosed     LeadState = "closed"
)

var stateLabels = map[LeadState]string{
	StateUnhandled:  "Unhandled",
	StateInProgress: "In progress",
	StateClosed:     "Closed",
}

// Label returns the display label of the state.
func (s LeadState) Label() string {
	return stateLabels[s]
}

// StateView is the derived display status of a lead.
type StateView struct {
	State   LeadState
	Label   string
	Overdue bool
}

// State derives the triage state from stored fields. An outcome always wins
// over a recorded first action.
func (e *Event) State() LeadState {
	switch {
	case e.Outcome != nil:
		return StateClosed
	case e.FirstActionAt != nil:
		return StateInProgress
	default:
		return StateUnhandled
	}
}

// DeriveState computes the display status of a lead. Only unhandled leads
// carry the overdue flag.
func DeriveState(l *Lead) StateView {
	state := l.State()
	return StateView{
		State:   state,
		Label:   state.Label(),
		Overdue: state == StateUnhandled && l.Overdue,
	}
}

// Summary holds the dashboard counters.
type Summary struct {
	Unhandled  int `json:"unhandled"`
	InProgress int `json:"in_progress"`
	Booked     int `json:"booked"`
	Lost       int `json:"lost"`
	Overdue    int `json:"overdue"`
	Total      int `json:"total"`
}

// Summarize counts leads per state. Lost covers leads that went to a
// competitor or were never real.
func Summarize(leads []*Lead) Summary {
	var s Summary
	for _, l := range leads {
		s.Total++
		view := DeriveState(l)
		switch view.State {
		case StateUnhandled:
			s.Unhandled++
			if view.Overdue {
				s.Overdue++
			}
		case StateInProgress:
			s.InProgress++
		case StateClosed:
			switch *l.Outcome {
			case OutcomeBooked:
				s.Booked++
			case OutcomeAlreadyHired, OutcomeWrongNumber:
				s.Lost++
			}
		}
	}
	return s
}
