package course

// transitions lists the allowed source states per target state.
// REVIEW -> DRAFTING is the refinement re-entry edge; FAILED is reachable on
// unrecoverable generation error only.
var transitions = map[State][]State{
	StateReview:     {StateDrafting},
	StateDrafting:   {StateReview},
	StateFinalized:  {StateReview},
	StateInProgress: {StateFinalized},
	StateCompleted:  {StateInProgress},
	StateFailed:     {StateDrafting, StateReview},
}

// transition moves crs to the target state, failing with
// *InvalidStateTransitionError if crs is not in an allowed source state.
func transition(crs *Course, to State) error {
	for _, from := range transitions[to] {
		if crs.State == from {
			crs.State = to
			return nil
		}
	}
	return &InvalidStateTransitionError{Current: crs.State, Requested: to}
}
