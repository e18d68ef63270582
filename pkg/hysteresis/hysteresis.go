// Package hysteresis damps small changes in the commanded fan speed.
package hysteresis

// State is the last speed handed to the fans. It lives for the process only.
type State struct {
	LastCommanded int
}

func NewState(initial int) *State {
	return &State{LastCommanded: initial}
}

type Filter struct {
	// Threshold is the change in raw speed that must be exceeded before a new
	// candidate replaces the last commanded speed.
	Threshold int
}

// Apply returns the speed to command. s is only updated when the candidate is adopted.
func (f Filter) Apply(candidate int, s *State) int {
	delta := candidate - s.LastCommanded
	if delta < 0 {
		delta = -delta
	}
	if delta > f.Threshold {
		s.LastCommanded = candidate
	}
	return s.LastCommanded
}
