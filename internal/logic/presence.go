package logic

// Presence accumulates raw motion events over a window and derives a stable
// presence signal using enter/leave hysteresis.
//
// Thresholds are not validated against each other. With leave >= enter the
// state flips on every window whose count lies between them.
type Presence struct {
	count int
	state PresenceState
}

// NewPresence creates an accumulator in the INACTIVE state.
func NewPresence() *Presence {
	return &Presence{state: PresenceInactive}
}

// Motion records one raw motion event in the current window.
func (p *Presence) Motion() {
	p.count++
}

// Count returns the number of motion events since the last evaluation.
func (p *Presence) Count() int {
	return p.count
}

// State returns the current debounced state.
func (p *Presence) State() PresenceState {
	return p.state
}

// Evaluate closes the current window: it applies the transition rules for the
// accumulated count, resets the count and returns the result.
func (p *Presence) Evaluate(enter, leave int) Window {
	prev := p.state

	switch p.state {
	case PresenceInactive:
		if p.count >= enter {
			p.state = PresenceActive
		}
	case PresenceActive:
		if p.count <= leave {
			p.state = PresenceInactive
		}
	}

	w := Window{
		State:   p.state,
		Count:   p.count,
		Changed: p.state != prev,
	}
	p.count = 0
	return w
}
