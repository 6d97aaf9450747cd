package logic

import "time"

// Relay is a retriggerable one-shot timer holding an output on after the most
// recent trigger. Each trigger replaces the pending deadline rather than
// adding to it.
type Relay struct {
	on       bool
	deadline Tick
}

// Trigger turns the output on and moves the deadline to now+timeout.
// It returns the new deadline.
func (r *Relay) Trigger(now Tick, timeout time.Duration) Tick {
	r.on = true
	r.deadline = now.Add(timeout)
	return r.deadline
}

// Expire turns the output off. It reports whether the output was on.
func (r *Relay) Expire() bool {
	if !r.on {
		return false
	}
	r.on = false
	r.deadline = 0
	return true
}

// Retime moves the pending deadline to now+timeout when the output is on.
// It reports false and leaves the state alone when the relay is idle.
func (r *Relay) Retime(now Tick, timeout time.Duration) (Tick, bool) {
	if !r.on {
		return 0, false
	}
	r.deadline = now.Add(timeout)
	return r.deadline, true
}

// On reports whether the output is currently held on.
func (r *Relay) On() bool {
	return r.on
}

// Deadline returns the pending off time, if armed.
func (r *Relay) Deadline() (Tick, bool) {
	return r.deadline, r.on
}
