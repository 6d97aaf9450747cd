package node

import (
	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/settings"
)

// Status is a point-in-time snapshot of the node, safe to hand to other
// goroutines.
type Status struct {
	Tick logic.Tick

	Presence     logic.PresenceState
	WindowCount  int // count evaluated by the most recent window
	PendingCount int // motion events in the current, open window

	Relay         bool
	RelayDeadline logic.Tick

	PIREventCount uint16

	Temperature      float64
	TemperatureValid bool
	Battery          float64
	BatteryValid     bool

	Config settings.Configuration
}

// Status returns a snapshot of the current state.
func (n *Node) Status() Status {
	st := Status{
		Tick:          n.sched.Now(),
		Presence:      n.presence.State(),
		WindowCount:   n.lastWindow.Count,
		PendingCount:  n.presence.Count(),
		Relay:         n.relay.On(),
		PIREventCount: n.pirEventCount,
		Config:        n.cfg,
	}
	if deadline, ok := n.relay.Deadline(); ok {
		st.RelayDeadline = deadline
	}
	if n.temperature != nil {
		st.Temperature = *n.temperature
		st.TemperatureValid = true
	}
	if n.voltage != nil {
		st.Battery = *n.voltage
		st.BatteryValid = true
	}
	return st
}
