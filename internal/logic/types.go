// Package logic contains pure business logic for presence detection, publish
// throttling and the relay timeout.
// This package has NO external dependencies (no GPIO, MQTT, OS, or timers).
// Time is always injected as a Tick parameter.
package logic

import "time"

// Tick is a monotonic timestamp in milliseconds since the scheduler started.
type Tick int64

// Ticks converts a duration to ticks, truncating sub-millisecond precision.
func Ticks(d time.Duration) Tick {
	return Tick(d / time.Millisecond)
}

// Add returns the tick d after t.
func (t Tick) Add(d time.Duration) Tick {
	return t + Ticks(d)
}

// Duration returns t as an offset from the scheduler start.
func (t Tick) Duration() time.Duration {
	return time.Duration(t) * time.Millisecond
}

// PresenceState represents the debounced presence signal.
type PresenceState string

const (
	PresenceInactive PresenceState = "INACTIVE"
	PresenceActive   PresenceState = "ACTIVE"
)

// Int returns the published integer form of the state (1 = active).
func (s PresenceState) Int() int {
	if s == PresenceActive {
		return 1
	}
	return 0
}

// Window is the outcome of one presence evaluation.
type Window struct {
	State   PresenceState
	Count   int  // raw motion events accumulated in the window
	Changed bool // State differs from the previous window
}

// ValueType tells the sink how to encode a published value.
type ValueType string

const (
	ValueInt   ValueType = "int"
	ValueFloat ValueType = "float"
)

// Channels the node publishes on. They follow the radio gateway topic layout.
const (
	ChannelTemperature    = "thermometer/0:1/temperature"
	ChannelBattery        = "battery/-/voltage"
	ChannelPresenceState  = "presence/-/state"
	ChannelPresenceEvents = "presence/-/events"
)

// CountKind identifies an event counter published through the sink.
type CountKind string

const (
	CountPIRMotion CountKind = "pir/-/event-count"
)
