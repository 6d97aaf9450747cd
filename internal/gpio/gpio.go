// Package gpio drives the node's digital I/O with hardware abstraction: the
// PIR motion input, the local push button and the relay output.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"time"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/settings"
)

// Device is the node-facing side of the GPIO hardware. It satisfies
// node.PIRDriver and node.Actuator.
type Device interface {
	// SetSensitivity adjusts the PIR input filtering.
	SetSensitivity(s settings.Sensitivity) error

	// SetOutput drives the relay. A device without a relay line ignores it.
	SetOutput(on bool) error

	// Close releases GPIO resources and leaves the relay off.
	Close() error
}

// Lines selects character device lines. A negative offset disables that
// input or output.
type Lines struct {
	Chip   string
	PIR    int
	Button int
	Relay  int
}

// Handlers receive input edges. They are called from the GPIO event
// goroutine and must only hand the event off.
type Handlers struct {
	Motion func()
	Button func(kind logic.ButtonKind)
}

// HoldTime is how long the button must be held to report a hold instead
// of a click.
const HoldTime = time.Second

// buttonDebounce filters contact bounce on the push button.
const buttonDebounce = 20 * time.Millisecond

// DebounceFor maps a PIR sensitivity to the input debounce period. Higher
// sensitivity accepts shorter pulses.
func DebounceFor(s settings.Sensitivity) time.Duration {
	switch s {
	case settings.SensitivityLow:
		return 200 * time.Millisecond
	case settings.SensitivityHigh:
		return 50 * time.Millisecond
	case settings.SensitivityVeryHigh:
		return 20 * time.Millisecond
	default:
		return 100 * time.Millisecond
	}
}

// buttonTracker classifies press/release edges into clicks and holds.
// Timestamps are the kernel event times.
type buttonTracker struct {
	pressed bool
	since   time.Duration
}

// press records the start of a press.
func (b *buttonTracker) press(ts time.Duration) {
	b.pressed = true
	b.since = ts
}

// release ends a press and reports its kind. A release without a
// preceding press is ignored.
func (b *buttonTracker) release(ts time.Duration) (logic.ButtonKind, bool) {
	if !b.pressed {
		return "", false
	}
	b.pressed = false
	if ts-b.since >= HoldTime {
		return logic.ButtonHold, true
	}
	return logic.ButtonClick, true
}
