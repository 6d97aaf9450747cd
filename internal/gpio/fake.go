package gpio

import (
	"sync"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/settings"
)

// FakeDevice is a test double that records outputs and lets tests inject
// input edges.
type FakeDevice struct {
	mu       sync.Mutex
	handlers Handlers

	// Sensitivities records every SetSensitivity call.
	Sensitivities []settings.Sensitivity

	// Outputs records every SetOutput call.
	Outputs []bool

	// Closed tracks if Close was called
	Closed bool

	// OutputError, if set, will be returned by SetOutput()
	OutputError error
}

// NewFakeDevice creates a FakeDevice delivering injected edges to h.
func NewFakeDevice(h Handlers) *FakeDevice {
	return &FakeDevice{handlers: h}
}

// Motion injects one PIR pulse.
func (f *FakeDevice) Motion() {
	if f.handlers.Motion != nil {
		f.handlers.Motion()
	}
}

// Press injects a classified button press.
func (f *FakeDevice) Press(kind logic.ButtonKind) {
	if f.handlers.Button != nil {
		f.handlers.Button(kind)
	}
}

// SetSensitivity records s.
func (f *FakeDevice) SetSensitivity(s settings.Sensitivity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sensitivities = append(f.Sensitivities, s)
	return nil
}

// SetOutput records on.
func (f *FakeDevice) SetOutput(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OutputError != nil {
		return f.OutputError
	}
	f.Outputs = append(f.Outputs, on)
	return nil
}

// Output returns the last driven relay state.
func (f *FakeDevice) Output() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Outputs) > 0 && f.Outputs[len(f.Outputs)-1]
}

// Close marks the device as closed.
func (f *FakeDevice) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}
