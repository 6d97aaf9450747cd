//go:build linux

package gpio

import (
	"fmt"
	"sync"

	"github.com/warthog618/go-gpiocdev"

	"github.com/sweeney/motion-detector/internal/logic"
	"github.com/sweeney/motion-detector/internal/settings"
)

// RealDevice drives actual hardware through the Linux GPIO character device.
type RealDevice struct {
	chip   *gpiocdev.Chip
	pir    *gpiocdev.Line
	button *gpiocdev.Line
	relay  *gpiocdev.Line

	mu      sync.Mutex
	tracker buttonTracker
}

// NewRealDevice opens the chip and requests the configured lines. Edge
// events are delivered to h from the library's event goroutine.
func NewRealDevice(lines Lines, h Handlers) (*RealDevice, error) {
	chip, err := gpiocdev.NewChip(lines.Chip)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}
	d := &RealDevice{chip: chip}

	if lines.PIR >= 0 {
		d.pir, err = chip.RequestLine(lines.PIR,
			gpiocdev.AsInput,
			gpiocdev.WithPullDown,
			gpiocdev.WithRisingEdge,
			gpiocdev.WithDebounce(DebounceFor(settings.SensitivityMedium)),
			gpiocdev.WithEventHandler(func(gpiocdev.LineEvent) {
				if h.Motion != nil {
					h.Motion()
				}
			}))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request PIR pin %d: %w", lines.PIR, err)
		}
	}

	if lines.Button >= 0 {
		d.button, err = chip.RequestLine(lines.Button,
			gpiocdev.AsInput,
			gpiocdev.AsActiveLow,
			gpiocdev.WithPullUp,
			gpiocdev.WithBothEdges,
			gpiocdev.WithDebounce(buttonDebounce),
			gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
				d.buttonEdge(evt, h.Button)
			}))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request button pin %d: %w", lines.Button, err)
		}
	}

	if lines.Relay >= 0 {
		d.relay, err = chip.RequestLine(lines.Relay, gpiocdev.AsOutput(0))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("request relay pin %d: %w", lines.Relay, err)
		}
	}

	return d, nil
}

func (d *RealDevice) buttonEdge(evt gpiocdev.LineEvent, report func(kind logic.ButtonKind)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if evt.Type == gpiocdev.LineEventRisingEdge {
		d.tracker.press(evt.Timestamp)
		return
	}
	if kind, ok := d.tracker.release(evt.Timestamp); ok && report != nil {
		report(kind)
	}
}

// SetSensitivity reconfigures the PIR debounce period.
func (d *RealDevice) SetSensitivity(s settings.Sensitivity) error {
	if d.pir == nil {
		return nil
	}
	if err := d.pir.Reconfigure(gpiocdev.WithDebounce(DebounceFor(s))); err != nil {
		return fmt.Errorf("reconfigure PIR pin: %w", err)
	}
	return nil
}

// SetOutput drives the relay line.
func (d *RealDevice) SetOutput(on bool) error {
	if d.relay == nil {
		return nil
	}
	v := 0
	if on {
		v = 1
	}
	if err := d.relay.SetValue(v); err != nil {
		return fmt.Errorf("set relay pin: %w", err)
	}
	return nil
}

// Close releases GPIO resources.
// The relay is reconfigured to input with pull-down (matching Pi boot
// defaults) before closing so the output drops when the daemon exits.
func (d *RealDevice) Close() error {
	var errs []error

	if d.relay != nil {
		if err := d.relay.Reconfigure(gpiocdev.AsInput, gpiocdev.WithPullDown); err != nil {
			errs = append(errs, fmt.Errorf("reconfigure relay pin: %w", err))
		}
		if err := d.relay.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close relay pin: %w", err))
		}
	}
	for name, l := range map[string]*gpiocdev.Line{"PIR": d.pir, "button": d.button} {
		if l == nil {
			continue
		}
		if err := l.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s pin: %w", name, err))
		}
	}
	if d.chip != nil {
		if err := d.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
