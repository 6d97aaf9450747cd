//go:build !linux

package gpio

import (
	"errors"

	"github.com/sweeney/motion-detector/internal/settings"
)

// RealDevice is not available on non-Linux platforms.
type RealDevice struct{}

// NewRealDevice returns an error on non-Linux platforms.
func NewRealDevice(lines Lines, h Handlers) (*RealDevice, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// SetSensitivity is not implemented on non-Linux platforms.
func (d *RealDevice) SetSensitivity(s settings.Sensitivity) error {
	return errors.New("gpio: not supported")
}

// SetOutput is not implemented on non-Linux platforms.
func (d *RealDevice) SetOutput(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (d *RealDevice) Close() error {
	return nil
}
