// Package sensor provides sampled analog inputs (thermometer, battery) with
// hardware abstraction. The real implementation reads Linux sysfs attributes.
package sensor

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNoValue is returned when a sensor produced no valid value.
var ErrNoValue = errors.New("sensor: no valid value")

// Reader samples one quantity.
type Reader interface {
	// Read returns the decoded value or an error when no valid value is available.
	Read() (float64, error)
}

// Default sysfs attributes.
const (
	DefaultTemperaturePath = "/sys/class/hwmon/hwmon0/temp1_input"
	DefaultBatteryPath     = "/sys/class/power_supply/battery/voltage_now"
)

// Sysfs reads an integer sysfs attribute and scales it.
type Sysfs struct {
	path  string
	scale float64
}

// NewTemperature reads a hwmon temperature attribute (millidegrees Celsius).
func NewTemperature(path string) *Sysfs {
	return &Sysfs{path: path, scale: 0.001}
}

// NewBattery reads a power_supply voltage attribute. scale converts the raw
// reading to volts (1e-6 for the kernel's microvolts).
func NewBattery(path string, scale float64) *Sysfs {
	return &Sysfs{path: path, scale: scale}
}

// Read implements Reader.
func (s *Sysfs) Read() (float64, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", s.path, err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, fmt.Errorf("read %s: %w", s.path, ErrNoValue)
	}
	raw, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", s.path, err)
	}
	return float64(raw) * s.scale, nil
}
