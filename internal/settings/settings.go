// Package settings holds the tunable node parameters, their compiled-in
// defaults and the name table used by the command surface.
package settings

import "time"

// SchemaVersion identifies the layout of Configuration in persistent storage.
// A stored record with a different version is discarded in favour of defaults.
const SchemaVersion uint16 = 0x1234

// Sensitivity is the PIR sensitivity level. The button hold cycles through
// the levels in order.
type Sensitivity uint8

const (
	SensitivityLow Sensitivity = iota
	SensitivityMedium
	SensitivityHigh
	SensitivityVeryHigh
)

// String returns a human-readable sensitivity name.
func (s Sensitivity) String() string {
	switch s {
	case SensitivityLow:
		return "LOW"
	case SensitivityMedium:
		return "MEDIUM"
	case SensitivityHigh:
		return "HIGH"
	case SensitivityVeryHigh:
		return "VERY_HIGH"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is one of the defined levels.
func (s Sensitivity) Valid() bool {
	return s <= SensitivityVeryHigh
}

// Next returns the following level, wrapping from VeryHigh back to Low.
func (s Sensitivity) Next() Sensitivity {
	if s >= SensitivityVeryHigh {
		return SensitivityLow
	}
	return s + 1
}

// Configuration is the single versioned record of node parameters.
type Configuration struct {
	PIRSensitivity        Sensitivity   `cbor:"pir_sensitivity"`
	PIRPublishMinInterval time.Duration `cbor:"pir_publish_min_interval"` // 0 disables count publish

	EnterThreshold         int           `cbor:"enter_threshold"`
	LeaveThreshold         int           `cbor:"leave_threshold"`
	PresenceWindowInterval time.Duration `cbor:"presence_window_interval"` // 0 disables presence

	TemperatureMeasureInterval    time.Duration `cbor:"temperature_measure_interval"`
	TemperaturePublishInterval    time.Duration `cbor:"temperature_publish_interval"`
	TemperaturePublishValueChange float64       `cbor:"temperature_publish_value_change"`

	BatteryPublishInterval time.Duration `cbor:"battery_publish_interval"`

	MotionRelayEnabled    bool          `cbor:"motion_relay_enabled"`
	MotionDetectorTimeout time.Duration `cbor:"motion_detector_timeout"`
}

// Defaults returns the compiled-in configuration.
func Defaults() Configuration {
	return Configuration{
		PIRSensitivity:        SensitivityMedium,
		PIRPublishMinInterval: 1 * time.Minute,

		EnterThreshold:         4,
		LeaveThreshold:         2,
		PresenceWindowInterval: 2 * time.Minute,

		TemperatureMeasureInterval:    5 * time.Second,
		TemperaturePublishInterval:    15 * time.Minute,
		TemperaturePublishValueChange: 1.0,

		BatteryPublishInterval: 1 * time.Hour,

		MotionRelayEnabled:    true,
		MotionDetectorTimeout: 10 * time.Minute,
	}
}
