package settings

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

// Field lookup and validation errors.
var (
	ErrUnknownField = errors.New("unknown config field")
	ErrInvalidValue = errors.New("invalid config value")
)

// Field names as used by the command surface.
const (
	FieldPIRSensitivity                = "PIR Sensitivity"
	FieldPIRPublishMinInterval         = "PIR Publish Min Interval"
	FieldPresenceEnterThreshold        = "Presence Enter Threshold"
	FieldPresenceLeaveThreshold        = "Presence Leave Threshold"
	FieldPresenceInterval              = "Presence Interval"
	FieldTemperatureMeasureInterval    = "Temperature Measure Interval"
	FieldTemperaturePublishInterval    = "Temperature Publish Interval"
	FieldTemperaturePublishValueChange = "Temperature Publish Value Change"
	FieldBatteryPublishInterval        = "Battery Publish Interval"
	FieldMotionRelayEnabled            = "Motion Relay Enabled"
	FieldMotionDetectorTimeout         = "Motion Detector Timeout"
)

// Kind describes how a field is encoded as a command integer.
type Kind uint8

const (
	KindInt     Kind = iota // plain integer
	KindSeconds             // duration in whole seconds
	KindTenths              // float in integer tenths
	KindBool                // 0 or 1
	KindEnum                // Sensitivity ordinal
)

// Field binds a command name to a Configuration member.
type Field struct {
	Name string
	Kind Kind

	get func(c *Configuration) int64
	set func(c *Configuration, v int64)
}

var fields = []Field{
	{
		Name: FieldPIRSensitivity,
		Kind: KindEnum,
		get:  func(c *Configuration) int64 { return int64(c.PIRSensitivity) },
		set:  func(c *Configuration, v int64) { c.PIRSensitivity = Sensitivity(v) },
	},
	secondsField(FieldPIRPublishMinInterval, func(c *Configuration) *time.Duration { return &c.PIRPublishMinInterval }),
	intField(FieldPresenceEnterThreshold, func(c *Configuration) *int { return &c.EnterThreshold }),
	intField(FieldPresenceLeaveThreshold, func(c *Configuration) *int { return &c.LeaveThreshold }),
	secondsField(FieldPresenceInterval, func(c *Configuration) *time.Duration { return &c.PresenceWindowInterval }),
	secondsField(FieldTemperatureMeasureInterval, func(c *Configuration) *time.Duration { return &c.TemperatureMeasureInterval }),
	secondsField(FieldTemperaturePublishInterval, func(c *Configuration) *time.Duration { return &c.TemperaturePublishInterval }),
	{
		Name: FieldTemperaturePublishValueChange,
		Kind: KindTenths,
		get:  func(c *Configuration) int64 { return int64(math.Round(c.TemperaturePublishValueChange * 10)) },
		set:  func(c *Configuration, v int64) { c.TemperaturePublishValueChange = float64(v) / 10.0 },
	},
	secondsField(FieldBatteryPublishInterval, func(c *Configuration) *time.Duration { return &c.BatteryPublishInterval }),
	{
		Name: FieldMotionRelayEnabled,
		Kind: KindBool,
		get: func(c *Configuration) int64 {
			if c.MotionRelayEnabled {
				return 1
			}
			return 0
		},
		set: func(c *Configuration, v int64) { c.MotionRelayEnabled = v != 0 },
	},
	secondsField(FieldMotionDetectorTimeout, func(c *Configuration) *time.Duration { return &c.MotionDetectorTimeout }),
}

func secondsField(name string, ptr func(c *Configuration) *time.Duration) Field {
	return Field{
		Name: name,
		Kind: KindSeconds,
		get:  func(c *Configuration) int64 { return int64(*ptr(c) / time.Second) },
		set:  func(c *Configuration, v int64) { *ptr(c) = time.Duration(v) * time.Second },
	}
}

func intField(name string, ptr func(c *Configuration) *int) Field {
	return Field{
		Name: name,
		Kind: KindInt,
		get:  func(c *Configuration) int64 { return int64(*ptr(c)) },
		set:  func(c *Configuration, v int64) { *ptr(c) = int(v) },
	}
}

// Fields returns every field in listing order.
func Fields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// Lookup finds a field by its exact command name.
func Lookup(name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Get returns the field's command integer.
func (f Field) Get(c *Configuration) int64 {
	return f.get(c)
}

// Set validates v and stores it. On error c is left untouched.
func (f Field) Set(c *Configuration, v int64) error {
	if v < 0 || v > math.MaxUint32 {
		return fmt.Errorf("%w: %s=%d", ErrInvalidValue, f.Name, v)
	}
	switch f.Kind {
	case KindEnum:
		if v > math.MaxUint8 || !Sensitivity(v).Valid() {
			return fmt.Errorf("%w: %s=%d", ErrInvalidValue, f.Name, v)
		}
	case KindBool:
		if v > 1 {
			return fmt.Errorf("%w: %s=%d", ErrInvalidValue, f.Name, v)
		}
	}
	f.set(c, v)
	return nil
}

// Format renders the field for a listing. Tenths fields print with one
// decimal, everything else as its command integer.
func (f Field) Format(c *Configuration) string {
	if f.Kind == KindTenths {
		return strconv.FormatFloat(float64(f.get(c))/10.0, 'f', 1, 64)
	}
	return strconv.FormatInt(f.get(c), 10)
}
