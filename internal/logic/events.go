package logic

// Source identifies the producer of an event. Handlers are registered per source.
type Source string

const (
	SourcePIR         Source = "pir"
	SourceTemperature Source = "temperature"
	SourceBattery     Source = "battery"
	SourceButton      Source = "button"
)

// Event is one of the closed set of sensor events delivered to the node.
type Event interface {
	Source() Source
}

// Motion is a single raw PIR pulse.
type Motion struct{}

// Source implements Event.
func (Motion) Source() Source { return SourcePIR }

// Temperature is a decoded thermometer sample in degrees Celsius.
// Err is set when the driver could not produce a valid value.
type Temperature struct {
	Celsius float64
	Err     error
}

// Source implements Event.
func (Temperature) Source() Source { return SourceTemperature }

// Battery is a decoded battery voltage sample.
type Battery struct {
	Voltage float64
	Err     error
}

// Source implements Event.
func (Battery) Source() Source { return SourceBattery }

// ButtonKind distinguishes a short click from a long hold.
type ButtonKind string

const (
	ButtonClick ButtonKind = "CLICK"
	ButtonHold  ButtonKind = "HOLD"
)

// Button is a classified press of the local control input.
type Button struct {
	Kind ButtonKind
}

// Source implements Event.
func (Button) Source() Source { return SourceButton }
