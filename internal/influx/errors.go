package influx

import "errors"

// Sentinel errors for the telemetry mirror.
var (
	// ErrDisabled indicates the mirror is turned off in configuration.
	ErrDisabled = errors.New("influx: disabled in configuration")

	// ErrConnectionFailed indicates the initial connection attempt failed.
	ErrConnectionFailed = errors.New("influx: connection failed")

	// ErrNotConnected is returned by writes after Close.
	ErrNotConnected = errors.New("influx: not connected")
)
