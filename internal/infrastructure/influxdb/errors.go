package influxdb

import "errors"

var (
	// ErrDisabled is returned by Connect when influxdb.enabled is false.
	// Callers should treat this as "run without telemetry", not a failure.
	ErrDisabled = errors.New("influxdb: disabled in configuration")

	// ErrConnectionFailed is returned when the server cannot be reached
	// or rejects the configured token.
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrInvalidConfig is returned when required settings are missing.
	ErrInvalidConfig = errors.New("influxdb: invalid configuration")
)
