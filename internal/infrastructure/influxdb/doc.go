// Package influxdb provides an optional telemetry sink for Order Relay.
//
// When enabled, the relay records request and trigger metrics to InfluxDB
// using the non-blocking write API with client-side batching. Writes never
// block request handling; failed writes are reported through an error
// callback and dropped.
//
// The client is entirely optional. When influxdb.enabled is false in the
// configuration, Connect returns ErrDisabled and the relay runs without
// telemetry.
package influxdb
