// Package trigger fires the local hardware side effect for accepted orders.
//
// Each accepted order notification produces exactly one trigger attempt.
// Attempts are at-most-once: there is no retry and no queue, and a failed
// attempt is reported to the caller so the cloud backend sees the failure.
//
// Three backends are provided, selected by trigger.mode in configuration:
//
//   - script: runs a local executable per order, payload as JSON on stdin
//   - mqtt: publishes a command to the machine controller's command topic,
//     optionally waiting for an acknowledgement
//   - log: records the order and does nothing (development mode)
//
// All backends honour context cancellation and the configured trigger
// timeout.
package trigger
