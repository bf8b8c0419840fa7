// Package order defines the order notification payload sent by the cloud
// ordering backend and its validation rules.
//
// Notifications are parsed from inbound HTTP requests, validated, handed to
// the hardware trigger, and discarded. They are never persisted.
package order
