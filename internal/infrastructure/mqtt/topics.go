package mqtt

import "fmt"

// Topic prefixes for the Order Relay MQTT namespace.
//
// All machine topics use the flat scheme: orderrelay/{category}/machine/{id}
const (
	// TopicPrefix is the base for all relay topics.
	TopicPrefix = "orderrelay"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "orderrelay/system"
)

// Topics provides builders for Order Relay MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.MachineCommand("coffee-machine")
//	// Returns: "orderrelay/command/machine/coffee-machine"
type Topics struct{}

// MachineCommand returns the topic for commands to a machine controller.
//
// Example: orderrelay/command/machine/coffee-machine
func (Topics) MachineCommand(machineID string) string {
	return fmt.Sprintf("%s/command/machine/%s", TopicPrefix, machineID)
}

// MachineAck returns the topic on which a machine controller acknowledges
// a command.
//
// Example: orderrelay/ack/machine/coffee-machine
func (Topics) MachineAck(machineID string) string {
	return fmt.Sprintf("%s/ack/machine/%s", TopicPrefix, machineID)
}

// MachineStatus returns the topic for a machine controller's own status.
//
// Example: orderrelay/status/machine/coffee-machine
func (Topics) MachineStatus(machineID string) string {
	return fmt.Sprintf("%s/status/machine/%s", TopicPrefix, machineID)
}

// SystemStatus returns the relay's own status topic (online/offline, LWT).
//
// Example: orderrelay/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllMachineAcks returns a pattern matching acknowledgements from any machine.
//
// Pattern: orderrelay/ack/machine/+
func (Topics) AllMachineAcks() string {
	return fmt.Sprintf("%s/ack/machine/+", TopicPrefix)
}

// AllMachineStatus returns a pattern matching status from any machine.
//
// Pattern: orderrelay/status/machine/+
func (Topics) AllMachineStatus() string {
	return fmt.Sprintf("%s/status/machine/+", TopicPrefix)
}
