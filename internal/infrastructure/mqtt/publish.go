package mqtt

import (
	"fmt"
	"strings"
)

const (
	// maxPayloadSize limits published payloads to 1 MB.
	maxPayloadSize = 1 << 20
)

// Publish sends a message to the specified topic.
//
// The message is published with the QoS level from config and waits
// for confirmation based on QoS:
//   - QoS 0: Returns immediately after network write
//   - QoS 1: Waits for PUBACK from broker
//   - QoS 2: Waits for complete handshake
//
// Parameters:
//   - topic: Target topic (e.g., "orderrelay/machine/espresso-01/command")
//   - payload: Message payload (typically JSON)
//
// Returns:
//   - error: If not connected, topic invalid, payload too large, or publish fails
func (c *Client) Publish(topic string, payload []byte) error {
	return c.publish(topic, payload, false)
}

// PublishRetained sends a message with the retained flag set.
//
// The broker stores the message and delivers it to new subscribers
// immediately on subscription. Used for status topics where late
// joiners need the current state.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.publish(topic, payload, true)
}

// PublishString is a convenience wrapper for string payloads.
func (c *Client) PublishString(topic string, payload string) error {
	return c.Publish(topic, []byte(payload))
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("publish to %s: %w", topic, ErrNotConnected)
	}

	if err := validateTopic(topic); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload %d bytes exceeds %d byte limit",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}

	token := c.client.Publish(topic, byte(c.cfg.QoS), retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout publishing to %s", ErrPublishFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// validateTopic checks that a topic is valid for publishing.
//
// Publish topics must not contain wildcards (+ or #) and must not
// be empty or contain null characters.
func validateTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: null character in topic", ErrInvalidTopic)
	}
	return nil
}
