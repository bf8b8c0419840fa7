package mqtt

import (
	"fmt"
	"strings"
)

// Subscribe registers a handler for messages on the given topic.
//
// The topic may contain MQTT wildcards:
//   - "+" matches a single level: orderrelay/machine/+/ack
//   - "#" matches all remaining levels: orderrelay/#
//
// The subscription is tracked and automatically restored after
// reconnection. Subscribing to an already subscribed topic replaces
// the existing handler.
//
// Parameters:
//   - topic: Topic filter to subscribe to
//   - handler: Callback invoked for each received message
//
// Returns:
//   - error: If not connected, topic invalid, or broker rejects subscription
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	if !c.IsConnected() {
		return fmt.Errorf("subscribe to %s: %w", topic, ErrNotConnected)
	}

	if err := validateSubscribeTopic(topic); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	if handler == nil {
		return fmt.Errorf("%w: nil handler for topic %s", ErrSubscribeFailed, topic)
	}

	token := c.client.Subscribe(topic, byte(c.cfg.QoS), c.wrapHandler(handler))
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout subscribing to %s", ErrSubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
	}

	c.subMu.Lock()
	c.subscriptions[topic] = subscription{
		topic:   topic,
		qos:     byte(c.cfg.QoS),
		handler: handler,
	}
	c.subMu.Unlock()

	return nil
}

// Unsubscribe removes a subscription and stops tracking it.
//
// Returns:
//   - error: If not connected or broker rejects the unsubscribe
func (c *Client) Unsubscribe(topic string) error {
	if !c.IsConnected() {
		return fmt.Errorf("unsubscribe from %s: %w", topic, ErrNotConnected)
	}

	token := c.client.Unsubscribe(topic)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout unsubscribing from %s", ErrUnsubscribeFailed, topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrUnsubscribeFailed, err)
	}

	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()

	return nil
}

// SubscriptionCount returns the number of active tracked subscriptions.
func (c *Client) SubscriptionCount() int {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	return len(c.subscriptions)
}

// HasSubscription reports whether the topic has an active subscription.
func (c *Client) HasSubscription(topic string) bool {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	_, ok := c.subscriptions[topic]
	return ok
}

// validateSubscribeTopic checks that a topic filter is valid for subscription.
//
// Wildcards are allowed but must be positioned correctly:
//   - "#" must be the last character and occupy a whole level
//   - "+" must occupy a whole level
func validateSubscribeTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: empty topic", ErrInvalidTopic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: null character in topic", ErrInvalidTopic)
	}

	levels := strings.Split(topic, "/")
	for i, level := range levels {
		if strings.Contains(level, "#") {
			if level != "#" || i != len(levels)-1 {
				return fmt.Errorf("%w: '#' must be the final level in %q", ErrInvalidTopic, topic)
			}
		}
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("%w: '+' must occupy a whole level in %q", ErrInvalidTopic, topic)
		}
	}

	return nil
}
