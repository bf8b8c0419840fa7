package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/order-relay/internal/order"
)

// commandBus is the slice of the MQTT client the trigger needs.
// Satisfied by *mqtt.Client; narrowed for testing. The ack subscription
// lives for the life of the trigger, so no unsubscribe is needed here.
type commandBus interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler mqtt.MessageHandler) error
}

// mqttTrigger publishes an order command to the machine controller's
// command topic.
//
// With wait_for_ack enabled, Fire blocks until the controller publishes
// any message on its ack topic or the context deadline passes. Acks are
// matched per attempt; overlapping attempts for the same machine share
// the subscription.
type mqttTrigger struct {
	bus       commandBus
	machineID string
	waitAck   bool
	logger    *logging.Logger

	// pending maps in-flight command IDs to their ack channels.
	pending map[string]chan []byte
	mu      sync.Mutex

	// subscribed is set once the ack subscription is established.
	subscribed bool
}

// commandPayload is the message published to the machine command topic.
type commandPayload struct {
	Action    string              `json:"action"`
	CommandID string              `json:"command_id"`
	Order     *order.Notification `json:"order"`
	Timestamp string              `json:"timestamp"`
}

// ackPayload is the minimal shape expected on the ack topic.
type ackPayload struct {
	CommandID string `json:"command_id"`
	Status    string `json:"status"`
}

// newCommandID generates a unique ID so acks can be matched to the
// command that requested them.
func newCommandID() string {
	return uuid.NewString()
}

func newMQTTTrigger(cfg config.TriggerConfig, bus commandBus, logger *logging.Logger) *mqttTrigger {
	return &mqttTrigger{
		bus:       bus,
		machineID: cfg.MQTT.MachineID,
		waitAck:   cfg.MQTT.WaitForAck,
		logger:    logger,
		pending:   make(map[string]chan []byte),
	}
}

func (m *mqttTrigger) Name() string { return "mqtt" }

func (m *mqttTrigger) Fire(ctx context.Context, notification *order.Notification) error {
	commandID := newCommandID()

	payload, err := json.Marshal(commandPayload{
		Action:    "order",
		CommandID: commandID,
		Order:     notification,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: encoding command: %w", ErrFireFailed, err)
	}

	topic := mqtt.Topics{}.MachineCommand(m.machineID)

	if !m.waitAck {
		if err := m.bus.Publish(topic, payload); err != nil {
			return fmt.Errorf("%w: %w", ErrFireFailed, err)
		}
		return nil
	}

	// Register for the ack before publishing so a fast controller
	// cannot ack between publish and registration.
	ackCh, err := m.registerPending(commandID)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFireFailed, err)
	}
	defer m.unregisterPending(commandID)

	if err := m.bus.Publish(topic, payload); err != nil {
		return fmt.Errorf("%w: %w", ErrFireFailed, err)
	}

	select {
	case raw := <-ackCh:
		var ack ackPayload
		if err := json.Unmarshal(raw, &ack); err == nil && ack.Status == "error" {
			return fmt.Errorf("%w: machine reported error for command %s", ErrFireFailed, commandID)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: command %s: %w", ErrAckTimeout, commandID, ctx.Err())
	}
}

// registerPending ensures the ack subscription exists and allocates a
// channel for this command's ack.
func (m *mqttTrigger) registerPending(commandID string) (chan []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.subscribed {
		ackTopic := mqtt.Topics{}.MachineAck(m.machineID)
		if err := m.bus.Subscribe(ackTopic, m.handleAck); err != nil {
			return nil, err
		}
		m.subscribed = true
	}

	ch := make(chan []byte, 1)
	m.pending[commandID] = ch
	return ch, nil
}

func (m *mqttTrigger) unregisterPending(commandID string) {
	m.mu.Lock()
	delete(m.pending, commandID)
	m.mu.Unlock()
}

// handleAck routes an ack message to the waiting Fire call, if any.
// Acks for unknown or already-expired commands are dropped.
func (m *mqttTrigger) handleAck(_ string, payload []byte) error {
	var ack ackPayload
	if err := json.Unmarshal(payload, &ack); err != nil {
		return fmt.Errorf("decoding ack: %w", err)
	}

	m.mu.Lock()
	ch, ok := m.pending[ack.CommandID]
	m.mu.Unlock()
	if !ok {
		if m.logger != nil {
			m.logger.Debug("ack for unknown command", "command_id", ack.CommandID)
		}
		return nil
	}

	select {
	case ch <- payload:
	default:
	}
	return nil
}
