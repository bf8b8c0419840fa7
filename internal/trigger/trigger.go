package trigger

import (
	"context"
	"fmt"

	"github.com/nerrad567/order-relay/internal/infrastructure/config"
	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/infrastructure/mqtt"
	"github.com/nerrad567/order-relay/internal/order"
)

// Trigger fires the hardware side effect for one accepted order.
//
// Implementations must respect ctx cancellation and return promptly when
// the deadline passes. A nil return means the trigger was delivered as far
// as the backend can observe; it does not guarantee the physical action
// completed.
type Trigger interface {
	// Fire attempts the side effect for the given order notification.
	Fire(ctx context.Context, notification *order.Notification) error

	// Name identifies the backend for logs and the metrics endpoint.
	Name() string
}

// New builds the trigger backend selected by configuration.
//
// The mqtt backend requires a connected MQTT client; passing nil for any
// other mode is fine.
func New(cfg config.TriggerConfig, mqttClient *mqtt.Client, logger *logging.Logger) (Trigger, error) {
	switch cfg.Mode {
	case config.TriggerModeScript:
		return newScriptTrigger(cfg, logger), nil
	case config.TriggerModeMQTT:
		if mqttClient == nil {
			return nil, fmt.Errorf("%w: mqtt trigger requires a connected MQTT client", ErrInvalidMode)
		}
		return newMQTTTrigger(cfg, mqttClient, logger), nil
	case config.TriggerModeLog:
		return newLogTrigger(logger), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, cfg.Mode)
	}
}
