package trigger

import (
	"context"

	"github.com/nerrad567/order-relay/internal/infrastructure/logging"
	"github.com/nerrad567/order-relay/internal/order"
)

// logTrigger records accepted orders without touching any hardware.
// Used for development and for running the relay on machines that have
// no controller attached.
type logTrigger struct {
	logger *logging.Logger
}

func newLogTrigger(logger *logging.Logger) *logTrigger {
	return &logTrigger{logger: logger}
}

func (l *logTrigger) Name() string { return "log" }

func (l *logTrigger) Fire(_ context.Context, notification *order.Notification) error {
	if l.logger != nil {
		l.logger.Info("trigger fired (log mode)",
			"user_id", notification.UserID,
			"order_count", notification.OrderCount,
			"total_value", notification.TotalValue,
		)
	}
	return nil
}
