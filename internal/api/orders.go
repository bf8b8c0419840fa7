package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/order-relay/internal/order"
)

// OrderResponse is returned for an accepted order notification.
type OrderResponse struct {
	Status     string  `json:"status"`
	Message    string  `json:"message"`
	EventID    string  `json:"event_id"`
	OrderCount int     `json:"order_count"`
	TotalValue float64 `json:"total_value"`
	Timestamp  string  `json:"timestamp"`
}

// TestResponse echoes the payload of a connectivity test.
type TestResponse struct {
	Status       string `json:"status"`
	Message      string `json:"message"`
	ReceivedData any    `json:"received_data"`
	Timestamp    string `json:"timestamp"`
}

// handleOrderNotification accepts an order from the cloud backend, fires the
// local hardware trigger, and broadcasts the order to WebSocket subscribers.
//
// The trigger is attempted exactly once with a bounded timeout. A trigger
// failure is reported as 500 trigger_failed so the backend knows the
// side effect did not happen; the order is not queued or retried.
func (s *Server) handleOrderNotification(w http.ResponseWriter, r *http.Request) {
	notification, err := order.Decode(r.Body)
	if err != nil {
		s.ordersRejected.Add(1)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeBadRequest(w, "request body too large")
			return
		}
		// Malformed JSON and semantic failures are both payload
		// validation from the caller's point of view.
		if errors.Is(err, order.ErrInvalidJSON) {
			writeError(w, http.StatusBadRequest, ErrCodeValidation, "invalid JSON body")
			return
		}
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
		return
	}

	eventID := uuid.NewString()
	s.logger.Info("order notification received",
		"event_id", eventID,
		"user_id", notification.UserID,
		"order_count", notification.OrderCount,
		"total_value", notification.TotalValue,
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	// Fire the hardware trigger with a bounded budget so a stuck
	// script or silent machine cannot hold the request open.
	ctx, cancel := context.WithTimeout(r.Context(), s.triggerTimeout)
	defer cancel()

	start := time.Now()
	err = s.trigger.Fire(ctx, notification)
	duration := time.Since(start)

	if err != nil {
		s.triggerFailures.Add(1)
		s.logger.Error("trigger failed",
			"event_id", eventID,
			"backend", s.trigger.Name(),
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
		if s.influx != nil {
			s.influx.WriteTriggerMetric(s.trigger.Name(), "failed",
				float64(duration.Microseconds())/1000)
		}
		writeError(w, http.StatusInternalServerError, ErrCodeTriggerFailed,
			"order received but hardware trigger failed")
		return
	}

	s.ordersAccepted.Add(1)
	if s.influx != nil {
		s.influx.WriteTriggerMetric(s.trigger.Name(), "ok",
			float64(duration.Microseconds())/1000)
	}

	// Live feed for local dashboards.
	if s.hub != nil {
		s.hub.Broadcast("order.received", map[string]any{
			"event_id":    eventID,
			"user_id":     notification.UserID,
			"order_count": notification.OrderCount,
			"total_value": notification.TotalValue,
			"orders":      notification.Orders,
		})
	}

	writeJSON(w, http.StatusOK, OrderResponse{
		Status:     "success",
		Message:    "order notification processed",
		EventID:    eventID,
		OrderCount: notification.OrderCount,
		TotalValue: notification.TotalValue,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}

// handleTest verifies connectivity and auth without touching hardware.
// The request body, if any, is echoed back so the caller can confirm
// payloads survive the proxy chain intact.
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	var received any
	if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
		// An empty or non-JSON body is fine for a connectivity test.
		received = nil
	}

	s.logger.Info("test notification received",
		"request_id", r.Context().Value(ctxKeyRequestID),
	)

	writeJSON(w, http.StatusOK, TestResponse{
		Status:       "success",
		Message:      "test notification received",
		ReceivedData: received,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	})
}
