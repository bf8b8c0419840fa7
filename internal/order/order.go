package order

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Validation errors.
//
// These can be checked with errors.Is() to distinguish a malformed payload
// from an invalid one:
//
//	if errors.Is(err, order.ErrInvalidJSON) { ... }
var (
	// ErrInvalidJSON indicates the request body was not valid JSON.
	ErrInvalidJSON = errors.New("order: invalid JSON payload")

	// ErrNoItems indicates the notification carried no order items.
	ErrNoItems = errors.New("order: notification has no items")

	// ErrItemName indicates an order item is missing its drink name.
	ErrItemName = errors.New("order: item name is required")
)

// Item is a single drink within an order notification.
type Item struct {
	Name     string         `json:"name"`
	Quantity int            `json:"quantity,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

// Notification is the payload posted by the cloud backend when orders are
// placed. Field names mirror the upstream cloud function's JSON.
type Notification struct {
	UserID     string    `json:"userId"`
	Orders     []Item    `json:"orders"`
	OrderCount int       `json:"orderCount"`
	TotalValue float64   `json:"totalValue"`
	Timestamp  time.Time `json:"timestamp,omitempty"`
}

// Decode parses a notification from an HTTP request body.
//
// Unknown fields are rejected so a misconfigured sender fails loudly rather
// than silently dropping data.
//
// Returns:
//   - *Notification: Parsed and validated notification
//   - error: ErrInvalidJSON (wrapped) on malformed input, or a validation error
func Decode(r io.Reader) (*Notification, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var n Notification
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
	}

	if err := n.Validate(); err != nil {
		return nil, err
	}

	n.applyDefaults()
	return &n, nil
}

// Validate checks the notification for structural problems.
//
// Returns:
//   - error: First validation failure, or nil if valid
func (n *Notification) Validate() error {
	if len(n.Orders) == 0 {
		return ErrNoItems
	}
	for i, item := range n.Orders {
		if item.Name == "" {
			return fmt.Errorf("%w (item %d)", ErrItemName, i)
		}
		if item.Quantity < 0 {
			return fmt.Errorf("order: item %d has negative quantity %d", i, item.Quantity)
		}
	}
	if n.TotalValue < 0 {
		return fmt.Errorf("order: total value %.2f is negative", n.TotalValue)
	}
	return nil
}

// applyDefaults fills derivable fields the sender may omit.
func (n *Notification) applyDefaults() {
	if n.UserID == "" {
		n.UserID = "unknown"
	}
	if n.OrderCount == 0 {
		n.OrderCount = len(n.Orders)
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now().UTC()
	}
	for i := range n.Orders {
		if n.Orders[i].Quantity == 0 {
			n.Orders[i].Quantity = 1
		}
	}
}
