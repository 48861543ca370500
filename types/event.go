package types

import "time"

// EventKind tags the notification variant carried by a NotificationEvent.
type EventKind string

const (
	EventKindNewOrder    EventKind = "new_order"
	EventKindOrderUpdate EventKind = "order_update"
	EventKindGeneric     EventKind = "generic"
)

// Severity levels for generic notifications.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// NotificationEvent is a server-pushed notification. Id is server-assigned and
// globally unique per logical event; it is the deduplication key.
type NotificationEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Read      bool      `json:"read"` // mutated by the UI layer only, never by the core

	// NewOrder fields
	OrderID      string  `json:"orderId,omitempty"`
	CustomerName string  `json:"customerName,omitempty"`
	TotalAmount  float64 `json:"totalAmount,omitempty"`
	Status       string  `json:"status,omitempty"`

	// Generic fields
	Severity string `json:"severity,omitempty"`
}

// ShortOrderID returns the last 8 characters of the order id for display.
func (e *NotificationEvent) ShortOrderID() string {
	if len(e.OrderID) <= 8 {
		return e.OrderID
	}
	return e.OrderID[len(e.OrderID)-8:]
}

// EnrichedEvent is a NotificationEvent that already passed deduplication,
// paired with the toast rendering the dispatcher produced for it.
type EnrichedEvent struct {
	NotificationEvent
	ToastText string `json:"toastText"`
	ToastIcon string `json:"toastIcon"`
}
