package domain

// EventType defines the type of real-time event.
type EventType string

const (
	EventAlert        EventType = "ALERT"
	EventStateChanged EventType = "STATE_CHANGED"
	EventPong         EventType = "PONG"
)

// AlertLevel classifies a transient user notification.
type AlertLevel string

const (
	AlertSuccess AlertLevel = "success"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert is a transient inline message shown to the user.
type Alert struct {
	Level    AlertLevel `json:"level"`
	Message  string     `json:"message"`
	TicketID int64      `json:"ticketId,omitempty"`
}

// Event is the payload sent over WebSocket.
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// NewAlertEvent wraps an alert for delivery.
func NewAlertEvent(alert Alert) Event {
	return Event{Type: EventAlert, Payload: alert}
}
