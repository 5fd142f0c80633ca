package ws

type EventType string

const (
	// сервер -> клиент
	EventNotifications EventType = "notifications"
	EventChime         EventType = "chime"
	EventError         EventType = "error"

	// клиент -> сервер
	EventMarkRead    EventType = "mark_read"
	EventMarkAllRead EventType = "mark_all_read"
	EventRefresh     EventType = "refresh"
)

// IncomingMessage is what the client sends to the server.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	TaskID string    `json:"task_id,omitempty"`
}

// OutgoingMessage is what the server sends to the client.
// Payload uses typed structs to avoid heap-heavy map[string]any.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ChimePayload is sent when the unread count grows after the initial load.
type ChimePayload struct {
	Previous int `json:"previous"`
	Unread   int `json:"unread"`
}

// ErrorPayload describes a rejected client event.
type ErrorPayload struct {
	Event   EventType `json:"event,omitempty"`
	Message string    `json:"message"`
}
