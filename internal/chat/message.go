package chat

import "time"

type EventType string

// Inbound event types.
const (
	EventSendMessage    EventType = "send_message"
	EventJoinPrivate    EventType = "join_private_room"
	EventLeavePrivate   EventType = "leave_private_room"
	EventPrivateMessage EventType = "private_message"
)

// Outbound frame types.
const (
	TypeMessage        = "message"
	TypePrivateMessage = "private_message"
)

// Event is what a client sends. The sender is never taken from the wire.
type Event struct {
	Type     EventType `json:"type"`
	Receiver string    `json:"receiver,omitempty"`
	Payload  string    `json:"payload,omitempty"`
}

type Message struct {
	Type      string    `json:"type"`
	MessageID string    `json:"message_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver,omitempty"`
	Room      string    `json:"room"`
	Payload   string    `json:"payload"`
	SentAt    time.Time `json:"sent_at"`
}
