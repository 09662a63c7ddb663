package chat

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/IlyasAtabaev731/market/internal/metrics"
	"github.com/google/uuid"
)

// Router assigns message ids and fans messages out to the connections of a room.
// Delivery is best effort: a recipient that cannot take a message loses it.
type Router struct {
	registry *Registry
	log      *slog.Logger
}

func NewRouter(registry *Registry, log *slog.Logger) *Router {
	return &Router{
		registry: registry,
		log:      log,
	}
}

func (r *Router) Connect(c Conn) {
	r.registry.Connect(c)
	metrics.SetChatConnections(r.registry.Count())

	r.log.Debug("chat client connected", slog.String("conn_id", c.ID()), slog.String("username", c.Username()))
}

func (r *Router) Disconnect(c Conn) {
	rooms := r.registry.Disconnect(c)
	metrics.SetChatConnections(r.registry.Count())

	r.log.Debug("chat client disconnected",
		slog.String("conn_id", c.ID()),
		slog.String("username", c.Username()),
		slog.Int("rooms_left", len(rooms)),
	)
}

// Handle dispatches one inbound event from c. The sender is c's authenticated user.
func (r *Router) Handle(c Conn, ev Event) error {
	sender := c.Username()

	switch ev.Type {
	case EventSendMessage:
		r.Broadcast(sender, ev.Payload)
	case EventJoinPrivate:
		if ev.Receiver == "" {
			return fmt.Errorf("%s: receiver is required", ev.Type)
		}
		r.registry.Join(RoomKey(sender, ev.Receiver), c)
	case EventLeavePrivate:
		if ev.Receiver == "" {
			return fmt.Errorf("%s: receiver is required", ev.Type)
		}
		r.registry.Leave(RoomKey(sender, ev.Receiver), c)
	case EventPrivateMessage:
		if ev.Receiver == "" {
			return fmt.Errorf("%s: receiver is required", ev.Type)
		}
		r.RoutePrivate(sender, ev.Receiver, ev.Payload)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}

	return nil
}

// Broadcast delivers to every connected client, the sender's own connections included.
func (r *Router) Broadcast(sender, payload string) (Message, int) {
	msg := r.newMessage(TypeMessage, sender, "", GlobalRoom, payload)
	metrics.RecordChatMessage("broadcast")

	return msg, r.deliver(msg, r.registry.Members(GlobalRoom))
}

// RoutePrivate delivers only to connections currently joined to the pair's room.
// Nobody joined means the message is dropped.
func (r *Router) RoutePrivate(sender, receiver, payload string) (Message, int) {
	roomID := RoomKey(sender, receiver)
	msg := r.newMessage(TypePrivateMessage, sender, receiver, roomID, payload)
	metrics.RecordChatMessage("private")

	return msg, r.deliver(msg, r.registry.Members(roomID))
}

func (r *Router) Shutdown() {
	r.registry.CloseAll()
	metrics.SetChatConnections(0)
}

func (r *Router) newMessage(kind, sender, receiver, roomID, payload string) Message {
	return Message{
		Type:      kind,
		MessageID: uuid.NewString(),
		Sender:    sender,
		Receiver:  receiver,
		Room:      roomID,
		Payload:   payload,
		SentAt:    time.Now().UTC(),
	}
}

func (r *Router) deliver(msg Message, targets []Conn) int {
	delivered := 0
	for _, c := range targets {
		if c.Send(msg) {
			delivered++
			continue
		}

		metrics.RecordDroppedDelivery()
		r.log.Warn("chat delivery dropped",
			slog.String("message_id", msg.MessageID),
			slog.String("room", msg.Room),
			slog.String("conn_id", c.ID()),
		)
	}

	return delivered
}
