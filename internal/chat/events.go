package chat

import (
	"encoding/json"
	"time"

	"github.com/orderdesk/orderdesk/internal/models"
)

// Inbound event names.
const (
	EventJoin          = "join"
	EventJoinOrderRoom = "join_order_room"
	EventLeaveOrder    = "leave_order_room"
	EventSendMessage   = "send_message"
	EventSendUserMsg   = "send_user_message"
)

// Outbound event names.
const (
	EventNewMessage        = "new_message"
	EventNewSupportMessage = "new_support_message"
)

// Frame is the wire envelope for inbound client events.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// roomRequest addresses an order discussion thread.
type roomRequest struct {
	OrderID int64 `json:"order_id"`
}

// sendRequest carries a chat message from the client. ClientMessageID is an
// opaque correlation token echoed back in the broadcast so the sender can
// reconcile optimistic UI state.
type sendRequest struct {
	OrderID         int64  `json:"order_id,omitempty"`
	Text            string `json:"text"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// MessagePayload is the broadcast representation of a persisted message.
type MessagePayload struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	Direction       string    `json:"direction"`
	Text            string    `json:"text"`
	OrderID         *int64    `json:"order_id"`
	MessageType     string    `json:"message_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ClientMessageID string    `json:"client_message_id,omitempty"`
}

// Envelope is the wire envelope for outbound server events.
type Envelope struct {
	Event string         `json:"event"`
	Data  MessagePayload `json:"data"`
}

// payloadFor builds the broadcast payload for a stored message, echoing the
// client correlation id when the triggering send supplied one.
func payloadFor(m *models.Message, clientMessageID string) MessagePayload {
	return MessagePayload{
		ID:              m.ID,
		UserID:          m.UserID,
		Direction:       m.Direction,
		Text:            m.Text,
		OrderID:         m.OrderID,
		MessageType:     m.MessageType,
		CreatedAt:       m.CreatedAt,
		ClientMessageID: clientMessageID,
	}
}
