// Package wire defines the JSON frames exchanged with the messaging
// backend and the adapters that normalize inbound payloads.
package wire

import "encoding/json"

// Inbound event names. Connect, disconnect and connect errors come from the
// transport session, not from frames.
const (
	EventError             = "error"
	EventNewMessage        = "new_message"
	EventUserTyping        = "user_typing"
	EventUserJoined        = "user_joined"
	EventUserLeft          = "user_left"
	EventRoomJoined        = "room_joined"
	EventRoomLeft          = "room_left"
	EventEntityDeleted     = "entity_deleted"
	EventMessageSent       = "message_sent"
	EventInvitationsJoined = "invitations_joined"
	EventInvitationsLeft   = "invitations_left"
)

// Outbound event names
const (
	EventJoinRoom         = "join_room"
	EventLeaveRoom        = "leave_room"
	EventSendMessage      = "send_message"
	EventTyping           = "typing"
	EventMarkRead         = "mark_read"
	EventJoinInvitations  = "join_invitations"
	EventLeaveInvitations = "leave_invitations"
)

// CorrelationField is echoed back in message_sent when the backend supports it
const CorrelationField = "client_msg_id"

// Frame is one envelope on the socket: {"event": "...", "data": {...}}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals data into a frame
func NewFrame(event string, data interface{}) (Frame, error) {
	if data == nil {
		return Frame{Event: event, Data: json.RawMessage(`{}`)}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: event, Data: raw}, nil
}

// RoomPayload is sent with join_room and leave_room
type RoomPayload struct {
	RoomID string `json:"room_id"`
}

// TypingPayload is sent with typing
type TypingPayload struct {
	RoomID string `json:"room_id"`
	Typing bool   `json:"typing"`
}

// MarkReadPayload is sent with mark_read
type MarkReadPayload struct {
	MessageID int64 `json:"message_id"`
}

// Ack is the message_sent payload
type Ack struct {
	Status      string  `json:"status,omitempty"`
	Message     string  `json:"message,omitempty"`
	ClientMsgID string  `json:"client_msg_id,omitempty"`
	MessageID   FlexInt `json:"message_id,omitempty"`
}

// IsError reports whether the backend rejected the send
func (a Ack) IsError() bool {
	return a.Status == "error"
}

// ErrorPayload is the error event payload
type ErrorPayload struct {
	Message     string `json:"message"`
	ClientMsgID string `json:"client_msg_id,omitempty"`
}
