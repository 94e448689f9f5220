package wire

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseChatMessage_FieldPrecedence(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantID    int64
		wantUser  int64
		wantBody  string
		wantTime  string
		wantType  string
		wantFirst string
	}{
		{
			name:    "live broadcast shape",
			payload: `{"message_id": 42, "user_id": 7, "message": "hello", "timestamp": "2024-01-01T10:00:00Z", "type": "message", "first_name": "Ada"}`,
			wantID:  42, wantUser: 7, wantBody: "hello", wantTime: "2024-01-01T10:00:00Z", wantType: "message", wantFirst: "Ada",
		},
		{
			name:    "REST creation shape",
			payload: `{"id": 43, "sender": {"id": 8, "first_name": "Grace"}, "content": "hi there", "created_at": "2024-01-01T11:00:00Z"}`,
			wantID:  43, wantUser: 8, wantBody: "hi there", wantTime: "2024-01-01T11:00:00Z", wantType: "message", wantFirst: "Grace",
		},
		{
			name:    "message_id wins over id",
			payload: `{"message_id": 50, "id": 51, "user_id": 1, "message": "x"}`,
			wantID:  50, wantUser: 1, wantBody: "x", wantType: "message",
		},
		{
			name:    "message wins over content, empty message falls back",
			payload: `{"id": 52, "user_id": 1, "message": "", "content": "from content"}`,
			wantID:  52, wantUser: 1, wantBody: "from content", wantType: "message",
		},
		{
			name:    "string ids and message_type",
			payload: `{"message_id": "60", "user_id": "9", "message": "", "message_type": "image", "file_url": "/media/a.png"}`,
			wantID:  60, wantUser: 9, wantBody: "", wantType: "image",
		},
		{
			name:    "top-level names win over sender",
			payload: `{"id": 61, "first_name": "Top", "sender": {"id": 3, "first_name": "Nested"}}`,
			wantID:  61, wantUser: 3, wantType: "message", wantFirst: "Top",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := ParseChatMessage([]byte(tt.payload))
			if err != nil {
				t.Fatalf("ParseChatMessage() unexpected error: %v", err)
			}
			if msg.MessageID != tt.wantID {
				t.Errorf("MessageID = %d, want %d", msg.MessageID, tt.wantID)
			}
			if msg.UserID != tt.wantUser {
				t.Errorf("UserID = %d, want %d", msg.UserID, tt.wantUser)
			}
			if msg.Message != tt.wantBody {
				t.Errorf("Message = %q, want %q", msg.Message, tt.wantBody)
			}
			if msg.Timestamp != tt.wantTime {
				t.Errorf("Timestamp = %q, want %q", msg.Timestamp, tt.wantTime)
			}
			if msg.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", msg.Type, tt.wantType)
			}
			if msg.FirstName != tt.wantFirst {
				t.Errorf("FirstName = %q, want %q", msg.FirstName, tt.wantFirst)
			}
			if msg.IsOptimistic {
				t.Error("Parsed message must never be optimistic")
			}
		})
	}
}

func TestParseChatMessage_Failures(t *testing.T) {
	if _, err := ParseChatMessage([]byte(`{"user_id": 1, "message": "no id"}`)); !errors.Is(err, ErrMissingMessageID) {
		t.Errorf("Expected ErrMissingMessageID, got %v", err)
	}
	if _, err := ParseChatMessage([]byte(`{"id": "abc"}`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload for non-numeric id, got %v", err)
	}
	if _, err := ParseChatMessage([]byte(`not json`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("Expected ErrMalformedPayload, got %v", err)
	}
}

func TestParseHistory_SkipsEntriesWithoutID(t *testing.T) {
	raw := `[{"id": 1, "content": "a", "sender": {"id": 2}}, {"content": "orphan"}, {"id": 3, "content": "b"}]`
	messages, err := ParseHistory([]byte(raw))
	if err != nil {
		t.Fatalf("ParseHistory failed: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	if messages[0].MessageID != 1 || messages[1].MessageID != 3 {
		t.Errorf("Unexpected ids %d, %d", messages[0].MessageID, messages[1].MessageID)
	}
}

func TestParseTypingAndUserEvents(t *testing.T) {
	typing, err := ParseTyping([]byte(`{"user_id": "5", "username": "bob", "typing": true}`))
	if err != nil {
		t.Fatalf("ParseTyping failed: %v", err)
	}
	if typing.UserID != 5 || !typing.Typing {
		t.Errorf("Unexpected typing event %+v", typing)
	}

	joined, err := ParseUserEvent([]byte(`{"user_id": 6, "username": "eve", "message": "eve joined"}`))
	if err != nil {
		t.Fatalf("ParseUserEvent failed: %v", err)
	}
	if joined.UserID != 6 || joined.Username != "eve" {
		t.Errorf("Unexpected user event %+v", joined)
	}

	deleted, err := ParseEntityDeleted([]byte(`{"entity_type": "class", "entity_id": 11, "message": "gone"}`))
	if err != nil {
		t.Fatalf("ParseEntityDeleted failed: %v", err)
	}
	if deleted.EntityType != "class" || deleted.EntityID != 11 {
		t.Errorf("Unexpected entity event %+v", deleted)
	}
}

func TestNewFrame_RoundTrip(t *testing.T) {
	frame, err := NewFrame(EventJoinRoom, RoomPayload{RoomID: "12"})
	if err != nil {
		t.Fatalf("NewFrame failed: %v", err)
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(raw) != `{"event":"join_room","data":{"room_id":"12"}}` {
		t.Errorf("Unexpected frame encoding %s", raw)
	}

	empty, _ := NewFrame(EventJoinInvitations, nil)
	if string(empty.Data) != `{}` {
		t.Errorf("Expected empty object payload, got %s", empty.Data)
	}
}

func TestAck_Decode(t *testing.T) {
	var ack Ack
	if err := Decode([]byte(`{"status": "error", "message": "room closed", "message_id": "9"}`), &ack); err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if !ack.IsError() || ack.Message != "room closed" || ack.MessageID != 9 {
		t.Errorf("Unexpected ack %+v", ack)
	}
}
