package types

import "strings"

// Message content types carried in ChatMessage.Type
const (
	MessageTypeText  = "message"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
)

// Token store keys read by the chat client
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyUserData     = "user_data"
)

// ChatMessage is a received or locally sent chat message.
// MessageID is the server-assigned identity; optimistic entries carry a
// client placeholder until the server copy replaces them.
type ChatMessage struct {
	MessageID         int64  `json:"message_id"`
	UserID            int64  `json:"user_id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
	Message           string `json:"message"`
	Timestamp         string `json:"timestamp"`
	Type              string `json:"type"`
	FileURL           string `json:"file_url,omitempty"`
	RecipientID       int64  `json:"recipient_id,omitempty"`

	// Client-only state, never serialized
	IsOptimistic bool `json:"-"`
	Failed       bool `json:"-"`
}

// HasServerID reports whether the message carries a server-assigned id.
func (m *ChatMessage) HasServerID() bool {
	return m.MessageID > 0 && !m.IsOptimistic
}

// TypingEvent is an ephemeral per-user typing signal.
type TypingEvent struct {
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	Typing    bool   `json:"typing"`
}

// UserEvent is emitted when a user joins or leaves a room.
type UserEvent struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Message  string `json:"message"`
}

// EntityDeletedEvent announces that a server-side entity (class, group,
// room, message) was removed.
type EntityDeletedEvent struct {
	EntityType string `json:"entity_type"`
	EntityID   int64  `json:"entity_id"`
	Message    string `json:"message"`
}

// User is the local user profile stored under KeyUserData.
type User struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

// Metadata carries optional non-text fields merged into an outbound
// send_message payload (file_url, message_type, recipient_id...).
type Metadata map[string]interface{}

// attachmentKeys are the metadata fields that carry a non-text payload.
// Routing fields such as recipient_id or message_type do not count.
var attachmentKeys = []string{"file_url"}

// HasPayload reports whether the metadata carries an attachment that
// makes an empty message body legal.
func (m Metadata) HasPayload() bool {
	for _, key := range attachmentKeys {
		if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}
