package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"lecturechat/pkg/types"
)

var (
	ErrMissingMessageID = errors.New("message payload has neither message_id nor id")
	ErrMalformedPayload = errors.New("malformed event payload")
)

// FlexInt accepts a JSON number or a numeric string
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("non-numeric id %q", s)
		}
		*f = FlexInt(n)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	i, err := n.Int64()
	if err != nil {
		fl, ferr := n.Float64()
		if ferr != nil {
			return err
		}
		i = int64(fl)
	}
	*f = FlexInt(i)
	return nil
}

type senderPayload struct {
	ID                *FlexInt `json:"id"`
	Username          *string  `json:"username"`
	FirstName         *string  `json:"first_name"`
	LastName          *string  `json:"last_name"`
	ProfilePictureURL *string  `json:"profile_picture_url"`
}

// messagePayload captures every field name the backend uses for a
// message: the live broadcast and the REST creation endpoint disagree.
type messagePayload struct {
	MessageID         *FlexInt       `json:"message_id"`
	ID                *FlexInt       `json:"id"`
	UserID            *FlexInt       `json:"user_id"`
	Username          *string        `json:"username"`
	FirstName         *string        `json:"first_name"`
	LastName          *string        `json:"last_name"`
	ProfilePictureURL *string        `json:"profile_picture_url"`
	Message           *string        `json:"message"`
	Content           *string        `json:"content"`
	Timestamp         *string        `json:"timestamp"`
	CreatedAt         *string        `json:"created_at"`
	Type              *string        `json:"type"`
	MessageType       *string        `json:"message_type"`
	FileURL           *string        `json:"file_url"`
	RecipientID       *FlexInt       `json:"recipient_id"`
	Sender            *senderPayload `json:"sender"`
}

// ParseChatMessage normalizes a new_message payload (or a REST history
// entry) into the canonical ChatMessage. Precedence, first non-empty wins:
//
//	id        message_id, id
//	user      user_id, sender.id
//	names     <field>, sender.<field>
//	body      message, content, ""
//	timestamp timestamp, created_at
//	type      type, message_type, "message"
//
// A payload with no recognizable id yields ErrMissingMessageID.
func ParseChatMessage(raw []byte) (types.ChatMessage, error) {
	var p messagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.ChatMessage{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	sender := p.Sender
	if sender == nil {
		sender = &senderPayload{}
	}

	msg := types.ChatMessage{
		MessageID:         firstInt(p.MessageID, p.ID),
		UserID:            firstInt(p.UserID, sender.ID),
		Username:          firstString(p.Username, sender.Username),
		FirstName:         firstString(p.FirstName, sender.FirstName),
		LastName:          firstString(p.LastName, sender.LastName),
		ProfilePictureURL: firstString(p.ProfilePictureURL, sender.ProfilePictureURL),
		Message:           firstString(p.Message, p.Content),
		Timestamp:         firstString(p.Timestamp, p.CreatedAt),
		Type:              firstString(p.Type, p.MessageType),
		FileURL:           firstString(p.FileURL),
		RecipientID:       firstInt(p.RecipientID),
	}
	if msg.MessageID == 0 {
		return types.ChatMessage{}, ErrMissingMessageID
	}
	if msg.Type == "" {
		msg.Type = types.MessageTypeText
	}
	return msg, nil
}

// ParseHistory normalizes a REST history listing. Entries without an id
// are skipped.
func ParseHistory(raw []byte) ([]types.ChatMessage, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	messages := make([]types.ChatMessage, 0, len(entries))
	for _, entry := range entries {
		msg, err := ParseChatMessage(entry)
		if err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Decode unmarshals a typed payload (typing, user, entity, ack, error)
func Decode(raw []byte, v interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

func firstInt(values ...*FlexInt) int64 {
	for _, v := range values {
		if v != nil && *v != 0 {
			return int64(*v)
		}
	}
	return 0
}

func firstString(values ...*string) string {
	for _, v := range values {
		if v != nil && *v != "" {
			return *v
		}
	}
	return ""
}

// ParseTyping normalizes a user_typing payload
func ParseTyping(raw []byte) (types.TypingEvent, error) {
	var p struct {
		UserID    FlexInt `json:"user_id"`
		Username  string  `json:"username"`
		FirstName string  `json:"first_name"`
		Typing    bool    `json:"typing"`
	}
	if err := Decode(raw, &p); err != nil {
		return types.TypingEvent{}, err
	}
	return types.TypingEvent{
		UserID:    int64(p.UserID),
		Username:  p.Username,
		FirstName: p.FirstName,
		Typing:    p.Typing,
	}, nil
}

// ParseUserEvent normalizes user_joined / user_left payloads
func ParseUserEvent(raw []byte) (types.UserEvent, error) {
	var p struct {
		UserID   FlexInt `json:"user_id"`
		Username string  `json:"username"`
		Message  string  `json:"message"`
	}
	if err := Decode(raw, &p); err != nil {
		return types.UserEvent{}, err
	}
	return types.UserEvent{UserID: int64(p.UserID), Username: p.Username, Message: p.Message}, nil
}

// ParseEntityDeleted normalizes an entity_deleted payload
func ParseEntityDeleted(raw []byte) (types.EntityDeletedEvent, error) {
	var p struct {
		EntityType string  `json:"entity_type"`
		EntityID   FlexInt `json:"entity_id"`
		Message    string  `json:"message"`
	}
	if err := Decode(raw, &p); err != nil {
		return types.EntityDeletedEvent{}, err
	}
	return types.EntityDeletedEvent{EntityType: p.EntityType, EntityID: int64(p.EntityID), Message: p.Message}, nil
}
