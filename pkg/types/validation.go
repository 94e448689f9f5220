package types

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLength bounds the text body of an outbound message.
const MaxMessageLength = 5000

var roomIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// IsValidRoomID checks numeric REST room ids and derived dm_ ids alike.
func IsValidRoomID(roomID string) bool {
	if len(roomID) < 1 || len(roomID) > 100 {
		return false
	}
	return roomIDRegex.MatchString(roomID)
}

// IsValidMessageType checks if the message type is one of the allowed types
func IsValidMessageType(msgType string) bool {
	switch msgType {
	case MessageTypeText, MessageTypeImage, MessageTypeFile:
		return true
	default:
		return false
	}
}

// ValidateOutbound checks a message body before it is emitted.
// An empty body is legal only when metadata carries a non-text payload.
func ValidateOutbound(text string, metadata Metadata) error {
	if strings.TrimSpace(text) == "" && !metadata.HasPayload() {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLarge
	}
	if raw, ok := metadata["message_type"].(string); ok && raw != "" && !IsValidMessageType(raw) {
		return ErrInvalidMessageType
	}
	return nil
}
