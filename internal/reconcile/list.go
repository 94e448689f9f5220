// Package reconcile keeps a screen's message list consistent while
// optimistic local entries, server echoes and reconnect replays interleave.
package reconcile

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lecturechat/pkg/types"
)

// Orientation decides where new messages are inserted
type Orientation int

const (
	// Append keeps oldest first and inserts at the tail
	Append Orientation = iota
	// Prepend keeps newest first and inserts at the head
	Prepend
)

// Outcome of applying an inbound message
type Outcome int

const (
	Inserted Outcome = iota
	Replaced
	Duplicate
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Replaced:
		return "replaced"
	case Duplicate:
		return "duplicate"
	}
	return "unknown"
}

var lastPlaceholder atomic.Int64

// nextPlaceholder returns a nanosecond timestamp id that is strictly
// greater than any previously returned in this process.
func nextPlaceholder() int64 {
	for {
		prev := lastPlaceholder.Load()
		next := time.Now().UnixNano()
		if next <= prev {
			next = prev + 1
		}
		if lastPlaceholder.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// List is an ordered message list owned by one screen
type List struct {
	mu          sync.Mutex
	selfID      int64
	orientation Orientation
	messages    []types.ChatMessage
}

// NewList creates a list for the user selfID. A zero selfID disables
// optimistic matching.
func NewList(selfID int64, orientation Orientation) *List {
	return &List{selfID: selfID, orientation: orientation}
}

// Apply folds a server message into the list
func (l *List) Apply(msg types.ChatMessage) Outcome {
	msg.IsOptimistic = false
	msg.Failed = false

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.indexOfLocked(msg.MessageID) >= 0 {
		return Duplicate
	}

	if l.selfID != 0 && msg.UserID == l.selfID {
		if i := l.matchOptimisticLocked(msg); i >= 0 {
			l.messages[i] = msg
			return Replaced
		}
	}

	l.insertLocked(msg)
	return Inserted
}

// AddOptimistic inserts a local placeholder for a message being sent and
// returns it. Its MessageID is the placeholder id.
func (l *List) AddOptimistic(sender types.User, text string, meta types.Metadata) types.ChatMessage {
	msg := types.ChatMessage{
		MessageID:         nextPlaceholder(),
		UserID:            sender.ID,
		Username:          sender.Username,
		FirstName:         sender.FirstName,
		LastName:          sender.LastName,
		ProfilePictureURL: sender.ProfilePictureURL,
		Message:           strings.TrimSpace(text),
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Type:              types.MessageTypeText,
		IsOptimistic:      true,
	}
	if v, ok := meta["message_type"].(string); ok && v != "" {
		msg.Type = v
	}
	if v, ok := meta["file_url"].(string); ok {
		msg.FileURL = v
	}

	l.mu.Lock()
	l.insertLocked(msg)
	l.mu.Unlock()
	return msg
}

// MarkFailed flags the optimistic entry with the given placeholder id as
// failed. It reports whether such an entry exists.
func (l *List) MarkFailed(placeholder int64) bool {
	return l.setFailed(placeholder, true)
}

// Retry clears the failed flag and returns the entry so the caller can
// send it again.
func (l *List) Retry(placeholder int64) (types.ChatMessage, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfLocked(placeholder)
	if i < 0 || !l.messages[i].IsOptimistic || !l.messages[i].Failed {
		return types.ChatMessage{}, false
	}
	l.messages[i].Failed = false
	return l.messages[i], true
}

// Remove deletes the entry with the given id
func (l *List) Remove(messageID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfLocked(messageID)
	if i < 0 {
		return false
	}
	l.messages = append(l.messages[:i:i], l.messages[i+1:]...)
	return true
}

// Seed loads fetched history given oldest first, skipping ids already
// present. It returns the number of entries added.
func (l *List) Seed(history []types.ChatMessage) int {
	added := 0
	for _, msg := range history {
		if msg.MessageID == 0 {
			continue
		}
		msg.IsOptimistic = false
		l.mu.Lock()
		if l.indexOfLocked(msg.MessageID) < 0 {
			l.insertLocked(msg)
			added++
		}
		l.mu.Unlock()
	}
	return added
}

// Messages returns a copy of the list in display order
func (l *List) Messages() []types.ChatMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}

func (l *List) setFailed(placeholder int64, failed bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOfLocked(placeholder)
	if i < 0 || !l.messages[i].IsOptimistic {
		return false
	}
	l.messages[i].Failed = failed
	return true
}

func (l *List) indexOfLocked(id int64) int {
	if id == 0 {
		return -1
	}
	for i := range l.messages {
		if l.messages[i].MessageID == id {
			return i
		}
	}
	return -1
}

// matchOptimisticLocked finds the oldest optimistic entry with the same
// text, or the same file url.
func (l *List) matchOptimisticLocked(msg types.ChatMessage) int {
	matches := func(m types.ChatMessage) bool {
		if !m.IsOptimistic {
			return false
		}
		if m.Message == msg.Message {
			return true
		}
		return msg.FileURL != "" && m.FileURL == msg.FileURL
	}

	if l.orientation == Prepend {
		for i := len(l.messages) - 1; i >= 0; i-- {
			if matches(l.messages[i]) {
				return i
			}
		}
		return -1
	}
	for i := range l.messages {
		if matches(l.messages[i]) {
			return i
		}
	}
	return -1
}

func (l *List) insertLocked(msg types.ChatMessage) {
	if l.orientation == Prepend {
		l.messages = append([]types.ChatMessage{msg}, l.messages...)
		return
	}
	l.messages = append(l.messages, msg)
}
