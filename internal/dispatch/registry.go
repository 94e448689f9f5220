// Package dispatch fans inbound chat events out to any number of
// short-lived subscribers (one per mounted screen).
package dispatch

import "lecturechat/pkg/types"

// Category names
const (
	CategoryMessage          = "message"
	CategoryTyping           = "typing"
	CategoryUserJoin         = "userJoin"
	CategoryUserLeave        = "userLeave"
	CategoryConnectionChange = "connectionChange"
	CategoryError            = "error"
	CategoryEntityDeleted    = "entityDeleted"
)

// Registry holds one topic per event category. It knows nothing about
// rooms: every subscriber sees every event the transport delivers.
type Registry struct {
	Message          *Topic[types.ChatMessage]
	Typing           *Topic[types.TypingEvent]
	UserJoin         *Topic[types.UserEvent]
	UserLeave        *Topic[types.UserEvent]
	ConnectionChange *Topic[bool]
	Error            *Topic[string]
	EntityDeleted    *Topic[types.EntityDeletedEvent]
}

// NewRegistry creates a registry with empty topics
func NewRegistry() *Registry {
	return &Registry{
		Message:          NewTopic[types.ChatMessage](CategoryMessage),
		Typing:           NewTopic[types.TypingEvent](CategoryTyping),
		UserJoin:         NewTopic[types.UserEvent](CategoryUserJoin),
		UserLeave:        NewTopic[types.UserEvent](CategoryUserLeave),
		ConnectionChange: NewTopic[bool](CategoryConnectionChange),
		Error:            NewTopic[string](CategoryError),
		EntityDeleted:    NewTopic[types.EntityDeletedEvent](CategoryEntityDeleted),
	}
}

func (r *Registry) OnMessage(fn func(types.ChatMessage)) Subscription { return r.Message.Subscribe(fn) }
func (r *Registry) OnTyping(fn func(types.TypingEvent)) Subscription  { return r.Typing.Subscribe(fn) }
func (r *Registry) OnUserJoin(fn func(types.UserEvent)) Subscription  { return r.UserJoin.Subscribe(fn) }
func (r *Registry) OnUserLeave(fn func(types.UserEvent)) Subscription {
	return r.UserLeave.Subscribe(fn)
}
func (r *Registry) OnConnectionChange(fn func(bool)) Subscription {
	return r.ConnectionChange.Subscribe(fn)
}
func (r *Registry) OnError(fn func(string)) Subscription { return r.Error.Subscribe(fn) }
func (r *Registry) OnEntityDeleted(fn func(types.EntityDeletedEvent)) Subscription {
	return r.EntityDeleted.Subscribe(fn)
}

func (r *Registry) RemoveMessageCallback(sub Subscription) bool  { return r.Message.Unsubscribe(sub) }
func (r *Registry) RemoveTypingCallback(sub Subscription) bool   { return r.Typing.Unsubscribe(sub) }
func (r *Registry) RemoveUserJoinCallback(sub Subscription) bool { return r.UserJoin.Unsubscribe(sub) }
func (r *Registry) RemoveUserLeaveCallback(sub Subscription) bool {
	return r.UserLeave.Unsubscribe(sub)
}
func (r *Registry) RemoveConnectionCallback(sub Subscription) bool {
	return r.ConnectionChange.Unsubscribe(sub)
}
func (r *Registry) RemoveErrorCallback(sub Subscription) bool { return r.Error.Unsubscribe(sub) }
func (r *Registry) RemoveEntityDeletedCallback(sub Subscription) bool {
	return r.EntityDeleted.Unsubscribe(sub)
}

// Remove drops sub from whichever topic issued it
func (r *Registry) Remove(sub Subscription) bool {
	switch sub.topic {
	case CategoryMessage:
		return r.Message.Unsubscribe(sub)
	case CategoryTyping:
		return r.Typing.Unsubscribe(sub)
	case CategoryUserJoin:
		return r.UserJoin.Unsubscribe(sub)
	case CategoryUserLeave:
		return r.UserLeave.Unsubscribe(sub)
	case CategoryConnectionChange:
		return r.ConnectionChange.Unsubscribe(sub)
	case CategoryError:
		return r.Error.Unsubscribe(sub)
	case CategoryEntityDeleted:
		return r.EntityDeleted.Unsubscribe(sub)
	}
	return false
}

// Stats returns subscriber counts per category
func (r *Registry) Stats() map[string]int {
	return map[string]int{
		CategoryMessage:          r.Message.Len(),
		CategoryTyping:           r.Typing.Len(),
		CategoryUserJoin:         r.UserJoin.Len(),
		CategoryUserLeave:        r.UserLeave.Len(),
		CategoryConnectionChange: r.ConnectionChange.Len(),
		CategoryError:            r.Error.Len(),
		CategoryEntityDeleted:    r.EntityDeleted.Len(),
	}
}
