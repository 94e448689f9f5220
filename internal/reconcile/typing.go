package reconcile

import (
	"sync"

	"lecturechat/pkg/types"
)

// Typists is the set of users currently typing in a room. A newer event
// from a user supersedes the older one; typing=false removes the user.
type Typists struct {
	mu     sync.Mutex
	selfID int64
	users  []types.TypingEvent
}

func NewTypists(selfID int64) *Typists {
	return &Typists{selfID: selfID}
}

// Apply folds a typing event into the set and reports whether it changed
func (t *Typists) Apply(ev types.TypingEvent) bool {
	if ev.UserID == 0 || (t.selfID != 0 && ev.UserID == t.selfID) {
		return false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	kept := t.users[:0:0]
	removed := false
	for _, u := range t.users {
		if u.UserID == ev.UserID {
			removed = true
			continue
		}
		kept = append(kept, u)
	}
	if ev.Typing {
		kept = append(kept, ev)
	}
	t.users = kept
	return ev.Typing || removed
}

// Active returns the typing users, oldest event first
func (t *Typists) Active() []types.TypingEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]types.TypingEvent, len(t.users))
	copy(out, t.users)
	return out
}

func (t *Typists) Clear() {
	t.mu.Lock()
	t.users = nil
	t.mu.Unlock()
}
