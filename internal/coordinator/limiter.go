package coordinator

import (
	"sync"
	"time"
)

// typingLimiter allows one typing=true emission per room per window.
// Stopping resets the room so the next start goes out immediately.
type typingLimiter struct {
	mu     sync.Mutex
	window time.Duration
	rooms  map[string]time.Time
	now    func() time.Time
}

func newTypingLimiter(window time.Duration) *typingLimiter {
	return &typingLimiter{
		window: window,
		rooms:  make(map[string]time.Time),
		now:    time.Now,
	}
}

// Allow reports whether a typing event for roomID may be emitted
func (l *typingLimiter) Allow(roomID string, typing bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !typing {
		delete(l.rooms, roomID)
		return true
	}
	if l.window <= 0 {
		return true
	}

	now := l.now()
	if last, ok := l.rooms[roomID]; ok && now.Sub(last) < l.window {
		return false
	}
	l.rooms[roomID] = now
	return true
}

// Cleanup drops rooms idle for more than five windows
func (l *typingLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for roomID, last := range l.rooms {
		if now.Sub(last) > 5*l.window {
			delete(l.rooms, roomID)
		}
	}
}

func (l *typingLimiter) Reset() {
	l.mu.Lock()
	l.rooms = make(map[string]time.Time)
	l.mu.Unlock()
}
