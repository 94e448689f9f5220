// Package room tracks the single active chat room of a session and emits
// the membership events for it.
package room

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"lecturechat/internal/wire"
	"lecturechat/pkg/types"
)

var ErrNoEmitter = errors.New("room tracker has no emitter")

// Emitter sends an outbound event on the live connection
type Emitter interface {
	Emit(event string, data interface{}) error
	IsConnected() bool
}

// DirectRoomID returns the canonical room id for a conversation between
// two users, independent of argument order.
func DirectRoomID(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("dm_%d_%d", a, b)
}

// Tracker holds at most one active room. Joining a second room replaces
// the first locally without leaving it on the server.
type Tracker struct {
	mu      sync.Mutex
	active  string
	emitter Emitter
}

func NewTracker(emitter Emitter) *Tracker {
	return &Tracker{emitter: emitter}
}

// Join emits join_room and records roomID as active. The emission is
// attempted even if the connection is still coming up.
func (t *Tracker) Join(roomID string) error {
	if !types.IsValidRoomID(roomID) {
		return fmt.Errorf("join %q: %w", roomID, types.ErrInvalidRoomID)
	}
	if t.emitter == nil {
		return ErrNoEmitter
	}

	t.mu.Lock()
	previous := t.active
	t.active = roomID
	t.mu.Unlock()

	if previous != "" && previous != roomID {
		log.Printf("Switching active room from %s to %s", previous, roomID)
	}
	if err := t.emitter.Emit(wire.EventJoinRoom, wire.RoomPayload{RoomID: roomID}); err != nil {
		return fmt.Errorf("join %s: %w", roomID, err)
	}
	return nil
}

// JoinDirect joins the direct message room of the two users
func (t *Tracker) JoinDirect(a, b int64) (string, error) {
	if a <= 0 || b <= 0 {
		return "", types.ErrInvalidUserID
	}
	roomID := DirectRoomID(a, b)
	return roomID, t.Join(roomID)
}

// Leave emits leave_room for the active room and clears it. It is a
// no-op when no room is active.
func (t *Tracker) Leave() error {
	t.mu.Lock()
	roomID := t.active
	t.active = ""
	t.mu.Unlock()

	if roomID == "" || t.emitter == nil {
		return nil
	}
	if err := t.emitter.Emit(wire.EventLeaveRoom, wire.RoomPayload{RoomID: roomID}); err != nil {
		return fmt.Errorf("leave %s: %w", roomID, err)
	}
	return nil
}

// Active returns the active room id, or "" when none
func (t *Tracker) Active() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Clear forgets the active room without emitting anything. Used when the
// connection goes away.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.active = ""
	t.mu.Unlock()
}

// JoinInvitations subscribes to the invitation channel. Nothing is sent
// while disconnected.
func (t *Tracker) JoinInvitations() bool {
	return t.emitIfConnected(wire.EventJoinInvitations)
}

// LeaveInvitations unsubscribes from the invitation channel
func (t *Tracker) LeaveInvitations() bool {
	return t.emitIfConnected(wire.EventLeaveInvitations)
}

func (t *Tracker) emitIfConnected(event string) bool {
	if t.emitter == nil || !t.emitter.IsConnected() {
		return false
	}
	if err := t.emitter.Emit(event, nil); err != nil {
		log.Printf("Failed to emit %s: %v", event, err)
		return false
	}
	return true
}
