package room

import (
	"errors"
	"sync"
	"testing"

	"lecturechat/internal/wire"
	"lecturechat/pkg/types"
)

type emitted struct {
	event string
	data  interface{}
}

type recordingEmitter struct {
	mu        sync.Mutex
	connected bool
	fail      error
	events    []emitted
}

func (r *recordingEmitter) Emit(event string, data interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.events = append(r.events, emitted{event: event, data: data})
	return nil
}

func (r *recordingEmitter) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

func TestDirectRoomID(t *testing.T) {
	tests := []struct {
		a, b int64
		want string
	}{
		{3, 7, "dm_3_7"},
		{7, 3, "dm_3_7"},
		{5, 5, "dm_5_5"},
		{100, 2, "dm_2_100"},
	}
	for _, tt := range tests {
		if got := DirectRoomID(tt.a, tt.b); got != tt.want {
			t.Errorf("DirectRoomID(%d, %d) = %s, want %s", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTracker_JoinRecordsAndEmits(t *testing.T) {
	em := &recordingEmitter{connected: true}
	tr := NewTracker(em)

	if err := tr.Join("lecture-12"); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if tr.Active() != "lecture-12" {
		t.Errorf("Expected active room lecture-12, got %q", tr.Active())
	}
	if len(em.events) != 1 || em.events[0].event != wire.EventJoinRoom {
		t.Fatalf("Expected one join_room emission, got %+v", em.events)
	}
	payload, ok := em.events[0].data.(wire.RoomPayload)
	if !ok || payload.RoomID != "lecture-12" {
		t.Errorf("Unexpected payload %+v", em.events[0].data)
	}
}

func TestTracker_JoinSecondRoomReplacesFirst(t *testing.T) {
	em := &recordingEmitter{connected: true}
	tr := NewTracker(em)

	tr.Join("A")
	tr.Join("B")

	if tr.Active() != "B" {
		t.Errorf("Expected active room B, got %q", tr.Active())
	}
	for _, e := range em.events {
		if e.event == wire.EventLeaveRoom {
			t.Error("switching rooms must not emit leave_room")
		}
	}
}

func TestTracker_JoinInvalidRoom(t *testing.T) {
	tr := NewTracker(&recordingEmitter{})
	err := tr.Join("bad room!")
	if !errors.Is(err, types.ErrInvalidRoomID) {
		t.Errorf("Expected ErrInvalidRoomID, got %v", err)
	}
	if tr.Active() != "" {
		t.Errorf("Expected no active room, got %q", tr.Active())
	}
}

func TestTracker_JoinEmitErrorKeepsRoom(t *testing.T) {
	em := &recordingEmitter{fail: errors.New("not connected")}
	tr := NewTracker(em)

	if err := tr.Join("A"); err == nil {
		t.Error("Expected emit error to surface")
	}
	if tr.Active() != "A" {
		t.Errorf("Expected room recorded despite emit failure, got %q", tr.Active())
	}
}

func TestTracker_JoinDirect(t *testing.T) {
	em := &recordingEmitter{connected: true}
	tr := NewTracker(em)

	roomID, err := tr.JoinDirect(7, 3)
	if err != nil {
		t.Fatalf("JoinDirect failed: %v", err)
	}
	if roomID != "dm_3_7" || tr.Active() != "dm_3_7" {
		t.Errorf("Expected dm_3_7, got %s (active %s)", roomID, tr.Active())
	}

	if _, err := tr.JoinDirect(0, 3); !errors.Is(err, types.ErrInvalidUserID) {
		t.Errorf("Expected ErrInvalidUserID, got %v", err)
	}
}

func TestTracker_Leave(t *testing.T) {
	em := &recordingEmitter{connected: true}
	tr := NewTracker(em)

	if err := tr.Leave(); err != nil {
		t.Fatalf("Leave with no room failed: %v", err)
	}
	if len(em.events) != 0 {
		t.Fatalf("Leave with no room should emit nothing, got %+v", em.events)
	}

	tr.Join("A")
	if err := tr.Leave(); err != nil {
		t.Fatalf("Leave failed: %v", err)
	}
	if tr.Active() != "" {
		t.Errorf("Expected no active room after leave, got %q", tr.Active())
	}
	last := em.events[len(em.events)-1]
	if last.event != wire.EventLeaveRoom || last.data.(wire.RoomPayload).RoomID != "A" {
		t.Errorf("Expected leave_room for A, got %+v", last)
	}
}

func TestTracker_Clear(t *testing.T) {
	em := &recordingEmitter{connected: true}
	tr := NewTracker(em)
	tr.Join("A")
	before := len(em.events)

	tr.Clear()

	if tr.Active() != "" {
		t.Errorf("Expected cleared room, got %q", tr.Active())
	}
	if len(em.events) != before {
		t.Error("Clear must not emit")
	}
}

func TestTracker_InvitationsOnlyWhenConnected(t *testing.T) {
	em := &recordingEmitter{}
	tr := NewTracker(em)

	if tr.JoinInvitations() {
		t.Error("JoinInvitations should not emit while disconnected")
	}
	if len(em.events) != 0 {
		t.Fatalf("Expected no emissions, got %+v", em.events)
	}

	em.connected = true
	if !tr.JoinInvitations() {
		t.Error("JoinInvitations should emit while connected")
	}
	if !tr.LeaveInvitations() {
		t.Error("LeaveInvitations should emit while connected")
	}
	if em.events[0].event != wire.EventJoinInvitations || em.events[1].event != wire.EventLeaveInvitations {
		t.Errorf("Unexpected emissions %+v", em.events)
	}
}
