package ack

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"lecturechat/pkg/types"
)

// DefaultTimeout is how long a send waits for message_sent
const DefaultTimeout = 10 * time.Second

// FailureFunc receives the human-readable reason of an errored or timed
// out send. It is called at most once per send.
type FailureFunc func(p *Pending, reason string)

// Tracker holds outstanding sends in emission order. Acks that echo a
// correlation id resolve that send; acks without one resolve the oldest.
type Tracker struct {
	mu        sync.Mutex
	timeout   time.Duration
	order     []*Pending
	byID      map[string]*Pending
	onFailure FailureFunc
}

// NewTracker creates a tracker; a zero timeout means DefaultTimeout
func NewTracker(timeout time.Duration, onFailure FailureFunc) *Tracker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Tracker{
		timeout:   timeout,
		byID:      make(map[string]*Pending),
		onFailure: onFailure,
	}
}

// Begin installs a pending correlation and arms its timeout
func (t *Tracker) Begin(roomID, text string, meta types.Metadata) *Pending {
	p := newPending(uuid.NewString(), roomID, text, meta)

	t.mu.Lock()
	t.order = append(t.order, p)
	t.byID[p.ID] = p
	p.mu.Lock()
	p.timer = time.AfterFunc(t.timeout, func() { t.expire(p) })
	p.mu.Unlock()
	t.mu.Unlock()

	return p
}

// Ack resolves the send named by clientMsgID, or the oldest outstanding
// send when the backend did not echo an id. An echoed id that is no
// longer outstanding is ignored, so a late ack after a timeout is a no-op.
func (t *Tracker) Ack(clientMsgID string, messageID int64, failure string) bool {
	p := t.take(clientMsgID)
	if p == nil {
		return false
	}
	if failure != "" {
		return t.fail(p, Errored, failure)
	}
	return p.resolve(Outcome{State: Acked, MessageID: messageID}, nil)
}

// Fail resolves a send as Errored from a transport error event
func (t *Tracker) Fail(clientMsgID, reason string) bool {
	p := t.take(clientMsgID)
	if p == nil {
		return false
	}
	if reason == "" {
		reason = ErrSendFailed.Error()
	}
	return t.fail(p, Errored, reason)
}

// Drop discards every outstanding send without reporting failures.
// Their Done channels close with state Dropped.
func (t *Tracker) Drop() int {
	t.mu.Lock()
	dropped := t.order
	t.order = nil
	t.byID = make(map[string]*Pending)
	t.mu.Unlock()

	for _, p := range dropped {
		p.resolve(Outcome{State: Dropped, Err: ErrDropped}, nil)
	}
	if len(dropped) > 0 {
		log.Printf("Dropped %d pending sends on disconnect", len(dropped))
	}
	return len(dropped)
}

// Len returns the number of outstanding sends
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

func (t *Tracker) expire(p *Pending) {
	t.mu.Lock()
	if _, ok := t.byID[p.ID]; !ok {
		t.mu.Unlock()
		return
	}
	t.removeLocked(p)
	t.mu.Unlock()

	t.fail(p, TimedOut, ErrAckTimeout.Error())
}

func (t *Tracker) fail(p *Pending, state State, reason string) bool {
	err := ErrSendFailed
	if state == TimedOut {
		err = ErrAckTimeout
	}
	if reason != err.Error() {
		err = fmt.Errorf("%w: %s", err, reason)
	}
	return p.resolve(Outcome{State: state, Err: err}, func() {
		log.Printf("Send %s in room %s %s: %s", p.ID, p.RoomID, state, reason)
		if t.onFailure != nil {
			t.onFailure(p, reason)
		}
	})
}

func (t *Tracker) take(clientMsgID string) *Pending {
	t.mu.Lock()
	defer t.mu.Unlock()

	var p *Pending
	if clientMsgID != "" {
		p = t.byID[clientMsgID]
	} else if len(t.order) > 0 {
		p = t.order[0]
	}
	if p != nil {
		t.removeLocked(p)
	}
	return p
}

func (t *Tracker) removeLocked(p *Pending) {
	delete(t.byID, p.ID)
	for i, q := range t.order {
		if q == p {
			t.order = append(t.order[:i:i], t.order[i+1:]...)
			return
		}
	}
}
