// Package ack turns fire-and-forget send_message emissions into
// exactly-once resolved outcomes: acknowledged, errored or timed out.
package ack

import (
	"sync"
	"time"

	"lecturechat/pkg/types"
)

// State of a pending send. Every state but StatePending is terminal.
type State int

const (
	StatePending State = iota
	Acked
	Errored
	TimedOut
	Dropped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case Acked:
		return "acked"
	case Errored:
		return "errored"
	case TimedOut:
		return "timed_out"
	case Dropped:
		return "dropped"
	}
	return "unknown"
}

// Outcome is the terminal result of a pending send
type Outcome struct {
	State     State
	Err       error
	MessageID int64 // server id when the ack carried one
}

// Pending is the correlation record for one emitted message
type Pending struct {
	ID     string
	RoomID string
	Text   string
	Meta   types.Metadata
	SentAt time.Time

	mu      sync.Mutex
	state   State
	outcome Outcome
	timer   *time.Timer
	done    chan struct{}
}

func newPending(id, roomID, text string, meta types.Metadata) *Pending {
	return &Pending{
		ID:     id,
		RoomID: roomID,
		Text:   text,
		Meta:   meta,
		SentAt: time.Now(),
		state:  StatePending,
		done:   make(chan struct{}),
	}
}

// resolve moves the send to a terminal state. Only the first call has an
// effect; it reports whether this call won. report runs before Done is
// closed so waiters observe its side effects.
func (p *Pending) resolve(outcome Outcome, report func()) bool {
	p.mu.Lock()
	if p.state != StatePending {
		p.mu.Unlock()
		return false
	}
	p.state = outcome.State
	p.outcome = outcome
	if p.timer != nil {
		p.timer.Stop()
	}
	p.mu.Unlock()

	if report != nil {
		report()
	}
	close(p.done)
	return true
}

// State returns the current state
func (p *Pending) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed when the send reaches a terminal state
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Outcome returns the terminal outcome; valid after Done is closed
func (p *Pending) Outcome() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outcome
}
