// Package coordinator owns one chat session: the socket, the active room,
// outstanding sends and the subscribers that screens register.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lecturechat/internal/ack"
	"lecturechat/internal/dispatch"
	"lecturechat/internal/identity"
	"lecturechat/internal/room"
	"lecturechat/internal/websocket"
	"lecturechat/internal/wire"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

// Options configure a Coordinator
type Options struct {
	Transport    websocket.Config
	AckTimeout   time.Duration
	TypingWindow time.Duration
}

// DefaultOptions returns the client defaults for a socket endpoint
func DefaultOptions(endpoint string) Options {
	return Options{
		Transport:    websocket.DefaultConfig(endpoint),
		AckTimeout:   ack.DefaultTimeout,
		TypingWindow: 2 * time.Second,
	}
}

// Coordinator is the explicit, constructed replacement for a process-wide
// socket manager. Public methods are safe for concurrent use; inbound
// events are handled one at a time on the coordinator's event loop, so
// subscribers never run concurrently with each other.
type Coordinator struct {
	store   interfaces.TokenStore
	session *websocket.Session
	rooms   *room.Tracker
	acks    *ack.Tracker
	events  *dispatch.Registry
	typing  *typingLimiter

	frames chan wire.Frame
	states chan bool
	errs   chan string
	quit   chan struct{}
	done   chan struct{}

	// set when the active room must be (re)joined on the next connect
	rejoin atomic.Bool

	mu       sync.Mutex
	disposed bool
}

// New creates a coordinator reading credentials from store and starts its
// event loop. It does not connect.
func New(store interfaces.TokenStore, opts Options) *Coordinator {
	c := &Coordinator{
		store:  store,
		events: dispatch.NewRegistry(),
		typing: newTypingLimiter(opts.TypingWindow),
		frames: make(chan wire.Frame, 1000),
		states: make(chan bool, 100),
		errs:   make(chan string, 100),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}

	c.session = websocket.NewSession(opts.Transport, store, websocket.Events{
		Frame: c.enqueueFrame,
		State: c.enqueueState,
		Error: func(err error) { c.report(err.Error()) },
	})
	c.rooms = room.NewTracker(c.session)
	c.acks = ack.NewTracker(opts.AckTimeout, func(p *ack.Pending, reason string) {
		c.report(reason)
	})

	go c.run()
	return c
}

// Connect opens the socket with the stored access token. Repeated calls
// with an unchanged token keep the existing connection. Connection
// failures are reported to OnError and OnConnectionChange subscribers.
func (c *Coordinator) Connect(ctx context.Context) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	c.session.Connect(ctx)
	return nil
}

// Disconnect closes the socket, forgets the active room and drops pending
// sends without reporting them.
func (c *Coordinator) Disconnect() error {
	if c.isDisposed() {
		return ErrDisposed
	}
	c.teardown()
	return nil
}

// Dispose disconnects and stops the event loop. Every later call fails
// with ErrDisposed. Calling Dispose twice is a no-op.
func (c *Coordinator) Dispose() error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return nil
	}
	c.disposed = true
	c.mu.Unlock()

	c.teardown()
	close(c.quit)
	return nil
}

// Done is closed after Dispose once the event loop has exited
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

func (c *Coordinator) teardown() {
	c.session.Disconnect()
	c.rooms.Clear()
	c.acks.Drop()
	c.typing.Reset()
}

// IsConnected reports whether the socket is live
func (c *Coordinator) IsConnected() bool {
	return c.session.IsConnected()
}

// JoinRoom makes roomID the active room, connecting first if needed.
// A room recorded while the socket is still coming up is joined as soon
// as it connects.
func (c *Coordinator) JoinRoom(ctx context.Context, roomID string) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	if !c.session.IsConnected() {
		c.session.Connect(ctx)
	}
	return c.deferredJoin(roomID, c.rooms.Join(roomID))
}

// JoinDirectMessageRoom joins the canonical direct room of two users and
// returns its id.
func (c *Coordinator) JoinDirectMessageRoom(ctx context.Context, userA, userB int64) (string, error) {
	if c.isDisposed() {
		return "", ErrDisposed
	}
	if !c.session.IsConnected() {
		c.session.Connect(ctx)
	}
	roomID, err := c.rooms.JoinDirect(userA, userB)
	return roomID, c.deferredJoin(roomID, err)
}

func (c *Coordinator) deferredJoin(roomID string, err error) error {
	if errors.Is(err, websocket.ErrNotConnected) {
		c.rejoin.Store(true)
		log.Printf("Not connected yet, room %s will be joined on connect", roomID)
		return nil
	}
	return err
}

// LeaveRoom leaves the active room. No-op when no room is active.
func (c *Coordinator) LeaveRoom() error {
	if c.isDisposed() {
		return ErrDisposed
	}
	err := c.rooms.Leave()
	if errors.Is(err, websocket.ErrNotConnected) {
		return nil
	}
	return err
}

// ActiveRoom returns the active room id, or "" when none
func (c *Coordinator) ActiveRoom() string {
	return c.rooms.Active()
}

// SendMessage emits text to the active room and returns the pending send.
// Validation and connectivity failures are returned and also reported to
// OnError subscribers; the outcome of an accepted send is reported there
// too when it errors or times out. Nothing is inserted into any list.
func (c *Coordinator) SendMessage(text string, metadata types.Metadata) (*ack.Pending, error) {
	if c.isDisposed() {
		return nil, ErrDisposed
	}

	if err := types.ValidateOutbound(text, metadata); err != nil {
		if errors.Is(err, types.ErrEmptyMessage) {
			err = ErrEmptyMessage
		}
		c.report(err.Error())
		return nil, err
	}

	roomID := c.rooms.Active()
	if roomID == "" {
		c.report(ErrNotConnected.Error())
		return nil, fmt.Errorf("%w: %w", ErrNotConnected, ErrNoActiveRoom)
	}
	if !c.session.IsConnected() {
		c.report(ErrNotConnected.Error())
		return nil, ErrNotConnected
	}

	body := strings.TrimSpace(text)
	p := c.acks.Begin(roomID, body, metadata)

	payload := make(map[string]interface{}, len(metadata)+3)
	for k, v := range metadata {
		payload[k] = v
	}
	payload["room_id"] = roomID
	payload["message"] = body
	payload[wire.CorrelationField] = p.ID

	if err := c.session.Emit(wire.EventSendMessage, payload); err != nil {
		log.Printf("Failed to emit message to %s: %v", roomID, err)
		c.acks.Fail(p.ID, ack.ErrSendFailed.Error())
		return p, fmt.Errorf("%w: %v", ack.ErrSendFailed, err)
	}
	return p, nil
}

// SendMessageWait sends like SendMessage and blocks until the send is
// resolved or ctx ends. It returns the server message id when known.
// It may be called from a subscriber: acks are settled off the event loop.
func (c *Coordinator) SendMessageWait(ctx context.Context, text string, metadata types.Metadata) (int64, error) {
	p, err := c.SendMessage(text, metadata)
	if err != nil {
		return 0, err
	}
	select {
	case <-p.Done():
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	outcome := p.Outcome()
	if outcome.State != ack.Acked {
		return 0, outcome.Err
	}
	return outcome.MessageID, nil
}

// SendTyping emits a typing indicator for the active room. It is silently
// skipped when there is no room or no connection, and typing=true is
// throttled per room.
func (c *Coordinator) SendTyping(typing bool) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	roomID := c.rooms.Active()
	if roomID == "" || !c.session.IsConnected() {
		return nil
	}
	if !c.typing.Allow(roomID, typing) {
		return nil
	}
	return c.session.Emit(wire.EventTyping, wire.TypingPayload{RoomID: roomID, Typing: typing})
}

// MarkRead tells the backend the user has read up to messageID
func (c *Coordinator) MarkRead(messageID int64) error {
	if c.isDisposed() {
		return ErrDisposed
	}
	if messageID <= 0 {
		return fmt.Errorf("mark read %d: %w", messageID, wire.ErrMissingMessageID)
	}
	if !c.session.IsConnected() {
		return ErrNotConnected
	}
	return c.session.Emit(wire.EventMarkRead, wire.MarkReadPayload{MessageID: messageID})
}

// JoinInvitations subscribes to invitation events; skipped while
// disconnected.
func (c *Coordinator) JoinInvitations() bool {
	if c.isDisposed() {
		return false
	}
	return c.rooms.JoinInvitations()
}

func (c *Coordinator) LeaveInvitations() bool {
	if c.isDisposed() {
		return false
	}
	return c.rooms.LeaveInvitations()
}

// CurrentUser resolves the local user from the token store
func (c *Coordinator) CurrentUser(ctx context.Context) (*types.User, error) {
	return identity.CurrentUser(ctx, c.store)
}

// Subscriptions

func (c *Coordinator) OnMessage(fn func(types.ChatMessage)) dispatch.Subscription {
	return c.events.OnMessage(fn)
}

func (c *Coordinator) OnTyping(fn func(types.TypingEvent)) dispatch.Subscription {
	return c.events.OnTyping(fn)
}

func (c *Coordinator) OnUserJoin(fn func(types.UserEvent)) dispatch.Subscription {
	return c.events.OnUserJoin(fn)
}

func (c *Coordinator) OnUserLeave(fn func(types.UserEvent)) dispatch.Subscription {
	return c.events.OnUserLeave(fn)
}

func (c *Coordinator) OnConnectionChange(fn func(bool)) dispatch.Subscription {
	return c.events.OnConnectionChange(fn)
}

func (c *Coordinator) OnError(fn func(string)) dispatch.Subscription {
	return c.events.OnError(fn)
}

func (c *Coordinator) OnEntityDeleted(fn func(types.EntityDeletedEvent)) dispatch.Subscription {
	return c.events.OnEntityDeleted(fn)
}

func (c *Coordinator) RemoveMessageCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveMessageCallback(sub)
}

func (c *Coordinator) RemoveTypingCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveTypingCallback(sub)
}

func (c *Coordinator) RemoveUserJoinCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveUserJoinCallback(sub)
}

func (c *Coordinator) RemoveUserLeaveCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveUserLeaveCallback(sub)
}

func (c *Coordinator) RemoveConnectionCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveConnectionCallback(sub)
}

func (c *Coordinator) RemoveErrorCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveErrorCallback(sub)
}

func (c *Coordinator) RemoveEntityDeletedCallback(sub dispatch.Subscription) bool {
	return c.events.RemoveEntityDeletedCallback(sub)
}

// Unsubscribe removes a subscription of any category
func (c *Coordinator) Unsubscribe(sub dispatch.Subscription) bool {
	return c.events.Remove(sub)
}

func (c *Coordinator) isDisposed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disposed
}
