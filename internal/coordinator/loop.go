package coordinator

import (
	"log"
	"time"

	"lecturechat/internal/ack"
	"lecturechat/internal/wire"
)

// enqueueFrame runs on the socket reader. Send outcomes are resolved here
// so a subscriber blocked in SendMessageWait on the event loop still sees
// its ack; everything else is queued for the loop.
func (c *Coordinator) enqueueFrame(f wire.Frame) {
	if c.resolveSend(f) {
		return
	}
	select {
	case c.frames <- f:
	case <-c.quit:
	}
}

func (c *Coordinator) enqueueState(connected bool) {
	select {
	case c.states <- connected:
	case <-c.quit:
	}
}

// report queues a human-readable error for OnError subscribers
func (c *Coordinator) report(msg string) {
	select {
	case c.errs <- msg:
	case <-c.quit:
	}
}

// run is the single goroutine that dispatches to subscribers
func (c *Coordinator) run() {
	defer close(c.done)

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case f := <-c.frames:
			c.handleFrame(f)
		case connected := <-c.states:
			c.handleState(connected)
		case msg := <-c.errs:
			c.events.Error.Publish(msg)
		case <-cleanup.C:
			c.typing.Cleanup()
		case <-c.quit:
			c.drain()
			return
		}
	}
}

// drain delivers state changes and errors queued before shutdown
func (c *Coordinator) drain() {
	for {
		select {
		case connected := <-c.states:
			c.events.ConnectionChange.Publish(connected)
		case msg := <-c.errs:
			c.events.Error.Publish(msg)
		default:
			return
		}
	}
}

func (c *Coordinator) handleState(connected bool) {
	if !connected {
		c.rejoin.Store(true)
		c.events.ConnectionChange.Publish(false)
		return
	}

	if c.rejoin.Swap(false) {
		if roomID := c.rooms.Active(); roomID != "" {
			log.Printf("Rejoining room %s after reconnect", roomID)
			if err := c.session.Emit(wire.EventJoinRoom, wire.RoomPayload{RoomID: roomID}); err != nil {
				log.Printf("Failed to rejoin room %s: %v", roomID, err)
			}
		}
	}
	c.events.ConnectionChange.Publish(true)
}

func (c *Coordinator) handleFrame(f wire.Frame) {
	switch f.Event {
	case wire.EventNewMessage:
		msg, err := wire.ParseChatMessage(f.Data)
		if err != nil {
			log.Printf("Dropping malformed new_message: %v", err)
			c.events.Error.Publish("Received malformed message: " + err.Error())
			return
		}
		c.events.Message.Publish(msg)

	case wire.EventUserTyping:
		ev, err := wire.ParseTyping(f.Data)
		if err != nil {
			log.Printf("Dropping malformed user_typing: %v", err)
			return
		}
		c.events.Typing.Publish(ev)

	case wire.EventUserJoined, wire.EventUserLeft:
		ev, err := wire.ParseUserEvent(f.Data)
		if err != nil {
			log.Printf("Dropping malformed %s: %v", f.Event, err)
			return
		}
		if f.Event == wire.EventUserJoined {
			c.events.UserJoin.Publish(ev)
		} else {
			c.events.UserLeave.Publish(ev)
		}

	case wire.EventEntityDeleted:
		ev, err := wire.ParseEntityDeleted(f.Data)
		if err != nil {
			log.Printf("Dropping malformed entity_deleted: %v", err)
			return
		}
		c.events.EntityDeleted.Publish(ev)

	case wire.EventError:
		var p wire.ErrorPayload
		if err := wire.Decode(f.Data, &p); err != nil || p.Message == "" {
			p.Message = "Unknown error"
		}
		c.events.Error.Publish(p.Message)

	case wire.EventRoomJoined, wire.EventRoomLeft, wire.EventInvitationsJoined, wire.EventInvitationsLeft:
		log.Printf("Received %s %s", f.Event, f.Data)

	default:
		log.Printf("Ignoring unknown event %q", f.Event)
	}
}

// resolveSend settles pending sends from message_sent and error frames.
// It reports whether the frame was consumed.
func (c *Coordinator) resolveSend(f wire.Frame) bool {
	switch f.Event {
	case wire.EventMessageSent:
		var a wire.Ack
		if err := wire.Decode(f.Data, &a); err != nil {
			log.Printf("Ignoring malformed message_sent: %v", err)
			return true
		}
		reason := ""
		if a.IsError() {
			reason = a.Message
			if reason == "" {
				reason = ack.ErrSendFailed.Error()
			}
		}
		if !c.acks.Ack(a.ClientMsgID, int64(a.MessageID), reason) {
			log.Printf("Ack with no pending send (client_msg_id=%q)", a.ClientMsgID)
		}
		return true

	case wire.EventError:
		var p wire.ErrorPayload
		if err := wire.Decode(f.Data, &p); err != nil || p.Message == "" {
			p.Message = "Unknown error"
		}
		// A pending send consumes the error and reports it itself.
		return c.acks.Fail(p.ClientMsgID, p.Message)
	}
	return false
}
