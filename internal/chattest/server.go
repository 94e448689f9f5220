// Package chattest runs a scriptable in-process chat backend speaking the
// lecturechat socket protocol, for tests and local demos.
package chattest

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lecturechat/internal/wire"
	"lecturechat/pkg/types"
)

// SocketPath is where the backend accepts socket connections
const SocketPath = "/ws"

// Server is a fake chat backend. The zero knobs behave like a healthy
// backend that acknowledges every send and echoes the correlation id.
type Server struct {
	srv      *httptest.Server
	reg      *registry
	upgrader websocket.Upgrader

	mu              sync.Mutex
	users           map[string]types.User
	history         map[string][]types.ChatMessage
	received        []wire.Frame
	markedRead      []int64
	nextID          int64
	dials           int
	dropAcks        bool
	echoCorrelation bool
	rejectSends     string
	replayOnJoin    bool
	notify          chan struct{}
}

// New starts a backend on a loopback port
func New() *Server {
	s := &Server{
		reg:             newRegistry(),
		users:           make(map[string]types.User),
		history:         make(map[string][]types.ChatMessage),
		nextID:          1,
		echoCorrelation: true,
		notify:          make(chan struct{}, 1),
		upgrader: websocket.Upgrader{
			CheckOrigin:      func(r *http.Request) bool { return true },
			HandshakeTimeout: 10 * time.Second,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(SocketPath, s.handleSocket)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL is the socket endpoint, ws://host/ws
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + SocketPath
}

// ChatBaseURL is the REST-style chat base url clients are configured with
func (s *Server) ChatBaseURL() string {
	return s.srv.URL + "/chat/"
}

// Close disconnects every peer and stops the backend
func (s *Server) Close() {
	s.reg.closeAll()
	s.srv.Close()
}

// AddUser authorizes token as user
func (s *Server) AddUser(token string, user types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = user
}

// SetDropAcks makes the backend swallow message_sent acknowledgments
func (s *Server) SetDropAcks(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropAcks = drop
}

// SetEchoCorrelation controls whether acks carry client_msg_id
func (s *Server) SetEchoCorrelation(echo bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.echoCorrelation = echo
}

// SetRejectSends makes every send fail with reason; "" accepts again
func (s *Server) SetRejectSends(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectSends = reason
}

// SetReplayOnJoin replays a room's history to peers that join it
func (s *Server) SetReplayOnJoin(replay bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replayOnJoin = replay
}

// Broadcast pushes an event to every member of roomID
func (s *Server) Broadcast(roomID, event string, data interface{}) error {
	members := s.reg.members(roomID)
	if len(members) == 0 {
		return fmt.Errorf("%s: %w", roomID, errNoSuchRoom)
	}
	for _, p := range members {
		if err := p.emit(event, data); err != nil {
			return err
		}
	}
	return nil
}

// PushAll pushes an event to every connected peer
func (s *Server) PushAll(event string, data interface{}) {
	for _, p := range s.reg.all() {
		if err := p.emit(event, data); err != nil {
			log.Printf("chattest: push %s to %s: %v", event, p.id, err)
		}
	}
}

// Kick drops every live connection without a close handshake and returns
// how many were dropped.
func (s *Server) Kick() int {
	return s.reg.closeAll()
}

// Dials counts successful socket upgrades
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Connections counts live peers
func (s *Server) Connections() int {
	return s.reg.stats()["total_connections"]
}

// Members counts peers in roomID
func (s *Server) Members(roomID string) int {
	return len(s.reg.members(roomID))
}

// History returns the messages stored for roomID
func (s *Server) History(roomID string) []types.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ChatMessage, len(s.history[roomID]))
	copy(out, s.history[roomID])
	return out
}

// MarkedRead returns message ids received through mark_read
func (s *Server) MarkedRead() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, len(s.markedRead))
	copy(out, s.markedRead)
	return out
}

// Received returns the frames received with the given event name, or all
// frames when event is empty.
func (s *Server) Received(event string) []wire.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []wire.Frame
	for _, f := range s.received {
		if event == "" || f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

// WaitReceived blocks until n frames named event have arrived
func (s *Server) WaitReceived(event string, n int, timeout time.Duration) ([]wire.Frame, bool) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		if frames := s.Received(event); len(frames) >= n {
			return frames, true
		}
		select {
		case <-s.notify:
		case <-time.After(10 * time.Millisecond):
		case <-deadline.C:
			return s.Received(event), false
		}
	}
}

// WaitConnections blocks until exactly n peers are connected
func (s *Server) WaitConnections(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if s.Connections() == n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return s.Connections() == n
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")

	s.mu.Lock()
	user, ok := s.users[token]
	s.mu.Unlock()
	if !ok {
		log.Printf("chattest: rejecting handshake: %v", errNotAuthorized)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("chattest: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.dials++
	s.mu.Unlock()

	p := newPeer(uuid.NewString(), user, conn)
	s.reg.register(p)
	defer func() {
		s.reg.unregister(p)
		p.close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			p.emit(wire.EventError, wire.ErrorPayload{Message: "malformed frame"})
			continue
		}
		s.record(frame)
		s.handleFrame(p, frame)
	}
}

func (s *Server) record(frame wire.Frame) {
	s.mu.Lock()
	s.received = append(s.received, frame)
	s.mu.Unlock()
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Server) handleFrame(p *peer, frame wire.Frame) {
	switch frame.Event {
	case wire.EventJoinRoom:
		var req wire.RoomPayload
		if err := json.Unmarshal(frame.Data, &req); err != nil || req.RoomID == "" {
			p.emit(wire.EventError, wire.ErrorPayload{Message: "room_id required"})
			return
		}
		s.reg.join(p, req.RoomID)
		p.emit(wire.EventRoomJoined, req)
		s.replay(p, req.RoomID)

	case wire.EventLeaveRoom:
		var req wire.RoomPayload
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		s.reg.leave(p, req.RoomID)
		p.emit(wire.EventRoomLeft, req)

	case wire.EventSendMessage:
		s.handleSend(p, frame.Data)

	case wire.EventTyping:
		var req wire.TypingPayload
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		ev := types.TypingEvent{
			UserID:    p.user.ID,
			Username:  p.user.Username,
			FirstName: p.user.FirstName,
			Typing:    req.Typing,
		}
		for _, m := range s.reg.members(req.RoomID) {
			if m != p {
				m.emit(wire.EventUserTyping, ev)
			}
		}

	case wire.EventMarkRead:
		var req wire.MarkReadPayload
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return
		}
		s.mu.Lock()
		s.markedRead = append(s.markedRead, req.MessageID)
		s.mu.Unlock()

	case wire.EventJoinInvitations:
		p.emit(wire.EventInvitationsJoined, map[string]int64{"user_id": p.user.ID})

	case wire.EventLeaveInvitations:
		p.emit(wire.EventInvitationsLeft, map[string]int64{"user_id": p.user.ID})
	}
}

// outboundMessage is the nested shape the backend broadcasts, with the
// sender in a sub-object and the body under content.
type outboundMessage struct {
	ID          int64        `json:"id"`
	RoomID      string       `json:"room_id"`
	Content     string       `json:"content"`
	CreatedAt   string       `json:"created_at"`
	MessageType string       `json:"message_type"`
	FileURL     string       `json:"file_url,omitempty"`
	Sender      outboundUser `json:"sender"`
}

type outboundUser struct {
	ID                int64  `json:"id"`
	Username          string `json:"username"`
	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	ProfilePictureURL string `json:"profile_picture_url,omitempty"`
}

func toOutbound(roomID string, m types.ChatMessage) outboundMessage {
	return outboundMessage{
		ID:          m.MessageID,
		RoomID:      roomID,
		Content:     m.Message,
		CreatedAt:   m.Timestamp,
		MessageType: m.Type,
		FileURL:     m.FileURL,
		Sender: outboundUser{
			ID:                m.UserID,
			Username:          m.Username,
			FirstName:         m.FirstName,
			LastName:          m.LastName,
			ProfilePictureURL: m.ProfilePictureURL,
		},
	}
}

func (s *Server) handleSend(p *peer, data json.RawMessage) {
	var req map[string]interface{}
	if err := json.Unmarshal(data, &req); err != nil {
		p.emit(wire.EventError, wire.ErrorPayload{Message: "malformed send_message"})
		return
	}
	roomID, _ := req["room_id"].(string)
	text, _ := req["message"].(string)
	correlation, _ := req[wire.CorrelationField].(string)
	msgType, _ := req["message_type"].(string)
	fileURL, _ := req["file_url"].(string)
	if msgType == "" {
		msgType = types.MessageTypeText
	}

	s.mu.Lock()
	reject := s.rejectSends
	drop := s.dropAcks
	echo := s.echoCorrelation
	s.mu.Unlock()

	ack := wire.Ack{}
	if echo {
		ack.ClientMsgID = correlation
	}

	if reject != "" {
		ack.Status = "error"
		ack.Message = reject
		if !drop {
			p.emit(wire.EventMessageSent, ack)
		}
		return
	}

	s.mu.Lock()
	msg := types.ChatMessage{
		MessageID:         s.nextID,
		UserID:            p.user.ID,
		Username:          p.user.Username,
		FirstName:         p.user.FirstName,
		LastName:          p.user.LastName,
		ProfilePictureURL: p.user.ProfilePictureURL,
		Message:           text,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
		Type:              msgType,
		FileURL:           fileURL,
	}
	s.nextID++
	s.history[roomID] = append(s.history[roomID], msg)
	s.mu.Unlock()

	out := toOutbound(roomID, msg)
	for _, m := range s.reg.members(roomID) {
		m.emit(wire.EventNewMessage, out)
	}

	if !drop {
		ack.Status = "ok"
		ack.MessageID = wire.FlexInt(msg.MessageID)
		p.emit(wire.EventMessageSent, ack)
	}
}

func (s *Server) replay(p *peer, roomID string) {
	s.mu.Lock()
	replay := s.replayOnJoin
	history := append([]types.ChatMessage(nil), s.history[roomID]...)
	s.mu.Unlock()

	if !replay {
		return
	}
	for _, m := range history {
		p.emit(wire.EventNewMessage, toOutbound(roomID, m))
	}
}
