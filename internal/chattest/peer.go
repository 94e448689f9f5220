package chattest

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lecturechat/internal/wire"
	"lecturechat/pkg/types"
)

// peer is one client connection on the fake backend
type peer struct {
	id   string
	user types.User
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func newPeer(id string, user types.User, conn *websocket.Conn) *peer {
	p := &peer{
		id:   id,
		user: user,
		conn: conn,
		send: make(chan []byte, 100),
		done: make(chan struct{}),
	}
	go p.writeLoop()
	return p
}

func (p *peer) writeLoop() {
	for {
		select {
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (p *peer) emit(event string, data interface{}) error {
	frame, err := wire.NewFrame(event, data)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case p.send <- raw:
		return nil
	case <-p.done:
		return websocket.ErrCloseSent
	case <-time.After(5 * time.Second):
		return errSlowPeer
	}
}

func (p *peer) close() error {
	var err error
	p.once.Do(func() {
		close(p.done)
		err = p.conn.Close()
	})
	return err
}
