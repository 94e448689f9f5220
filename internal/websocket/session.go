package websocket

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/singleflight"

	"lecturechat/internal/wire"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

// Config controls how a Session dials and reconnects
type Config struct {
	URL          string
	DialTimeout  time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Connection   ConnectionConfig
}

// DefaultConfig returns the reconnect policy of the chat client for the
// socket endpoint url.
func DefaultConfig(endpoint string) Config {
	return Config{
		URL:          endpoint,
		DialTimeout:  20 * time.Second,
		MaxAttempts:  10,
		InitialDelay: time.Second,
		MaxDelay:     5 * time.Second,
		Connection:   DefaultConnectionConfig(),
	}
}

// Events are the session's outputs. Each callback may be nil.
// Frame is called from the connection's read goroutine.
type Events struct {
	Frame FrameHandler
	State func(connected bool)
	Error func(err error)
}

// Session owns at most one live connection to the chat backend and keeps
// it alive with bounded, backed-off reconnection attempts.
type Session struct {
	cfg    Config
	store  interfaces.TokenStore
	events Events
	dialer *websocket.Dialer
	group  singleflight.Group

	mu        sync.Mutex
	token     string
	conn      interfaces.Connection
	connected bool
	stop      context.CancelFunc
	stopped   chan struct{}
}

// NewSession creates a disconnected session
func NewSession(cfg Config, store interfaces.TokenStore, events Events) *Session {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Session{
		cfg:    cfg,
		store:  store,
		events: events,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.DialTimeout,
		},
	}
}

// Connect opens the connection with the stored access token. It is
// idempotent: a live connection with the same token is kept and its state
// re-broadcast. Failures are reported through Events, never returned.
// Concurrent calls share one attempt; ctx bounds only the wait for it.
func (s *Session) Connect(ctx context.Context) {
	s.group.Do("connect", func() (interface{}, error) {
		s.connect(ctx)
		return nil, nil
	})
}

func (s *Session) connect(ctx context.Context) {
	token, err := s.store.Get(ctx, types.KeyAccessToken)
	if err != nil {
		log.Printf("Failed to read access token: %v", err)
		s.reportError(ErrConnectionFailed)
		return
	}
	if token == "" {
		log.Printf("No access token available, skipping chat connection")
		return
	}

	s.mu.Lock()
	if s.connected && s.token == token {
		s.mu.Unlock()
		log.Printf("Already connected with current token")
		s.broadcast(true)
		return
	}
	s.mu.Unlock()

	// Token changed or the previous attempt is not live.
	s.Disconnect()

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	stopped := make(chan struct{})

	s.mu.Lock()
	s.token = token
	s.stop = cancel
	s.stopped = stopped
	s.mu.Unlock()

	go s.run(runCtx, cancel, token, ready, stopped)

	select {
	case <-ready:
	case <-ctx.Done():
	}
}

// Disconnect closes the connection and stops reconnecting. It returns
// after the state change has been broadcast.
func (s *Session) Disconnect() {
	s.mu.Lock()
	stop, stopped := s.stop, s.stopped
	s.stop, s.stopped = nil, nil
	s.token = ""
	s.mu.Unlock()

	if stop == nil {
		return
	}
	stop()
	<-stopped
}

// IsConnected reports whether a live connection exists
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// Emit sends one event on the live connection
func (s *Session) Emit(event string, data interface{}) error {
	frame, err := wire.NewFrame(event, data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("emit %s: %w", event, err)
	}
	return nil
}

// run keeps one connection for token alive until ctx is cancelled or
// reconnection gives up.
func (s *Session) run(ctx context.Context, cancel context.CancelFunc, token string, ready, stopped chan struct{}) {
	defer close(stopped)
	defer cancel()

	var once sync.Once
	signal := func() { once.Do(func() { close(ready) }) }
	defer signal()

	for {
		conn, err := s.dialWithRetry(ctx, token, signal)
		if err != nil {
			s.release(stopped)
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrAuthFailed) {
				log.Printf("Chat authentication rejected, not retrying: %v", err)
				s.reportError(ErrAuthFailed)
			} else {
				log.Printf("Giving up on chat connection after %d attempts: %v", s.cfg.MaxAttempts, err)
				s.reportError(ErrConnectionFailed)
			}
			s.broadcast(false)
			return
		}

		s.install(conn)
		signal()

		select {
		case <-conn.Done():
			log.Printf("Chat connection lost, reconnecting")
			s.uninstall(conn)
		case <-ctx.Done():
			conn.Close()
			<-conn.Done()
			s.uninstall(conn)
			return
		}
	}
}

func (s *Session) dialWithRetry(ctx context.Context, token string, attempted func()) (*Connection, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialDelay
	b.MaxInterval = s.cfg.MaxDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0.5

	op := func() (*Connection, error) {
		conn, err := s.dial(ctx, token)
		if errors.Is(err, ErrAuthFailed) {
			return nil, backoff.Permanent(err)
		}
		return conn, err
	}

	notify := func(err error, next time.Duration) {
		log.Printf("Chat connection attempt failed: %v (retrying in %s)", err, next)
		s.reportError(ErrConnectionFailed)
		s.broadcast(false)
		attempted()
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(s.cfg.MaxAttempts)),
		backoff.WithNotify(notify),
	)
}

func (s *Session) dial(ctx context.Context, token string) (*Connection, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()

	if s.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DialTimeout)
		defer cancel()
	}

	ws, resp, err := s.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrAuthFailed, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return NewConnection(ws, token, s.cfg.Connection, s.events.Frame), nil
}

func (s *Session) install(conn interfaces.Connection) {
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()

	log.Printf("Connected to chat server")
	s.broadcast(true)
}

func (s *Session) uninstall(conn interfaces.Connection) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	s.connected = false
	s.mu.Unlock()

	s.broadcast(false)
}

// release forgets the worker identified by stopped if it is still current
func (s *Session) release(stopped chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped == stopped {
		s.stop, s.stopped = nil, nil
		s.token = ""
	}
}

func (s *Session) broadcast(connected bool) {
	if s.events.State != nil {
		s.events.State(connected)
	}
}

func (s *Session) reportError(err error) {
	if s.events.Error != nil {
		s.events.Error(err)
	}
}
