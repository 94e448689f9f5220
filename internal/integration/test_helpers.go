// Package integration exercises several coordinators against one fake
// chat backend.
package integration

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lecturechat/internal/chattest"
	"lecturechat/internal/coordinator"
	"lecturechat/internal/tokenstore"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

// Client is one signed-in participant with everything it has observed
type Client struct {
	User  types.User
	Coord *coordinator.Coordinator
	Store interfaces.TokenStore

	mu       sync.Mutex
	messages []types.ChatMessage
	typing   []types.TypingEvent
	errs     []string
}

// NewClient signs user in on srv with a sqlite-backed token store in a
// temporary directory and subscribes to its events.
func NewClient(t *testing.T, srv *chattest.Server, token string, user types.User) *Client {
	t.Helper()
	srv.AddUser(token, user)

	store, err := tokenstore.Open(context.Background(), tokenstore.Options{
		Driver: tokenstore.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tokens.db"),
	})
	if err != nil {
		t.Fatalf("Failed to open token store: %v", err)
	}
	if err := store.Set(context.Background(), types.KeyAccessToken, token); err != nil {
		t.Fatalf("Failed to seed token: %v", err)
	}

	opts := coordinator.DefaultOptions(srv.URL())
	opts.Transport.InitialDelay = 20 * time.Millisecond
	opts.Transport.MaxDelay = 50 * time.Millisecond
	opts.AckTimeout = 2 * time.Second

	c := &Client{User: user, Coord: coordinator.New(store, opts), Store: store}
	c.Coord.OnMessage(func(m types.ChatMessage) {
		c.mu.Lock()
		c.messages = append(c.messages, m)
		c.mu.Unlock()
	})
	c.Coord.OnTyping(func(ev types.TypingEvent) {
		c.mu.Lock()
		c.typing = append(c.typing, ev)
		c.mu.Unlock()
	})
	c.Coord.OnError(func(msg string) {
		c.mu.Lock()
		c.errs = append(c.errs, msg)
		c.mu.Unlock()
	})

	t.Cleanup(func() {
		c.Coord.Dispose()
		<-c.Coord.Done()
		if err := store.Close(); err != nil {
			t.Logf("Failed to close token store: %v", err)
		}
	})
	return c
}

// Messages returns a copy of the messages received so far
func (c *Client) Messages() []types.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.ChatMessage(nil), c.messages...)
}

// Typing returns a copy of the typing events received so far
func (c *Client) Typing() []types.TypingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]types.TypingEvent(nil), c.typing...)
}

// Errors returns a copy of the error reports received so far
func (c *Client) Errors() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.errs...)
}

// Eventually polls cond until it holds or the timeout passes
func Eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}
