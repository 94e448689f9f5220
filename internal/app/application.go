// Package app wires configuration, the token store and the chat
// coordinator into one runnable client.
package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"lecturechat/internal/config"
	"lecturechat/internal/coordinator"
	"lecturechat/internal/identity"
	"lecturechat/internal/tokenstore"
	"lecturechat/internal/websocket"
	"lecturechat/pkg/interfaces"
	"lecturechat/pkg/types"
)

// Application owns the client's long-lived components
type Application struct {
	config      *config.Config
	store       interfaces.TokenStore
	coordinator *coordinator.Coordinator
	socketURL   string
}

// NewApplication builds the client in dependency order:
// config, token store, coordinator. It does not connect.
func NewApplication(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	socketURL, err := cfg.SocketURL()
	if err != nil {
		return nil, err
	}

	store, err := tokenstore.Open(ctx, tokenstore.Options{
		Driver:      cfg.TokenStore.Driver,
		Path:        cfg.TokenStore.Path,
		RedisAddr:   cfg.TokenStore.RedisAddr,
		RedisDB:     cfg.TokenStore.RedisDB,
		RedisPrefix: cfg.TokenStore.RedisPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}

	if token := cfg.TokenStore.AccessToken; token != "" {
		if err := store.Set(ctx, types.KeyAccessToken, token); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to store access token: %w", err)
		}
		if identity.Expired(token, time.Now()) {
			log.Printf("Warning: configured access token has expired")
		}
	}

	return &Application{
		config:      cfg,
		store:       store,
		coordinator: coordinator.New(store, CoordinatorOptions(cfg, socketURL)),
		socketURL:   socketURL,
	}, nil
}

// CoordinatorOptions maps configuration onto coordinator options
func CoordinatorOptions(cfg *config.Config, socketURL string) coordinator.Options {
	transport := websocket.DefaultConfig(socketURL)
	transport.DialTimeout = cfg.WebSocket.DialTimeout
	transport.MaxAttempts = cfg.Reconnect.Attempts
	transport.InitialDelay = cfg.Reconnect.Delay
	transport.MaxDelay = cfg.Reconnect.DelayMax
	transport.Connection.PingInterval = cfg.WebSocket.PingInterval
	transport.Connection.PongWait = cfg.WebSocket.ReadTimeout
	transport.Connection.WriteTimeout = cfg.WebSocket.WriteTimeout
	transport.Connection.SendBuffer = cfg.WebSocket.BufferSize

	return coordinator.Options{
		Transport:    transport,
		AckTimeout:   cfg.Send.AckTimeout,
		TypingWindow: cfg.Send.TypingWindow,
	}
}

// Start connects to the chat server. Connection failures are reported to
// the coordinator's subscribers, not returned.
func (app *Application) Start(ctx context.Context) error {
	log.Printf("Starting lecturechat client against %s", app.socketURL)
	return app.coordinator.Connect(ctx)
}

// Stop disposes the coordinator and closes the token store
func (app *Application) Stop(ctx context.Context) error {
	log.Printf("Shutting down lecturechat client")

	if err := app.coordinator.Dispose(); err != nil {
		log.Printf("Coordinator shutdown error: %v", err)
	}
	select {
	case <-app.coordinator.Done():
	case <-ctx.Done():
		log.Printf("Timed out waiting for event loop to stop")
	}

	if err := app.store.Close(); err != nil {
		log.Printf("Token store shutdown error: %v", err)
	}

	log.Printf("lecturechat client shutdown complete")
	return nil
}

// Coordinator returns the chat coordinator
func (app *Application) Coordinator() *coordinator.Coordinator {
	return app.coordinator
}

// Store returns the token store
func (app *Application) Store() interfaces.TokenStore {
	return app.store
}

// SocketURL returns the derived socket endpoint
func (app *Application) SocketURL() string {
	return app.socketURL
}
