package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"lecturechat/internal/chattest"
	"lecturechat/internal/config"
	"lecturechat/pkg/types"
)

func TestNewApplication_RejectsInvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconnect.Attempts = 0

	application, err := NewApplication(context.Background(), cfg)
	if err == nil {
		t.Error("Constructor should reject invalid configuration")
	}
	if application != nil {
		t.Error("Constructor should not return an application with invalid config")
	}
}

func TestNewApplication_Defaults(t *testing.T) {
	application, err := NewApplication(context.Background(), nil)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}
	defer application.Stop(context.Background())

	if application.SocketURL() != "ws://localhost:8000/ws" {
		t.Errorf("Unexpected socket url %s", application.SocketURL())
	}
	if application.Coordinator() == nil || application.Store() == nil {
		t.Fatal("Expected coordinator and store")
	}
}

func TestCoordinatorOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconnect.Attempts = 4
	cfg.Send.AckTimeout = 3 * time.Second
	cfg.WebSocket.BufferSize = 16

	opts := CoordinatorOptions(cfg, "ws://host/ws")

	if opts.Transport.URL != "ws://host/ws" || opts.Transport.MaxAttempts != 4 {
		t.Errorf("Unexpected transport %+v", opts.Transport)
	}
	if opts.AckTimeout != 3*time.Second {
		t.Errorf("Expected 3s ack timeout, got %v", opts.AckTimeout)
	}
	if opts.Transport.Connection.SendBuffer != 16 {
		t.Errorf("Expected send buffer 16, got %d", opts.Transport.Connection.SendBuffer)
	}
}

func TestApplication_StartStopWithSQLiteStore(t *testing.T) {
	srv := chattest.New()
	defer srv.Close()
	srv.AddUser("tok-app", types.User{ID: 11, Username: "lecturer"})

	cfg := config.DefaultConfig()
	cfg.Chat.BaseURL = srv.ChatBaseURL()
	cfg.TokenStore.Driver = "sqlite"
	cfg.TokenStore.Path = filepath.Join(t.TempDir(), "tokens.db")
	cfg.TokenStore.AccessToken = "tok-app"

	ctx := context.Background()
	application, err := NewApplication(ctx, cfg)
	if err != nil {
		t.Fatalf("NewApplication: %v", err)
	}

	token, err := application.Store().Get(ctx, types.KeyAccessToken)
	if err != nil || token != "tok-app" {
		t.Fatalf("Expected seeded token, got %q (%v)", token, err)
	}

	if err := application.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !application.Coordinator().IsConnected() {
		t.Error("Expected coordinator to be connected")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := application.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !srv.WaitConnections(0, 2*time.Second) {
		t.Error("Expected socket closed after Stop")
	}
}
