package interfaces_test

import (
	"context"
	"testing"

	"lecturechat/pkg/interfaces"
)

type mockConnection struct{ done chan struct{} }

func (m *mockConnection) WriteJSON(v interface{}) error { return nil }
func (m *mockConnection) Close() error                  { return nil }
func (m *mockConnection) Token() string                 { return "token" }
func (m *mockConnection) Done() <-chan struct{}         { return m.done }

type mockStore struct{ values map[string]string }

func (m *mockStore) Get(ctx context.Context, key string) (string, error) { return m.values[key], nil }
func (m *mockStore) Set(ctx context.Context, key, value string) error {
	m.values[key] = value
	return nil
}
func (m *mockStore) Remove(ctx context.Context, key string) error {
	delete(m.values, key)
	return nil
}
func (m *mockStore) Close() error { return nil }

func TestConnection_InterfaceContract(t *testing.T) {
	var conn interfaces.Connection = &mockConnection{done: make(chan struct{})}

	_ = conn.WriteJSON(struct{}{})
	_ = conn.Close()
	if conn.Token() != "token" {
		t.Errorf("Expected token 'token', got '%s'", conn.Token())
	}
	if conn.Done() == nil {
		t.Error("Done channel should not be nil")
	}
}

func TestTokenStore_MissingKeyIsEmpty(t *testing.T) {
	var store interfaces.TokenStore = &mockStore{values: map[string]string{}}
	ctx := context.Background()

	value, err := store.Get(ctx, "access_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if value != "" {
		t.Errorf("Expected empty value for missing key, got %q", value)
	}

	if err := store.Set(ctx, "access_token", "abc"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _ := store.Get(ctx, "access_token"); value != "abc" {
		t.Errorf("Expected 'abc', got %q", value)
	}
}
