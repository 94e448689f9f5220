package interfaces

// Connection is one authenticated transport connection to the messaging
// backend. Implementations must serialize writes.
type Connection interface {
	// WriteJSON queues a JSON frame for the peer (thread-safe)
	WriteJSON(v interface{}) error

	// Close closes the connection and releases its goroutines
	Close() error

	// Token returns the bearer token the connection authenticated with
	Token() string

	// Done is closed once the connection has stopped reading
	Done() <-chan struct{}
}
