package channel

import "context"

// Role classifies the sender of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Message represents an inbound message from a chat transport
type Message struct {
	ID        string
	Channel   string
	UserID    string
	Username  string
	Role      Role
	Content   string
	Metadata  map[string]string
	Timestamp int64
}

// Response represents a reply to send back to a chat transport
type Response struct {
	Content  string
	Metadata map[string]string
}

// Adapter is the interface for chat transport adapters
type Adapter interface {
	// Start starts the adapter
	Start(ctx context.Context) error

	// Stop stops the adapter
	Stop() error

	// SendMessage sends a reply to the given user on this transport
	SendMessage(userID string, resp *Response) error

	// Incoming returns the stream of inbound messages
	Incoming() <-chan *Message

	// Name returns the transport name
	Name() string

	// IsEnabled returns whether the transport is configured
	IsEnabled() bool
}
