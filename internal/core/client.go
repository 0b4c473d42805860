package core

import "github.com/google/uuid"

// Client is a single live connection as seen by the core layer. The
// identity slot starts empty, is filled at most once by a successful join,
// and is read and written only by the hub goroutine.
type Client struct {
	ID     string
	Events chan *Event

	identity *Identity
	closed   bool
}

// NewClient constructs an unbound client with a buffered event channel.
func NewClient() *Client {
	return &Client{
		ID:     uuid.NewString(),
		Events: make(chan *Event, 32),
	}
}

// Identity returns the bound identity, or nil while unbound.
// Callers outside the hub goroutine may only use the result for logging.
func (c *Client) Identity() *Identity {
	return c.identity
}
