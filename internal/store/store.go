package store

import (
	"context"
	"time"
)

// Message is a persisted chat message. Messages are append-only; the only
// destructive operation is a wholesale clear.
type Message struct {
	ID            int64
	Author        string
	AuthorIsAdmin bool
	Body          string
	CreatedAt     time.Time
}

// BanRecord is a snapshot of a banned identity. It outlives the connection
// that carried the identity and blocks rejoin attempts under the same name.
type BanRecord struct {
	UserID    string
	Username  string
	CreatedAt time.Time
}

// FeatureRequest is a text item submitted by a regular participant,
// visible only to administrators.
type FeatureRequest struct {
	ID        string
	AuthorID  string
	Author    string
	Body      string
	CreatedAt time.Time
}

// MessageStore manages the ordered chat history.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg Message) (int64, error)
	ListMessages(ctx context.Context) ([]Message, error)
	ClearMessages(ctx context.Context) error
}

// BanStore manages ban records.
type BanStore interface {
	AddBan(ctx context.Context, rec BanRecord) error
	// RemoveBan deletes a ban by user id and reports whether it existed.
	RemoveBan(ctx context.Context, userID string) (bool, error)
	IsBannedName(ctx context.Context, username string) (bool, error)
	ListBans(ctx context.Context) ([]BanRecord, error)
}

// FeatureStore manages the feature-request queue.
type FeatureStore interface {
	AddFeatureRequest(ctx context.Context, req FeatureRequest) error
	// DeleteFeatureRequest deletes by id and reports whether it existed.
	DeleteFeatureRequest(ctx context.Context, id string) (bool, error)
	ListFeatureRequests(ctx context.Context) ([]FeatureRequest, error)
}

// Store combines all storage interfaces.
type Store interface {
	MessageStore
	BanStore
	FeatureStore
	Close() error
}
