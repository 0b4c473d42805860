package core

import "time"

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventJoinSuccess confirms a successful join to the joining client.
	EventJoinSuccess EventKind = iota
	// EventConnectionDenied tells a client its join was refused fatally.
	EventConnectionDenied
	// EventBannedNotice tells a client it was banned before the forced close.
	EventBannedNotice
	// EventHistory delivers the full chat history to a client.
	EventHistory
	// EventNewMessage notifies clients about a chat message.
	EventNewMessage
	// EventUserLists delivers the connected and banned identity lists.
	EventUserLists
	// EventAlert carries a non-fatal error to the client that caused it.
	EventAlert
	// EventFeatureRequests delivers the feature-request queue to admins.
	EventFeatureRequests
)

// Message is the domain model for a chat message.
type Message struct {
	Author        string
	AuthorIsAdmin bool
	Text          string
	CreatedAt     time.Time
}

// Ban is the public view of a ban record.
type Ban struct {
	ID   string
	Name string
}

// FeatureRequest is the admin-facing view of a queue item.
type FeatureRequest struct {
	ID        string
	Author    string
	Text      string
	CreatedAt time.Time
}

// Event is sent to clients to describe what happened in the session.
type Event struct {
	Kind     EventKind
	Identity *Identity // join success
	Token    string    // admin resume token, join success only
	Reason   string    // denied / banned notice
	Message  Message   // new message
	Messages []Message // history
	Users    []RosterEntry
	Bans     []Ban
	Requests []FeatureRequest
	Alert    *SessionError
}
