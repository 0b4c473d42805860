package proto

// Frames use a flat envelope: a "type" tag with the payload fields inline.

// Inbound frame types.
const (
	InboundTypeJoin                 = "join"
	InboundTypeChatMessage          = "chatMessage"
	InboundTypeAdminMessage         = "adminMessage"
	InboundTypeBanUser              = "banUser"
	InboundTypeUnbanUser            = "unbanUser"
	InboundTypeClearChat            = "clearChat"
	InboundTypeFeatureRequest       = "featureRequest"
	InboundTypeDeleteFeatureRequest = "deleteFeatureRequest"
)

// Outbound frame types.
const (
	OutboundTypeJoinSuccess           = "joinSuccess"
	OutboundTypeConnectionDenied      = "connectionDenied"
	OutboundTypeBanned                = "banned"
	OutboundTypeChatHistory           = "chatHistory"
	OutboundTypeNewMessage            = "newMessage"
	OutboundTypeUpdateUserLists       = "updateUserLists"
	OutboundTypeAlert                 = "alert"
	OutboundTypeUpdateFeatureRequests = "updateFeatureRequests"
)

// Envelope carries just the type tag; the payload is decoded per type from
// the same bytes.
type Envelope struct {
	Type string `json:"type"`
}

// JoinData is the join payload. Password is required only for the reserved
// administrator name; Token may replace it on an admin reconnect.
type JoinData struct {
	UserName string `json:"userName"`
	Password string `json:"password,omitempty"`
	Token    string `json:"token,omitempty"`
}

// TextData is the chatMessage / adminMessage / featureRequest payload.
type TextData struct {
	Text string `json:"text"`
}

// UserTargetData is the banUser / unbanUser payload.
type UserTargetData struct {
	UserID string `json:"userId"`
}

// RequestTargetData is the deleteFeatureRequest payload.
type RequestTargetData struct {
	RequestID string `json:"requestId"`
}

// JoinSuccess confirms a join to the joining client.
type JoinSuccess struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
	Token    string `json:"token,omitempty"`
}

// ConnectionDenied precedes a server-initiated close of a refused join.
type ConnectionDenied struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Banned tells a client it was banned, just before the forced close.
type Banned struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ChatMessage is one entry of the history or live feed.
type ChatMessage struct {
	UserName string `json:"userName"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
	IsAdmin  bool   `json:"isAdmin"`
}

// ChatHistory replays the full message log. An empty Messages slice is also
// how clients learn the history was cleared.
type ChatHistory struct {
	Type     string        `json:"type"`
	Messages []ChatMessage `json:"messages"`
}

// NewMessage is a live chat message fan-out.
type NewMessage struct {
	Type     string `json:"type"`
	UserName string `json:"userName"`
	Text     string `json:"text"`
	TS       int64  `json:"ts"`
	IsAdmin  bool   `json:"isAdmin"`
}

// UserEntry is one connected identity in UpdateUserLists.
type UserEntry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	Role     string `json:"role"`
}

// BanEntry is one banned identity in UpdateUserLists.
type BanEntry struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// UpdateUserLists carries the connected and banned identity lists.
type UpdateUserLists struct {
	Type   string      `json:"type"`
	Users  []UserEntry `json:"users"`
	Banned []BanEntry  `json:"banned"`
}

// Alert is a non-fatal error surfaced only to the causing connection.
type Alert struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FeatureRequestEntry is one item of the admin-only queue.
type FeatureRequestEntry struct {
	RequestID string `json:"requestId"`
	UserName  string `json:"userName"`
	Text      string `json:"text"`
	TS        int64  `json:"ts"`
}

// UpdateFeatureRequests delivers the queue to admin connections.
type UpdateFeatureRequests struct {
	Type     string                `json:"type"`
	Requests []FeatureRequestEntry `json:"requests"`
}
