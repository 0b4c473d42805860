package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandJoin binds an identity to an unbound connection.
	CommandJoin CommandKind = iota
	// CommandChatMessage broadcasts a chat message to everyone.
	CommandChatMessage
	// CommandAdminMessage broadcasts a highlighted admin message.
	CommandAdminMessage
	// CommandBanUser moves a connected identity into the ban set.
	CommandBanUser
	// CommandUnbanUser removes an identity from the ban set.
	CommandUnbanUser
	// CommandClearChat truncates the chat history for everyone.
	CommandClearChat
	// CommandFeatureRequest appends an item to the feature-request queue.
	CommandFeatureRequest
	// CommandDeleteFeatureRequest removes an item from the queue by id.
	CommandDeleteFeatureRequest

	// Connection lifecycle, submitted by the transport through
	// Hub.Register and Hub.Unregister.
	commandRegister
	commandUnregister
)

// Command represents an action requested by a client. The hub processes
// commands one at a time, which is what makes state mutation safe without
// locks.
type Command struct {
	Kind   CommandKind
	Client *Client

	// Join fields.
	Name     string
	Password string
	Token    string

	// Message body or feature-request text.
	Text string

	// Target user id (ban/unban) or feature-request id (delete).
	TargetID string
}
