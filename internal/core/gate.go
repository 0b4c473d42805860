package core

// Permitted decides whether a command kind is allowed for the given bound
// identity (nil while unbound). It is a pure function: callers that receive
// a non-nil error must not mutate shared state or broadcast anything.
func Permitted(kind CommandKind, identity *Identity) *SessionError {
	switch kind {
	case CommandJoin:
		if identity != nil {
			return sessionError(ErrCodeAlreadyJoined, "already joined")
		}
		return nil

	case CommandChatMessage:
		if identity == nil {
			return sessionError(ErrCodeNotJoined, "join before sending messages")
		}
		return nil

	case CommandFeatureRequest:
		if identity == nil {
			return sessionError(ErrCodeNotJoined, "join before submitting feature requests")
		}
		if identity.Role == RoleAdmin {
			return sessionError(ErrCodeUnauthorized, "administrators cannot submit feature requests")
		}
		return nil

	case CommandAdminMessage, CommandBanUser, CommandUnbanUser,
		CommandClearChat, CommandDeleteFeatureRequest:
		if identity == nil {
			return sessionError(ErrCodeNotJoined, "join before using this action")
		}
		if identity.Role != RoleAdmin {
			return sessionError(ErrCodeUnauthorized, "administrator privileges required")
		}
		return nil

	default:
		return sessionError(ErrCodeBadRequest, "unknown action")
	}
}
