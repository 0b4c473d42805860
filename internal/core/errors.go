package core

// Error codes for session errors surfaced to clients as alert frames.
// Fatal refusals (ban, bad admin credentials) are not alerts; they travel
// as the reason string on a connectionDenied frame instead.
const (
	ErrCodeNameTaken     = "name_taken"
	ErrCodeNotJoined     = "not_joined"
	ErrCodeAlreadyJoined = "already_joined"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternal      = "internal_error"
)

// SessionError wraps a code and human-readable message. Non-fatal errors
// reach only the connection that caused them, as an alert frame.
type SessionError struct {
	Code    string
	Message string
}

func (e *SessionError) Error() string {
	return e.Message
}

func sessionError(code, msg string) *SessionError {
	return &SessionError{Code: code, Message: msg}
}
