package errors

import "fmt"

/*
Kind partitions client errors into the categories callers branch on. Local
validation kinds are never retried; remote kinds carry the backend's message
verbatim.
*/
type Kind string

const (
	KindConfig           Kind = "config"
	KindNotFound         Kind = "not_found"
	KindConnectionFailed Kind = "connection_failed"
	KindRemote           Kind = "remote"
	KindInvalidNumber    Kind = "invalid_number"
	KindInvalidJSON      Kind = "invalid_json"
	KindServerDisabled   Kind = "server_disabled"
	KindBusy             Kind = "busy"
)

/*
ClientError is the single error type surfaced by the orchestration core. The
Kind is stable; the message is human readable and safe to show the user.
*/
type ClientError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

/*
Is makes errors.Is match any two ClientErrors of the same Kind, so sentinel
comparisons ignore the formatted message.
*/
func (e *ClientError) Is(target error) bool {
	other, ok := target.(*ClientError)
	return ok && other.Kind == e.Kind
}

// Sentinel instances, one per taxonomy entry. Use WithMessagef to attach
// detail without mutating these.
var (
	ErrMalformedConfig  = &ClientError{Kind: KindConfig, Message: "malformed configuration"}
	ErrNotFound         = &ClientError{Kind: KindNotFound, Message: "unknown server or tool"}
	ErrConnectionFailed = &ClientError{Kind: KindConnectionFailed, Message: "connection failed"}
	ErrRemote           = &ClientError{Kind: KindRemote, Message: "remote error"}
	ErrInvalidNumber    = &ClientError{Kind: KindInvalidNumber, Message: "invalid numeric input"}
	ErrInvalidJSON      = &ClientError{Kind: KindInvalidJSON, Message: "invalid JSON input"}
	ErrServerDisabled   = &ClientError{Kind: KindServerDisabled, Message: "server is disabled"}
	ErrBusy             = &ClientError{Kind: KindBusy, Message: "still processing the previous request"}
)

/*
WithMessagef returns a copy of the error with a formatted message. The
original sentinel is never modified.
*/
func (e *ClientError) WithMessagef(format string, args ...any) *ClientError {
	clone := *e
	clone.Message = fmt.Sprintf(format, args...)
	return &clone
}
