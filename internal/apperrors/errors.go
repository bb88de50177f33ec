package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can render a matching message.
type Kind string

const (
	KindUnknown          Kind = "UNKNOWN"
	KindNotFound         Kind = "NOT_FOUND"
	KindSelfRequest      Kind = "SELF_REQUEST"
	KindAlreadyRequested Kind = "ALREADY_REQUESTED"
	KindAlreadyConnected Kind = "ALREADY_CONNECTED"
	KindNotParticipant   Kind = "NOT_PARTICIPANT"
	KindForbidden        Kind = "FORBIDDEN"
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
	KindTimeout          Kind = "TIMEOUT"
	KindTransportFailure Kind = "TRANSPORT_FAILURE"
	KindCodecFailure     Kind = "CODEC_FAILURE"
)

// AppError is the typed failure returned by the connection and chat services.
type AppError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is lets errors.Is match any *AppError of the same kind, so the package
// level sentinels work as comparison targets.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Cause == nil
}

func New(kind Kind, message string) error {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, cause error) error {
	return &AppError{Kind: kind, Message: message, Cause: cause}
}

func NotFound(msg string) error { return New(KindNotFound, msg) }

func Forbidden(msg string) error { return New(KindForbidden, msg) }

func InvalidArgument(msg string) error { return New(KindInvalidArgument, msg) }

// Sentinels for errors.Is checks.
var (
	ErrNotFound         = New(KindNotFound, "not found")
	ErrSelfRequest      = New(KindSelfRequest, "cannot send a connection request to yourself")
	ErrAlreadyRequested = New(KindAlreadyRequested, "a connection request already exists between these accounts")
	ErrAlreadyConnected = New(KindAlreadyConnected, "accounts are already connected")
	ErrNotParticipant   = New(KindNotParticipant, "account is not a participant of this chat")
	ErrTimeout          = New(KindTimeout, "operation timed out")
	ErrTransport        = New(KindTransportFailure, "storage unavailable")
)

// KindOf returns the kind of the first *AppError in err's chain. Bare
// context deadline errors are reported as timeouts.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// FromStore classifies an error coming back from a storage driver.
// Errors that already carry a kind pass through untouched.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(KindTimeout, op+" timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(KindTimeout, op+" canceled", err)
	}
	return Wrap(KindTransportFailure, op+" failed", err)
}
