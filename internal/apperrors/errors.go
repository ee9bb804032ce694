// internal/apperrors/errors.go
package apperrors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Kind classifies an error so transport adapters can map it to a wire code.
type Kind string

const (
	KindValidation       Kind = "validation"
	KindIllegalAction    Kind = "illegal_action"
	KindRoomNotFound     Kind = "room_not_found"
	KindRoomFull         Kind = "room_full"
	KindActionTimeout    Kind = "action_timeout"
	KindStoreUnavailable Kind = "store_unavailable"
)

// Error is a recoverable, typed game error. The offending call is rejected
// and room state is left unchanged; only store errors are retried.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any error of the same Kind, so callers can use errors.Is
// against the exported sentinels below.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrValidation       = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrIllegalAction    = &Error{Kind: KindIllegalAction, Message: "action not legal"}
	ErrRoomNotFound     = &Error{Kind: KindRoomNotFound, Message: "room not found"}
	ErrRoomFull         = &Error{Kind: KindRoomFull, Message: "room is full"}
	ErrActionTimeout    = &Error{Kind: KindActionTimeout, Message: "action timed out"}
	ErrStoreUnavailable = &Error{Kind: KindStoreUnavailable, Message: "store unavailable"}
)

// Validationf builds a ValidationError with a formatted message.
func Validationf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Illegalf builds an IllegalActionError with a formatted message.
func Illegalf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindIllegalAction, Message: fmt.Sprintf(format, args...)}
}

// NotFound builds a RoomNotFoundError for the given room id.
func NotFound(roomID uuid.UUID) *Error {
	return &Error{Kind: KindRoomNotFound, Message: fmt.Sprintf("room %s not found", roomID)}
}

// Full builds a RoomFullError for the given room id.
func Full(roomID uuid.UUID) *Error {
	return &Error{Kind: KindRoomFull, Message: fmt.Sprintf("room %s is full", roomID)}
}

// Timeout builds an ActionTimeoutError.
func Timeout(msg string) *Error {
	return &Error{Kind: KindActionTimeout, Message: msg}
}

// StoreUnavailable wraps a persistence failure that survived retries.
func StoreUnavailable(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: "persistence failed", cause: cause}
}
