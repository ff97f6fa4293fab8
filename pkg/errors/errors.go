package errors

import (
	"errors"
	"fmt"
)

// Kind is a machine-readable error category. The HTTP layer maps each
// kind to a status code; clients branch on the kind string, never on
// the message text.
type Kind string

const (
	KindNotFound                  Kind = "NOT_FOUND"
	KindInvalidWindow             Kind = "INVALID_WINDOW"
	KindDurationOutOfRange        Kind = "DURATION_OUT_OF_RANGE"
	KindInsufficientAdvanceNotice Kind = "INSUFFICIENT_ADVANCE_NOTICE"
	KindRescheduleWindowClosed    Kind = "RESCHEDULE_WINDOW_CLOSED"
	KindNotesTooLong              Kind = "NOTES_TOO_LONG"
	KindCannotModifyCancelled     Kind = "CANNOT_MODIFY_CANCELLED"
	KindCannotModifyCompleted     Kind = "CANNOT_MODIFY_COMPLETED"
	KindConflict                  Kind = "CONFLICT"
	KindConcurrencyConflict       Kind = "CONCURRENCY_CONFLICT"
	KindInvalidRequest            Kind = "INVALID_REQUEST"
	KindInternal                  Kind = "INTERNAL"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches two AppErrors by kind, so callers can use
// errors.Is(err, apperrors.Conflict("")) style checks.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// As is errors.As, re-exported so callers of this package do not need
// a second errors import.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// KindOf returns the kind of err, or KindInternal when err carries no
// AppError in its chain. A nil err has no kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// IsKind reports whether err's chain contains an AppError of kind k.
func IsKind(err error, k Kind) bool {
	var ae *AppError
	return errors.As(err, &ae) && ae.Kind == k
}

// Error constructors
func NotFound(resource string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func InvalidWindow(message string) *AppError {
	return &AppError{Kind: KindInvalidWindow, Message: message}
}

func DurationOutOfRange(message string) *AppError {
	return &AppError{Kind: KindDurationOutOfRange, Message: message}
}

func InsufficientAdvanceNotice(message string) *AppError {
	return &AppError{Kind: KindInsufficientAdvanceNotice, Message: message}
}

func RescheduleWindowClosed(message string) *AppError {
	return &AppError{Kind: KindRescheduleWindowClosed, Message: message}
}

func NotesTooLong(message string) *AppError {
	return &AppError{Kind: KindNotesTooLong, Message: message}
}

func CannotModifyCancelled() *AppError {
	return &AppError{
		Kind:    KindCannotModifyCancelled,
		Message: "appointment is cancelled and can no longer be modified",
	}
}

func CannotModifyCompleted() *AppError {
	return &AppError{
		Kind:    KindCannotModifyCompleted,
		Message: "appointment is completed and can no longer be modified",
	}
}

func Conflict(message string) *AppError {
	return &AppError{Kind: KindConflict, Message: message}
}

func ConcurrencyConflict() *AppError {
	return &AppError{
		Kind:    KindConcurrencyConflict,
		Message: "appointment was modified concurrently, retry the operation",
	}
}

func InvalidRequest(message string, err error) *AppError {
	return &AppError{Kind: KindInvalidRequest, Message: message, Err: err}
}

func Internal(err error) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Message: "internal server error",
		Err:     err,
	}
}
