package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so the request layer can map it to a transport status.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindForbidden         Kind = "forbidden"
	KindInvalidTransition Kind = "invalid_transition"
	KindInsufficientFunds Kind = "insufficient_funds"
	KindAlreadySettled    Kind = "already_settled"
	KindExpired           Kind = "expired"
	KindLimitExceeded     Kind = "limit_exceeded"
	KindConflict          Kind = "conflict"
	KindInternal          Kind = "internal"
)

var (
	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")
	// ErrBookingNotFound is returned when a referenced booking does not exist.
	ErrBookingNotFound = errors.New("booking not found")
	// ErrLessonNotFound is returned when a referenced lesson does not exist.
	ErrLessonNotFound = errors.New("lesson not found")
	// ErrQuizNotFound indicates the quiz content could not be loaded.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRewardNotFound is returned when a referenced reward does not exist.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrClassroomNotFound is returned for unknown classroom ids or join codes.
	ErrClassroomNotFound = errors.New("classroom not found")

	ErrInsufficientPoints  = errors.New("not enough points")
	ErrInvalidProvider     = errors.New("invalid provider")
	ErrProviderUnavailable = errors.New("provider is not available")
	ErrInvalidSchedule     = errors.New("meeting time must be in the future")
	ErrForbidden           = errors.New("not allowed to act on this resource")
	ErrInvalidTransition   = errors.New("transition not allowed from current status")
	ErrMaxAttemptsExceeded = errors.New("maximum quiz attempts reached")
	ErrAlreadySettled      = errors.New("reward already settled")
	ErrRewardExpired       = errors.New("reward expired")
	ErrEmailTaken          = errors.New("an account with this email already exists")
	ErrAlreadyMember       = errors.New("already a member of this classroom")
	ErrNotMember           = errors.New("not a member of this classroom")
	ErrProgressNotFound    = errors.New("progress not found")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrDuplicate           = errors.New("duplicate record")
)

// Error is the structured failure returned by every core operation.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Fail wraps a condition sentinel with its kind and the failing operation.
func Fail(kind Kind, op string, err error) error {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &Error{Kind: kind, Op: op, Message: msg, Err: err}
}

// Invalid reports caller input that failed validation.
func Invalid(op, format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected storage or infrastructure fault.
func Internal(op string, err error) error {
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindInternal, Op: op, Message: "internal error", Err: err}
}

// KindOf extracts the failure kind; unclassified errors are internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// NotFound classifies a missing-entity sentinel.
func NotFound(err error) error {
	return &Error{Kind: KindNotFound, Message: err.Error(), Err: err}
}

// Conflict classifies a uniqueness failure raised by a store.
func Conflict(op string, err error) error {
	return &Error{Kind: KindConflict, Op: op, Message: ErrDuplicate.Error(), Err: errors.Join(ErrDuplicate, err)}
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
