package gateway

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes gateway failures. It is the only failure vocabulary that
// crosses the gateway boundary.
type Kind string

const (
	// KindStoreUnavailable covers transport, auth and backend faults.
	// Recoverable by an explicit retry.
	KindStoreUnavailable Kind = "STORE_UNAVAILABLE"

	// KindNotFound means the target entity no longer exists.
	// Callers should refresh their view.
	KindNotFound Kind = "NOT_FOUND"

	// KindValidationFailed means required fields were missing. Produced by
	// strategies before a gateway call, never by a gateway itself.
	KindValidationFailed Kind = "VALIDATION_FAILED"
)

// Kinds lists every failure kind.
var Kinds = []Kind{KindStoreUnavailable, KindNotFound, KindValidationFailed}

// ParseKind converts a kind name (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown failure kind %q", s)
}

// Error is the uniform failure returned by every gateway operation.
//
// It deliberately has no Unwrap: backend errors are logged where they are
// translated and never exposed to callers.
type Error struct {
	// Kind identifies the failure category.
	Kind Kind

	// Op is the gateway operation: list, create, update or delete.
	Op string

	// ID is the target entity id, if any.
	ID string

	// Message is a human-readable description.
	Message string

	// Fields lists the offending fields for validation failures.
	Fields []string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s: %s %s: %s", e.Kind, e.Op, e.ID, e.Message)
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Is matches another *Error with the same Kind, so errors.Is(err,
// &Error{Kind: KindNotFound}) works regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// NewUnavailable creates a StoreUnavailable failure.
func NewUnavailable(op, id, message string) *Error {
	return &Error{Kind: KindStoreUnavailable, Op: op, ID: id, Message: message}
}

// NewNotFound creates a NotFound failure for id.
func NewNotFound(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, ID: id, Message: "user not found"}
}

// NewValidationFailed creates a ValidationFailed failure naming the missing
// fields.
func NewValidationFailed(op, id string, fields []string) *Error {
	msg := "validation failed"
	if len(fields) > 0 {
		msg = "required fields missing: " + strings.Join(fields, ", ")
	}
	return &Error{Kind: KindValidationFailed, Op: op, ID: id, Message: msg, Fields: fields}
}

// AsError returns err as a gateway *Error. Anything else, including
// context errors, becomes a StoreUnavailable failure so that callers only
// ever see the taxonomy. Returns nil for a nil err.
func AsError(op, id string, err error) *Error {
	if err == nil {
		return nil
	}
	var ge *Error
	if errors.As(err, &ge) {
		return ge
	}
	return NewUnavailable(op, id, err.Error())
}

// KindOf returns the failure kind of err, or "" if err is not a gateway
// failure. Uses errors.As to handle wrapped errors.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// IsNotFound returns true if err is a NotFound failure.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsStoreUnavailable returns true if err is a StoreUnavailable failure.
func IsStoreUnavailable(err error) bool {
	return KindOf(err) == KindStoreUnavailable
}

// IsValidationFailed returns true if err is a ValidationFailed failure.
func IsValidationFailed(err error) bool {
	return KindOf(err) == KindValidationFailed
}
