package graph

import (
	"errors"
	"fmt"

	"github.com/ssured/drawbot/internal/value"
)

// Error represents a failure reported by the graph or a replication peer.
//
// Errors include:
//   - Future data: an incoming state is ahead of the local clock
//   - Immutable: a write targeted a content-addressed snapshot
//   - Protocol: a peer sent an announcement that does not match its state
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Subject identifies the affected node, if any.
	Subject value.Subject

	// Prop is the affected property, if any.
	Prop string

	// State and Now carry the two clock readings of a future data error.
	State string
	Now   string
}

// ErrorCode categorizes graph errors.
type ErrorCode string

const (
	// ErrCodeFutureData indicates an incoming state is ahead of the clock.
	ErrCodeFutureData ErrorCode = "FUTURE_DATA"

	// ErrCodeImmutable indicates a write to an immutable subject.
	ErrCodeImmutable ErrorCode = "IMMUTABLE"

	// ErrCodeProtocol indicates a malformed or out-of-order peer message.
	ErrCodeProtocol ErrorCode = "PROTOCOL"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Subject) > 0 && e.Prop != "" {
		return fmt.Sprintf("%s: %s (subject=%s, prop=%s)", e.Code, e.Message, e.Subject, e.Prop)
	}
	if len(e.Subject) > 0 {
		return fmt.Sprintf("%s: %s (subject=%s)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}

// IsFutureData reports whether err is a future data error.
// Uses errors.As to handle wrapped errors.
func IsFutureData(err error) bool {
	return hasCode(err, ErrCodeFutureData)
}

// IsImmutable reports whether err is an immutability violation.
func IsImmutable(err error) bool {
	return hasCode(err, ErrCodeImmutable)
}

// IsProtocol reports whether err is a protocol error.
func IsProtocol(err error) bool {
	return hasCode(err, ErrCodeProtocol)
}

// NewFutureDataError creates an Error for a state ahead of the local clock.
func NewFutureDataError(subject value.Subject, prop, state, now string) *Error {
	return &Error{
		Code:    ErrCodeFutureData,
		Message: fmt.Sprintf("state %q is ahead of clock %q", state, now),
		Subject: subject,
		Prop:    prop,
		State:   state,
		Now:     now,
	}
}

// NewImmutableError creates an Error for a write to a frozen subject.
func NewImmutableError(subject value.Subject, prop string) *Error {
	return &Error{
		Code:    ErrCodeImmutable,
		Message: "cannot write to an immutable node",
		Subject: subject,
		Prop:    prop,
	}
}

// NewProtocolError creates an Error for a peer protocol violation.
func NewProtocolError(subject value.Subject, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeProtocol,
		Message: fmt.Sprintf(format, args...),
		Subject: subject,
	}
}
