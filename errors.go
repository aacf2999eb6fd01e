package dmxp

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/neerajchowdary889/DMXP-MPMC/internal/allocator"
	"github.com/neerajchowdary889/DMXP-MPMC/internal/region"
)

// ErrorCode is the closed taxonomy of error categories a Bus,
// Producer, or Consumer can report.
type ErrorCode string

const (
	ErrCodeInvalidInput     ErrorCode = "invalid input"
	ErrCodeNotFound         ErrorCode = "not found"
	ErrCodeAlreadyExists    ErrorCode = "already exists"
	ErrCodeOutOfMemory      ErrorCode = "out of memory"
	ErrCodeChannelFull      ErrorCode = "channel full"
	ErrCodeChannelEmpty     ErrorCode = "channel empty"
	ErrCodeTimeout          ErrorCode = "timeout"
	ErrCodeBrokenPipe       ErrorCode = "broken pipe"
	ErrCodePermissionDenied ErrorCode = "permission denied"
	ErrCodeInvalidData      ErrorCode = "invalid data"
	ErrCodeIOError          ErrorCode = "I/O error"
	ErrCodeClosed           ErrorCode = "closed"
)

// Error is the structured error type returned across the public API.
type Error struct {
	Op        string
	ChannelID uint32 // 0 with HasChannel false means "not applicable"
	HasChannel bool
	Code      ErrorCode
	Errno     syscall.Errno
	Msg       string
	Inner     error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.HasChannel {
		parts = append(parts, fmt.Sprintf("channel=%d", e.ChannelID))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("dmxp: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("dmxp: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Inner
}

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a structured error with no wrapped cause.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewChannelError builds a structured error scoped to one channel.
func NewChannelError(op string, channelID uint32, code ErrorCode, msg string) *Error {
	return &Error{Op: op, ChannelID: channelID, HasChannel: true, Code: code, Msg: msg}
}

// WrapError classifies and wraps inner as a structured *Error,
// mapping errors from internal/region and internal/allocator onto
// the public ErrorCode taxonomy, and passing through syscall errnos.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if e, ok := inner.(*Error); ok {
		return &Error{Op: op, ChannelID: e.ChannelID, HasChannel: e.HasChannel, Code: e.Code, Errno: e.Errno, Msg: e.Msg, Inner: e.Inner}
	}

	code := classify(inner)

	var errno syscall.Errno
	if e, ok := inner.(syscall.Errno); ok {
		errno = e
	}

	return &Error{Op: op, Code: code, Errno: errno, Msg: inner.Error(), Inner: inner}
}

func classify(err error) ErrorCode {
	switch {
	case errors.Is(err, region.ErrNotFound), errors.Is(err, allocator.ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, region.ErrAlreadyExists), errors.Is(err, allocator.ErrAlreadyExists):
		return ErrCodeAlreadyExists
	case errors.Is(err, region.ErrInvalidInput), errors.Is(err, allocator.ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, region.ErrInvalidData), errors.Is(err, allocator.ErrInvalidData):
		return ErrCodeInvalidData
	case errors.Is(err, region.ErrPermissionDenied):
		return ErrCodePermissionDenied
	case errors.Is(err, allocator.ErrOutOfMemory):
		return ErrCodeOutOfMemory
	default:
		return ErrCodeIOError
	}
}
