// Package daemonerr implements ticosd's structured error taxonomy (spec §7):
// config errors, transient vs. permanent network errors, filesystem errors,
// IPC errors, and rate-limit rejections. Adapted from the teacher's
// errors.go, which carries the same {Op, Code, Inner} shape for its own
// device-error taxonomy.
package daemonerr

import "fmt"

// Code is a high-level error category from the spec §7 taxonomy.
type Code string

const (
	// CodeConfig covers a missing required key or malformed JSON. Fatal at
	// startup, non-fatal at reload (the caller keeps the prior snapshot).
	CodeConfig Code = "config error"

	// CodeNetworkRetry covers transport errors, 5xx, 408, and 429 — the
	// caller should back off and retry, retaining the record at queue head.
	CodeNetworkRetry Code = "transient network error"

	// CodeNetworkTerminal covers non-retry 4xx responses or a malformed
	// server response — the caller should drop the record.
	CodeNetworkTerminal Code = "permanent network error"

	// CodeFilesystem covers queue I/O failures.
	CodeFilesystem Code = "filesystem error"

	// CodeIPC covers an unknown tag or a short/malformed IPC message.
	CodeIPC Code = "ipc error"

	// CodeRateLimited covers a rate-limit rejection of an event.
	CodeRateLimited Code = "rate limited"
)

// Error is ticosd's structured error type: an operation name, a category,
// and an optional wrapped cause.
type Error struct {
	Op    string // operation that failed, e.g. "queue.write", "upload.commit"
	Code  Code
	Msg   string
	Inner error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Op != "" {
		return fmt.Sprintf("ticosd: %s: %s (%s)", e.Op, msg, e.Code)
	}
	return fmt.Sprintf("ticosd: %s", msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is supports errors.Is comparison by Code, the way callers check "was this
// a retryable network error" without caring about the op or message.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// New creates a structured error with no wrapped cause.
func New(op string, code Code, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// Wrap attaches an operation name and category to an existing error. The
// result always carries code, even when inner is already a *Error.
func Wrap(op string, code Code, inner error) *Error {
	if inner == nil {
		return nil
	}
	return &Error{Op: op, Code: code, Msg: inner.Error(), Inner: inner}
}

// IsRetryable reports whether err represents a condition where the caller
// should back off and retry rather than discard the record.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Code == CodeNetworkRetry
}
