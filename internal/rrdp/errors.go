package rrdp

import (
	"errors"
	"fmt"
)

// Sentinel errors classifying the dispositions of spec §7. Session-level
// failures wrap one of these; ErrProtocolViolation is the only kind that
// is fatal to the whole engine rather than to a single session.
var (
	ErrParse             = errors.New("rrdp: malformed document")
	ErrHashMismatch      = errors.New("rrdp: content hash mismatch")
	ErrTransport         = errors.New("rrdp: transport error")
	ErrHTTPStatus        = errors.New("rrdp: unexpected http status")
	ErrBase64Decode      = errors.New("rrdp: base64 decode failure")
	ErrFileApplyFailed   = errors.New("rrdp: parent reported file apply failure")
	ErrProtocolViolation = errors.New("rrdp: protocol invariant violated")
)

// SessionError attributes a sentinel error to the session and operation
// that produced it: an Op tag plus an identifying key, wrapping a sentinel
// so callers can still errors.Is/errors.As against it.
type SessionError struct {
	Op        string
	SessionID uint32
	Task      Task
	Err       error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("rrdp: session %d: %s (task=%s): %v", e.SessionID, e.Op, e.Task, e.Err)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError wraps err with the session/operation context that
// produced it.
func NewSessionError(op string, sessionID uint32, task Task, err error) *SessionError {
	return &SessionError{Op: op, SessionID: sessionID, Task: task, Err: err}
}
