package rrdp

import (
	"context"
	"crypto/sha256"
	"hash"
	"os"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// State is a session's position in the driver's state machine (spec §4.1).
type State int

const (
	StateReq State = iota
	StateWaiting
	StateParsing
	StateParsed
	StateError
	StateDone
)

func (s State) String() string {
	switch s {
	case StateReq:
		return "REQ"
	case StateWaiting:
		return "WAITING"
	case StateParsing:
		return "PARSING"
	case StateParsed:
		return "PARSED"
	case StateError:
		return "ERROR"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// Task identifies which RRDP document kind is currently in flight.
type Task int

const (
	TaskNotification Task = iota
	TaskSnapshot
	TaskDelta
)

func (t Task) String() string {
	switch t {
	case TaskNotification:
		return "notification"
	case TaskSnapshot:
		return "snapshot"
	case TaskDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// Decision is the outcome of the notification decision function (§4.2).
type Decision int

const (
	DecisionNone Decision = iota
	DecisionSnapshot
	DecisionDeltas
	DecisionError
)

func (d Decision) String() string {
	switch d {
	case DecisionNone:
		return "none"
	case DecisionSnapshot:
		return "snapshot"
	case DecisionDeltas:
		return "deltas"
	case DecisionError:
		return "error"
	default:
		return "unknown"
	}
}

// RepoState is the two-part version identifier of a publication point plus
// the Last-Modified value the parent uses for conditional refetches.
type RepoState struct {
	HasState  bool // false on first sync, when there is no known-good state
	SessionID string
	Serial    int64
	LastMod   string
}

// DeltaDescriptor is one entry of a notification's delta list.
type DeltaDescriptor struct {
	Serial int64
	URI    string
	Hash   [32]byte
}

// NotificationResult is the fully parsed content of a notification
// document, ready for the decision function in decision.go.
type NotificationResult struct {
	SessionID    string
	Serial       int64
	SnapshotURI  string
	SnapshotHash [32]byte
	Deltas       []DeltaDescriptor // sorted ascending by Serial, no duplicates
}

// Session is one in-flight RRDP synchronization run, keyed by an opaque
// numeric id chosen by the parent (spec §3).
type Session struct {
	ID         uint32
	NotifyURI  string
	LocalLabel string

	Repository RepoState // the cache's known-good state coming into this run
	Current    RepoState // the state being discovered this run

	State State
	Task  Task

	InFD *os.File // present only while WAITING/PARSING/PARSED/ERROR

	FilePending int
	FileFailed  int

	Status int32 // last HTTP status reported by the parent for this session

	ExpectedHash [32]byte
	HashCtx      hash.Hash // incremental SHA-256, reset per document

	Notification *NotificationParser
	Snapshot     *SnapshotParser
	Delta        *DeltaParser

	// NotifyResult caches the parsed notification so the driver can
	// dispatch SNAPSHOT/DELTAS and, on delta failure, fall back to the
	// cached snapshot descriptor without re-fetching the notification.
	NotifyResult NotificationResult
	DeltaIndex   int // index into NotifyResult.Deltas for the delta in flight

	// finalizer, when non-nil, is run by the driver once FilePending drains
	// to zero — the deferred SESSION+END (or next-delta HTTP_REQ) for a
	// document whose FILE messages are still awaiting acknowledgement.
	finalizer func() error

	Ctx       context.Context
	Span      trace.Span
	StartedAt time.Time
}

// NewSession creates a session in state REQ with task NOTIFICATION, as
// driven by a START message (spec §4.1's "(none) -> REQ").
func NewSession(ctx context.Context, id uint32, localLabel, notifyURI string, repo RepoState) *Session {
	return &Session{
		ID:         id,
		NotifyURI:  notifyURI,
		LocalLabel: localLabel,
		Repository: repo,
		Current:    repo,
		State:      StateReq,
		Task:       TaskNotification,
		Ctx:        ctx,
		StartedAt:  time.Now(),
	}
}

// ResetHash starts a fresh incremental SHA-256 context for the next
// document and records its expected digest.
func (s *Session) ResetHash(expected [32]byte) {
	s.ExpectedHash = expected
	s.HashCtx = sha256.New()
}

// VerifyHash reports whether the bytes written to HashCtx since the last
// ResetHash match ExpectedHash.
func (s *Session) VerifyHash() bool {
	if s.HashCtx == nil {
		return true
	}
	var sum [32]byte
	copy(sum[:], s.HashCtx.Sum(nil))
	return sum == s.ExpectedHash
}

// CloseInFD closes and clears the session's transport descriptor, if any.
// Safe to call when InFD is nil.
func (s *Session) CloseInFD() {
	if s.InFD != nil {
		_ = s.InFD.Close()
		s.InFD = nil
	}
}
