package rrdp

import (
	"context"
	"fmt"
	"os"

	"github.com/marmos91/rrdpworker/internal/telemetry"
	"github.com/marmos91/rrdpworker/internal/wire"
	"github.com/marmos91/rrdpworker/pkg/metrics"
)

// sender is the parent-facing half of the protocol a Driver needs: every
// engine -> parent message kind (spec §4.6, §6). The engine's I/O
// multiplexer implements this over a *wire.Conn; tests implement it over an
// in-memory recorder.
type sender interface {
	SendHTTPReq(sessionID uint32, uri, lastMod string) error
	SendSession(sessionID uint32, newID string, newSerial int64, newLastMod string) error
	SendFile(sessionID uint32, rec DecodedPublish) error
	SendEnd(sessionID uint32, ok bool) error
}

// Driver holds the session table and drives each session's state machine
// (spec §4.1) in response to parent messages and parse completion. Driver
// itself does no I/O; the engine feeds it bytes and delivers control
// messages, and the Driver calls back into sender to talk to the parent.
type Driver struct {
	table *Table
	out   sender
}

// NewDriver creates a Driver over an empty session table.
func NewDriver(out sender) *Driver {
	return &Driver{table: NewTable(), out: out}
}

// Table exposes the underlying session table, e.g. for the engine's poll
// set construction.
func (d *Driver) Table() *Table {
	return d.table
}

// HandleStart creates a new session for a START message in state REQ
// (spec §4.1 "(none) -> REQ"). It does not itself issue the HTTP_REQ: a
// session only leaves REQ once DispatchPending finds it a slot within the
// concurrency cap (spec §5 backpressure, property 8) — with N slots
// already occupied, the new session parks until a peer retires.
func (d *Driver) HandleStart(ctx context.Context, msg wire.Start) error {
	repo := RepoState{
		HasState:  msg.RepoSessionID != "",
		SessionID: msg.RepoSessionID,
		Serial:    msg.RepoSerial,
		LastMod:   msg.RepoLastMod,
	}

	s := NewSession(ctx, msg.SessionID, msg.LocalLabel, msg.NotifyURI, repo)
	s.Ctx, s.Span = telemetry.StartSessionSpan(ctx, msg.SessionID, msg.LocalLabel, msg.NotifyURI)

	if !d.table.Insert(s) {
		s.Span.End()
		return NewSessionError("HandleStart", msg.SessionID, TaskNotification, ErrProtocolViolation)
	}
	metrics.SessionsActive.Set(float64(d.table.Len()))

	return nil
}

// DispatchPending issues HTTP_REQ for REQ-state sessions up to capacity
// (spec §5 "For every session in REQ, emit its next HTTP_REQ and
// transition to WAITING", bounded by the concurrency cap). Sessions beyond
// capacity remain parked in REQ with no poll slot until a WAITING/PARSING
// session retires. Called once per engine loop iteration.
func (d *Driver) DispatchPending(capacity int) error {
	active := 0
	var pending []*Session
	d.table.Each(func(s *Session) {
		switch s.State {
		case StateWaiting, StateParsing, StateParsed:
			active++
		case StateReq:
			pending = append(pending, s)
		}
	})

	for _, s := range pending {
		if active >= capacity {
			return nil
		}
		if err := d.requestCurrentTask(s); err != nil {
			return err
		}
		active++
	}
	return nil
}

// requestCurrentTask sends the HTTP_REQ appropriate to s's current Task and
// advances it to WAITING.
func (d *Driver) requestCurrentTask(s *Session) error {
	var uri, lastMod string

	switch s.Task {
	case TaskNotification:
		uri = s.NotifyURI
		lastMod = s.Repository.LastMod
	case TaskSnapshot:
		uri = s.NotifyResult.SnapshotURI
	case TaskDelta:
		uri = s.NotifyResult.Deltas[s.DeltaIndex].URI
	}

	s.State = StateWaiting
	return d.out.SendHTTPReq(s.ID, uri, lastMod)
}

// HandleHTTPIni attaches the parent-provided transport descriptor to the
// waiting session and starts its document parser (spec §4.1 "WAITING ->
// PARSING").
func (d *Driver) HandleHTTPIni(msg wire.HTTPIni, fd *os.File) error {
	s := d.table.Lookup(msg.SessionID)
	if s == nil {
		return fmt.Errorf("%w: HTTP_INI for unknown session %d", ErrProtocolViolation, msg.SessionID)
	}
	if s.State != StateWaiting {
		return NewSessionError("HandleHTTPIni", s.ID, s.Task, ErrProtocolViolation)
	}

	s.InFD = fd
	s.State = StateParsing
	d.beginParser(s)
	return nil
}

// beginParser constructs the document parser appropriate to s.Task and
// resets its incremental hash context, so the engine can start feeding
// bytes read from s.InFD.
func (d *Driver) beginParser(s *Session) {
	switch s.Task {
	case TaskNotification:
		// The notification document itself carries no hash attribute to
		// verify against (spec §4.3); HashCtx stays nil so VerifyHash is a
		// trivial pass once HTTP_FIN arrives.
		s.Notification = NewNotificationParser(s.Repository.Serial)
	case TaskSnapshot:
		s.Snapshot = NewSnapshotParser(s.NotifyResult.SessionID, s.NotifyResult.Serial, func(rec DecodedPublish) error {
			return d.emitFile(s, rec)
		})
		s.ResetHash(s.NotifyResult.SnapshotHash)
	case TaskDelta:
		delta := s.NotifyResult.Deltas[s.DeltaIndex]
		s.Delta = NewDeltaParser(s.NotifyResult.SessionID, delta.Serial, func(rec DecodedPublish) error {
			return d.emitFile(s, rec)
		})
		s.ResetHash(delta.Hash)
	}
}

// HandleHTTPFin is called once the engine has drained the session's
// transport fd to EOF and the parent has reported the fetch outcome (spec
// §4.1 "PARSING -> PARSED|ERROR"). HTTP 304 short-circuits straight to the
// NONE-equivalent outcome without any parsing.
func (d *Driver) HandleHTTPFin(msg wire.HTTPFin, parseErr error) error {
	s := d.table.Lookup(msg.SessionID)
	if s == nil {
		return fmt.Errorf("%w: HTTP_FIN for unknown session %d", ErrProtocolViolation, msg.SessionID)
	}

	s.Status = msg.HTTPStatus
	s.CloseInFD()

	if msg.HTTPStatus == 304 {
		return d.finishNotUpdated(s)
	}
	if msg.HTTPStatus != 200 {
		return d.fail(s, fmt.Errorf("%w: status %d", ErrHTTPStatus, msg.HTTPStatus))
	}
	if parseErr != nil {
		return d.fail(s, parseErr)
	}
	if !s.VerifyHash() {
		return d.fail(s, ErrHashMismatch)
	}

	s.Current.LastMod = msg.LastMod
	s.State = StateParsed
	return d.dispatchParsed(s)
}

// HandleFileAck records the parent's acknowledgement of a FILE message; once
// every outstanding FILE for a finalizing session has been acked, the
// deferred finalization (advance to the next delta, or emit SESSION+END) is
// allowed to run (spec §5 "at most one task in flight per session").
func (d *Driver) HandleFileAck(msg wire.FileAck) error {
	s := d.table.Lookup(msg.SessionID)
	if s == nil {
		return fmt.Errorf("%w: FILE_ACK for unknown session %d", ErrProtocolViolation, msg.SessionID)
	}
	if msg.Failed {
		s.FileFailed++
	}
	if s.FilePending > 0 {
		s.FilePending--
	}
	if s.FilePending == 0 && s.finalizer != nil {
		fn := s.finalizer
		s.finalizer = nil
		return fn()
	}
	return nil
}

// FeedDocument hands one chunk of bytes read from s.InFD to s's active
// parser and, for SNAPSHOT/DELTA tasks, its incremental hash (spec §4.7:
// hashing happens over raw transport bytes, independently of XML
// tokenization). It returns true once the document's closing tag has been
// consumed.
func (d *Driver) FeedDocument(s *Session, chunk []byte) (bool, error) {
	if s.HashCtx != nil {
		s.HashCtx.Write(chunk)
		metrics.BytesHashed.Add(float64(len(chunk)))
	}

	switch s.Task {
	case TaskNotification:
		done, err := s.Notification.Feed(chunk)
		if err != nil {
			return false, err
		}
		if done {
			s.NotifyResult = s.Notification.Result()
		}
		return done, nil
	case TaskSnapshot:
		return s.Snapshot.Feed(chunk)
	case TaskDelta:
		return s.Delta.Feed(chunk)
	default:
		return false, fmt.Errorf("%w: no active parser for task %v", ErrProtocolViolation, s.Task)
	}
}

// CloseDocument signals end-of-transport to s's active parser, so a
// truncated document is reported as ErrParse rather than silently hanging.
func (d *Driver) CloseDocument(s *Session) {
	switch s.Task {
	case TaskNotification:
		if s.Notification != nil {
			s.Notification.Close()
		}
	case TaskSnapshot:
		if s.Snapshot != nil {
			s.Snapshot.Close()
		}
	case TaskDelta:
		if s.Delta != nil {
			s.Delta.Close()
		}
	}
}

// dispatchParsed runs the task-specific transition once a document has
// parsed and hash-verified successfully.
func (d *Driver) dispatchParsed(s *Session) error {
	switch s.Task {
	case TaskNotification:
		return d.dispatchNotification(s)
	case TaskSnapshot:
		return d.deferOrFinalize(s, func() error { return d.finishSynced(s) })
	case TaskDelta:
		return d.deferOrFinalize(s, func() error { return d.advanceOrFinishDelta(s) })
	default:
		return fmt.Errorf("%w: unknown task", ErrProtocolViolation)
	}
}

// deferOrFinalize runs fn immediately if every FILE emitted for this
// document has already been acked, otherwise defers it until
// HandleFileAck drains FilePending to zero.
func (d *Driver) deferOrFinalize(s *Session, fn func() error) error {
	if s.FilePending == 0 {
		return fn()
	}
	s.finalizer = fn
	return nil
}

func (d *Driver) dispatchNotification(s *Session) error {
	decision := DecideNotification(s.Repository, s.NotifyResult)
	metrics.NotificationDecisions.WithLabelValues(decision.String()).Inc()
	if s.Span != nil {
		s.Span.SetAttributes(telemetry.Decision(decision.String()))
	}
	switch decision {
	case DecisionNone:
		return d.finishNotUpdated(s)
	case DecisionSnapshot:
		s.Task = TaskSnapshot
		return d.requestCurrentTask(s)
	case DecisionDeltas:
		s.Task = TaskDelta
		s.DeltaIndex = 0
		return d.requestCurrentTask(s)
	default: // DecisionError
		return d.fail(s, ErrProtocolViolation)
	}
}

func (d *Driver) advanceOrFinishDelta(s *Session) error {
	s.DeltaIndex++
	if s.DeltaIndex < len(s.NotifyResult.Deltas) {
		return d.requestCurrentTask(s)
	}
	return d.finishSynced(s)
}

// finishSynced emits SESSION + END(ok) and retires the session, used when
// a snapshot or the last delta in a chain parses cleanly. If any FILE for
// this session was acked failed, finalization itself fails instead (spec
// §4.1, §7: a rejected publish/withdraw makes the fetched state unusable
// even though the document parsed and hashed correctly).
func (d *Driver) finishSynced(s *Session) error {
	if s.FileFailed > 0 {
		return d.fail(s, ErrFileApplyFailed)
	}
	newSessionID := s.NotifyResult.SessionID
	newSerial := s.NotifyResult.Serial
	if err := d.out.SendSession(s.ID, newSessionID, newSerial, s.Current.LastMod); err != nil {
		return err
	}
	s.State = StateDone
	d.table.Remove(s.ID)
	metrics.SessionsActive.Set(float64(d.table.Len()))
	metrics.SessionsTotal.WithLabelValues("synced").Inc()
	d.endSpan(s, true)
	return d.out.SendEnd(s.ID, true)
}

// finishNotUpdated emits END(ok) with no SESSION, used for a NONE decision
// or a 304 response — the cache's existing state is already correct.
func (d *Driver) finishNotUpdated(s *Session) error {
	s.State = StateDone
	d.table.Remove(s.ID)
	metrics.SessionsActive.Set(float64(d.table.Len()))
	metrics.SessionsTotal.WithLabelValues("up_to_date").Inc()
	d.endSpan(s, true)
	return d.out.SendEnd(s.ID, true)
}

// fail retires a session with END(ok=false). A DELTA-task failure falls
// back to re-fetching the snapshot rather than giving up outright, since a
// single corrupt or unreachable delta should not make an otherwise healthy
// publication point unsyncable.
func (d *Driver) fail(s *Session, cause error) error {
	metrics.ParseErrors.WithLabelValues(s.Task.String()).Inc()

	if s.Task == TaskDelta {
		metrics.DeltaFallbacks.Inc()
		s.Task = TaskSnapshot
		s.State = StateReq
		s.FilePending, s.FileFailed = 0, 0
		return d.requestCurrentTask(s)
	}

	s.State = StateError
	d.table.Remove(s.ID)
	metrics.SessionsActive.Set(float64(d.table.Len()))
	metrics.SessionsTotal.WithLabelValues("error").Inc()
	d.endSpan(s, false)
	return d.out.SendEnd(s.ID, false)
}

// endSpan records the session's terminal outcome and ends its root span,
// started by HandleStart.
func (d *Driver) endSpan(s *Session, ok bool) {
	if s.Span == nil {
		return
	}
	s.Span.SetAttributes(telemetry.OK(ok))
	s.Span.End()
}

// emitFile sends one parsed publish/withdraw record to the parent and
// tracks it as pending acknowledgement. Called from the engine's parser
// callbacks as records are produced mid-document.
func (d *Driver) emitFile(s *Session, rec DecodedPublish) error {
	s.FilePending++
	metrics.FilesEmitted.WithLabelValues(publishTypeLabel(rec.Type)).Inc()
	return d.out.SendFile(s.ID, rec)
}

func publishTypeLabel(t PublishType) string {
	switch t {
	case PubAdd:
		return "add"
	case PubUpdate:
		return "update"
	case PubWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}
