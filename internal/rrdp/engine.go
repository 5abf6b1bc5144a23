package rrdp

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/rrdpworker/internal/logger"
	"github.com/marmos91/rrdpworker/internal/wire"
	"golang.org/x/sys/unix"
)

// Engine is the single-threaded, poll-based I/O multiplexer (spec §4.7):
// one readiness loop over the control channel and every in-flight
// session's transport descriptor, with no goroutine per session.
type Engine struct {
	conn     *wire.Conn
	driver   *Driver
	cfg      EngineConfig
	docErr   map[uint32]error // parse outcome: nil once the document completes, else the failure; read at HTTP_FIN
	docEOF   map[uint32]bool
	shutdown bool
}

// NewEngine wires a Driver around conn, ready to Run.
func NewEngine(conn *wire.Conn, cfg EngineConfig) *Engine {
	e := &Engine{
		conn:   conn,
		cfg:    cfg,
		docErr: make(map[uint32]error),
		docEOF: make(map[uint32]bool),
	}
	e.driver = NewDriver(connSender{conn})
	return e
}

// Run drives the readiness loop until ctx is cancelled or the control
// channel is closed by the parent.
func (e *Engine) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.shutdown {
			return nil
		}

		if err := e.driver.DispatchPending(e.cfg.Concurrency); err != nil {
			return err
		}

		fds, sessionByIndex, err := e.buildPollSet()
		if err != nil {
			return err
		}

		n, err := unix.Poll(fds, 1000)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("rrdp: poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if fds[0].Revents&unix.POLLIN != 0 {
			if err := e.readControlMessage(ctx); err != nil {
				return err
			}
		}

		for i := 1; i < len(fds); i++ {
			if fds[i].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
				continue
			}
			s := sessionByIndex[i]
			if err := e.readSessionDocument(s); err != nil {
				logger.Error("session read failed", "session_id", s.ID, "error", err)
			}
		}
	}
}

// buildPollSet constructs the poll(2) descriptor set: index 0 is always the
// control channel, and one entry per session currently in PARSING state
// with an attached transport descriptor. DispatchPending is what actually
// enforces the concurrency cap, by holding REQ-state sessions back from
// ever reaching PARSING until a slot is free.
func (e *Engine) buildPollSet() ([]unix.PollFd, map[int]*Session, error) {
	controlFD, err := e.conn.RawFD()
	if err != nil {
		return nil, nil, err
	}

	fds := []unix.PollFd{{Fd: int32(controlFD), Events: unix.POLLIN}}
	sessionByIndex := make(map[int]*Session)

	e.driver.Table().Each(func(s *Session) {
		if s.State != StateParsing || s.InFD == nil {
			return
		}
		idx := len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(s.InFD.Fd()), Events: unix.POLLIN})
		sessionByIndex[idx] = s
	})

	return fds, sessionByIndex, nil
}

// readControlMessage reads and dispatches exactly one framed message from
// the parent.
func (e *Engine) readControlMessage(ctx context.Context) error {
	tag, body, fd, err := e.conn.ReadMessage()
	if err != nil {
		if err == io.EOF {
			e.shutdown = true
			return nil
		}
		return fmt.Errorf("rrdp: reading control message: %w", err)
	}

	switch tag {
	case wire.TagStart:
		msg, err := wire.DecodeStart(body)
		if err != nil {
			return err
		}
		return e.driver.HandleStart(ctx, msg)

	case wire.TagHTTPIni:
		msg, err := wire.DecodeHTTPIni(body)
		if err != nil {
			return err
		}
		return e.driver.HandleHTTPIni(msg, fd)

	case wire.TagHTTPFin:
		msg, err := wire.DecodeHTTPFin(body)
		if err != nil {
			return err
		}
		parseErr := e.docErr[msg.SessionID]
		delete(e.docErr, msg.SessionID)
		delete(e.docEOF, msg.SessionID)
		return e.driver.HandleHTTPFin(msg, parseErr)

	case wire.TagFileAck:
		msg, err := wire.DecodeFileAck(body)
		if err != nil {
			return err
		}
		return e.driver.HandleFileAck(msg)

	default:
		return fmt.Errorf("%w: unexpected tag %s from parent", ErrProtocolViolation, tag)
	}
}

// readSessionDocument reads one buffer's worth of document bytes from a
// session's transport descriptor and feeds it to the active parser. On EOF
// it records the parse outcome for HandleHTTPFin to pick up once the
// parent reports the fetch's HTTP status.
func (e *Engine) readSessionDocument(s *Session) error {
	if e.docEOF[s.ID] {
		return nil // already drained; waiting on HTTP_FIN
	}

	buf := make([]byte, e.cfg.ReadBufferSize.Uint64())
	n, err := s.InFD.Read(buf)
	if n > 0 {
		done, ferr := e.driver.FeedDocument(s, buf[:n])
		if ferr != nil {
			e.docErr[s.ID] = ferr
			e.docEOF[s.ID] = true
			return nil
		}
		if done {
			e.docErr[s.ID] = nil // complete; later bytes are still hashed
		}
	}
	if err != nil {
		e.driver.CloseDocument(s)
		if _, complete := e.docErr[s.ID]; !complete {
			_, ferr := e.driver.FeedDocument(s, nil)
			e.docErr[s.ID] = ferr
		}
		e.docEOF[s.ID] = true
	}
	return nil
}

// connSender adapts *wire.Conn to the driver's sender interface.
type connSender struct {
	conn *wire.Conn
}

func (c connSender) SendHTTPReq(sessionID uint32, uri, lastMod string) error {
	return c.conn.WriteMessage(wire.TagHTTPReq, wire.HTTPReq{SessionID: sessionID, URI: uri, LastMod: lastMod}.Encode())
}

func (c connSender) SendSession(sessionID uint32, newID string, newSerial int64, newLastMod string) error {
	return c.conn.WriteMessage(wire.TagSession, wire.Session{
		SessionID:  sessionID,
		NewID:      newID,
		NewSerial:  newSerial,
		NewLastMod: newLastMod,
	}.Encode())
}

func (c connSender) SendFile(sessionID uint32, rec DecodedPublish) error {
	return c.conn.WriteMessage(wire.TagFile, wire.File{
		SessionID:    sessionID,
		Type:         wire.PublishType(rec.Type),
		HasHash:      rec.HasHash,
		ExpectedHash: rec.ExpectedHash,
		URI:          rec.URI,
		Body:         rec.Body,
	}.Encode())
}

func (c connSender) SendEnd(sessionID uint32, ok bool) error {
	return c.conn.WriteMessage(wire.TagEnd, wire.End{SessionID: sessionID, OK: ok}.Encode())
}
