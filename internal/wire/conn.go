package wire

import (
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// readBufSize is the chunk size used to refill the internal read buffer.
// Sized generously relative to a single control message so that a fd
// passed alongside a small HTTP_INI body almost always arrives in the
// same recvmsg call as its framing bytes.
const readBufSize = 4096

// Conn wraps a control-channel *net.UnixConn with framed message read/write
// and SCM_RIGHTS file descriptor passing. Only HTTP_INI messages carry a
// descriptor; every other message is pure bytes.
//
// Conn is not safe for concurrent use; the engine's single-goroutine
// multiplexer is the only caller.
type Conn struct {
	uc *net.UnixConn

	rbuf    []byte // buffered, as-yet-undecoded bytes
	fdQueue []*os.File
}

// NewConn wraps an established unix-domain control socket.
func NewConn(uc *net.UnixConn) *Conn {
	return &Conn{uc: uc}
}

// RawFD returns the underlying socket's descriptor for use in the engine's
// poll set. The descriptor remains owned by the Conn; callers must not
// close it directly.
func (c *Conn) RawFD() (uintptr, error) {
	sc, err := c.uc.SyscallConn()
	if err != nil {
		return 0, err
	}

	var fd uintptr
	ctrlErr := sc.Control(func(raw uintptr) {
		fd = raw
	})
	if ctrlErr != nil {
		return 0, ctrlErr
	}
	return fd, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.uc.Close()
}

// WriteMessage frames and writes one outbound message with no attached
// file descriptor (every engine-to-parent message kind).
func (c *Conn) WriteMessage(tag Tag, body []byte) error {
	var hdr [frameHeaderSize]byte
	putHeader(hdr[:], len(body), tag)

	full := make([]byte, 0, len(hdr)+len(body))
	full = append(full, hdr[:]...)
	full = append(full, body...)

	_, _, err := c.uc.WriteMsgUnix(full, nil, nil)
	return err
}

// ReadMessage reads the next framed message from the control channel,
// returning its tag, decoded body, and (for HTTP_INI) the file descriptor
// passed alongside it.
func (c *Conn) ReadMessage() (tag Tag, body []byte, fd *os.File, err error) {
	hdr, err := c.readExactly(frameHeaderSize)
	if err != nil {
		return 0, nil, nil, err
	}
	bodyLen, tag := parseHeader(hdr)

	body, err = c.readExactly(bodyLen)
	if err != nil {
		return 0, nil, nil, err
	}

	if tag == TagHTTPIni {
		if len(c.fdQueue) == 0 {
			return 0, nil, nil, fmt.Errorf("wire: HTTP_INI received with no accompanying descriptor")
		}
		fd = c.fdQueue[0]
		c.fdQueue = c.fdQueue[1:]
	}

	return tag, body, fd, nil
}

// WriteHTTPIni is the parent-side helper (used by test fixtures and the
// fake-parent harness) for sending HTTP_INI with an attached descriptor.
func (c *Conn) WriteHTTPIni(sessionID uint32, f *os.File) error {
	enc := NewEncoder()
	enc.PutUint32(sessionID)
	body := enc.Bytes()

	var hdr [frameHeaderSize]byte
	putHeader(hdr[:], len(body), TagHTTPIni)

	full := make([]byte, 0, len(hdr)+len(body))
	full = append(full, hdr[:]...)
	full = append(full, body...)

	oob := unix.UnixRights(int(f.Fd()))
	_, _, err := c.uc.WriteMsgUnix(full, oob, nil)
	return err
}

// readExactly returns the next n bytes, refilling the internal buffer via
// ReadMsgUnix (and queueing any file descriptors received along the way)
// as needed.
func (c *Conn) readExactly(n int) ([]byte, error) {
	for len(c.rbuf) < n {
		if err := c.fill(); err != nil {
			return nil, err
		}
	}
	out := c.rbuf[:n]
	c.rbuf = c.rbuf[n:]
	return out, nil
}

// fill performs one ReadMsgUnix call, appending data to the internal
// buffer and any received rights to the fd queue.
func (c *Conn) fill() error {
	data := make([]byte, readBufSize)
	oob := make([]byte, unix.CmsgSpace(4))

	n, oobn, _, _, err := c.uc.ReadMsgUnix(data, oob)
	if err != nil {
		return err
	}
	if n == 0 && oobn == 0 {
		return fmt.Errorf("wire: control channel closed")
	}

	c.rbuf = append(c.rbuf, data[:n]...)

	if oobn > 0 {
		scms, err := unix.ParseSocketControlMessage(oob[:oobn])
		if err != nil {
			return fmt.Errorf("wire: parsing control message: %w", err)
		}
		for _, scm := range scms {
			fds, err := unix.ParseUnixRights(&scm)
			if err != nil {
				return fmt.Errorf("wire: parsing unix rights: %w", err)
			}
			for _, rawFd := range fds {
				c.fdQueue = append(c.fdQueue, os.NewFile(uintptr(rawFd), "rrdp-transport"))
			}
		}
	}

	return nil
}
