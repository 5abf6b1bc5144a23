package wire

import (
	"net"
	"os"
	"path/filepath"
	"testing"
)

// unixConnPair returns two connected *net.UnixConn values backed by a
// listener on a temp-directory socket path, for tests that need a real
// unix-domain socket (fd passing only works over AF_UNIX).
func unixConnPair(t *testing.T) (client, server *net.UnixConn) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "control.sock")

	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("ListenUnix: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	accepted := make(chan *net.UnixConn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		c, err := l.AcceptUnix()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- c
	}()

	client, err = net.DialUnix("unix", nil, &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		t.Fatalf("DialUnix: %v", err)
	}

	select {
	case server = <-accepted:
	case err := <-acceptErr:
		t.Fatalf("AcceptUnix: %v", err)
	}

	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})

	return client, server
}

func TestConnWriteReadMessageNoFD(t *testing.T) {
	client, server := unixConnPair(t)

	parent := NewConn(client)
	engine := NewConn(server)

	req := HTTPReq{SessionID: 1, URI: "https://example/notification.xml"}
	if err := engine.WriteMessage(TagHTTPReq, req.Encode()); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}

	tag, body, fd, err := parent.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if tag != TagHTTPReq {
		t.Fatalf("expected tag %v, got %v", TagHTTPReq, tag)
	}
	if fd != nil {
		t.Fatal("expected no fd for HTTP_REQ")
	}

	got, err := DecodeHTTPReq(body)
	if err != nil {
		t.Fatalf("DecodeHTTPReq: %v", err)
	}
	if got != req {
		t.Fatalf("expected %+v, got %+v", req, got)
	}
}

func TestConnHTTPIniPassesFD(t *testing.T) {
	client, server := unixConnPair(t)

	parent := NewConn(client)
	engine := NewConn(server)

	tmp, err := os.CreateTemp(t.TempDir(), "transport")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer tmp.Close()
	if _, err := tmp.WriteString("payload-bytes"); err != nil {
		t.Fatalf("WriteString: %v", err)
	}
	if _, err := tmp.Seek(0, 0); err != nil {
		t.Fatalf("Seek: %v", err)
	}

	if err := parent.WriteHTTPIni(5, tmp); err != nil {
		t.Fatalf("WriteHTTPIni: %v", err)
	}

	tag, body, fd, err := engine.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if tag != TagHTTPIni {
		t.Fatalf("expected tag %v, got %v", TagHTTPIni, tag)
	}
	if fd == nil {
		t.Fatal("expected a file descriptor on HTTP_INI")
	}
	defer fd.Close()

	m, err := DecodeHTTPIni(body)
	if err != nil {
		t.Fatalf("DecodeHTTPIni: %v", err)
	}
	if m.SessionID != 5 {
		t.Fatalf("expected session id 5, got %d", m.SessionID)
	}

	buf := make([]byte, len("payload-bytes"))
	if _, err := fd.Read(buf); err != nil {
		t.Fatalf("reading passed fd: %v", err)
	}
	if string(buf) != "payload-bytes" {
		t.Fatalf("expected 'payload-bytes', got %q", buf)
	}
}

func TestConnReadMessageClosedConnection(t *testing.T) {
	client, server := unixConnPair(t)
	_ = client.Close()

	engine := NewConn(server)
	if _, _, _, err := engine.ReadMessage(); err == nil {
		t.Fatal("expected error reading from a closed peer")
	}
}
