package rrdp

import (
	"strings"
	"testing"
)

func feedAll(t *testing.T, feed func([]byte) (bool, error), doc string) {
	t.Helper()
	r := strings.NewReader(doc)
	buf := make([]byte, 7) // small chunks to exercise the incremental path
	for {
		n, err := r.Read(buf)
		if n > 0 {
			done, perr := feed(buf[:n])
			if perr != nil {
				t.Fatalf("feed error: %v", perr)
			}
			if done {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

const sampleNotification = `<notification xmlns="http://www.ripe.net/rpki/rrdp" version="1" session_id="9df4b597-af9e-4dca-a3e1-9c08bfc43c57" serial="3">
  <snapshot uri="https://rrdp.example.org/9df4.../3/snapshot.xml" hash="` + sampleHash + `"/>
  <delta serial="2" uri="https://rrdp.example.org/9df4.../2/delta.xml" hash="` + sampleHash + `"/>
  <delta serial="3" uri="https://rrdp.example.org/9df4.../3/delta.xml" hash="` + sampleHash + `"/>
</notification>`

const sampleHash = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestNotificationParser_Basic(t *testing.T) {
	p := NewNotificationParser(0)
	feedAll(t, p.Feed, sampleNotification)
	p.Close()

	res := p.Result()
	if res.SessionID != "9df4b597-af9e-4dca-a3e1-9c08bfc43c57" {
		t.Fatalf("unexpected session id %q", res.SessionID)
	}
	if res.Serial != 3 {
		t.Fatalf("unexpected serial %d", res.Serial)
	}
	if len(res.Deltas) != 2 || res.Deltas[0].Serial != 2 || res.Deltas[1].Serial != 3 {
		t.Fatalf("unexpected deltas %+v", res.Deltas)
	}
}

func TestNotificationParser_DiscardsSupersededDeltas(t *testing.T) {
	p := NewNotificationParser(2) // repo already at serial 2
	feedAll(t, p.Feed, sampleNotification)
	p.Close()

	res := p.Result()
	if len(res.Deltas) != 1 || res.Deltas[0].Serial != 3 {
		t.Fatalf("expected only serial 3 to survive, got %+v", res.Deltas)
	}
}

func TestNotificationParser_MissingXMLNS(t *testing.T) {
	doc := `<notification version="1" session_id="a" serial="1"><snapshot uri="u" hash="` + sampleHash + `"/></notification>`
	p := NewNotificationParser(0)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for missing xmlns")
	}
}

func TestNotificationParser_BadVersion(t *testing.T) {
	doc := `<notification xmlns="ns" version="2" session_id="a" serial="1"><snapshot uri="u" hash="` + sampleHash + `"/></notification>`
	p := NewNotificationParser(0)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for out-of-range version")
	}
}

func TestNotificationParser_MissingSnapshot(t *testing.T) {
	doc := `<notification xmlns="ns" version="1" session_id="a" serial="1"></notification>`
	p := NewNotificationParser(0)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for missing snapshot")
	}
}

func TestNotificationParser_RejectsUnrecognizedAttribute(t *testing.T) {
	doc := `<notification xmlns="ns" version="1" session_id="a" serial="1" foo="bar"><snapshot uri="u" hash="` + sampleHash + `"/></notification>`
	p := NewNotificationParser(0)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unrecognized attribute on <notification>")
	}
}

func TestNotificationParser_RejectsUnrecognizedSnapshotAttribute(t *testing.T) {
	doc := `<notification xmlns="ns" version="1" session_id="a" serial="1"><snapshot uri="u" hash="` + sampleHash + `" foo="bar"/></notification>`
	p := NewNotificationParser(0)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unrecognized attribute on <snapshot>")
	}
}
