package rrdp

import (
	"encoding/base64"
	"testing"
)

func TestSnapshotParser_EmitsPublishRecords(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("cert-bytes"))
	doc := `<snapshot xmlns="ns" version="1" session_id="sess-1" serial="3">
  <publish uri="https://rrdp.example.org/a.cer">` + payload + `</publish>
  <publish uri="https://rrdp.example.org/b.cer">` + payload + `</publish>
</snapshot>`

	var got []DecodedPublish
	p := NewSnapshotParser("sess-1", 3, func(rec DecodedPublish) error {
		got = append(got, rec)
		return nil
	})

	feedAll(t, p.Feed, doc)
	p.Close()

	if len(got) != 2 {
		t.Fatalf("expected 2 publish records, got %d", len(got))
	}
	for _, rec := range got {
		if rec.Type != PubAdd {
			t.Fatalf("expected PubAdd, got %v", rec.Type)
		}
		if string(rec.Body) != "cert-bytes" {
			t.Fatalf("unexpected decoded body %q", rec.Body)
		}
	}
}

func TestSnapshotParser_RejectsHashOnPublish(t *testing.T) {
	doc := `<snapshot xmlns="ns" version="1" session_id="sess-1" serial="3">
  <publish uri="u" hash="` + sampleHash + `">Zm9v</publish>
</snapshot>`

	p := NewSnapshotParser("sess-1", 3, nil)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for hash attribute on snapshot publish")
	}
}

func TestSnapshotParser_SessionMismatch(t *testing.T) {
	doc := `<snapshot xmlns="ns" version="1" session_id="other" serial="3"></snapshot>`
	p := NewSnapshotParser("sess-1", 3, nil)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for session_id mismatch")
	}
}

func TestSnapshotParser_SerialMismatch(t *testing.T) {
	doc := `<snapshot xmlns="ns" version="1" session_id="sess-1" serial="4"></snapshot>`
	p := NewSnapshotParser("sess-1", 3, nil)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for serial mismatch")
	}
}

func TestSnapshotParser_RejectsUnrecognizedAttribute(t *testing.T) {
	doc := `<snapshot xmlns="ns" version="1" session_id="sess-1" serial="3" foo="bar"></snapshot>`
	p := NewSnapshotParser("sess-1", 3, nil)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unrecognized attribute on <snapshot>")
	}
}

func TestSnapshotParser_RejectsUnrecognizedPublishAttribute(t *testing.T) {
	doc := `<snapshot xmlns="ns" version="1" session_id="sess-1" serial="3">
  <publish uri="u" foo="bar">Zm9v</publish>
</snapshot>`
	p := NewSnapshotParser("sess-1", 3, nil)
	_, err := p.Feed([]byte(doc))
	if err == nil {
		t.Fatal("expected error for unrecognized attribute on <publish>")
	}
}
