package rrdp

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

type spScope int

const (
	spScopeStart spScope = iota
	spScopeSnapshot
	spScopePublish
	spScopeEnd
)

// SnapshotParser incrementally parses a snapshot.xml document (spec §4.4),
// emitting a PUB_ADD DecodedPublish via onPublish for every <publish>
// element as soon as its closing tag is consumed.
type SnapshotParser struct {
	dec   chunkedDecoder
	scope spScope

	expectSessionID string
	expectSerial    int64

	current   PublishRecord
	onPublish func(DecodedPublish) error
}

// NewSnapshotParser creates a parser that requires the document's
// session_id/serial to match the values the notification already committed
// to (spec §4.4 "must match the chosen session_id and serial").
func NewSnapshotParser(sessionID string, serial int64, onPublish func(DecodedPublish) error) *SnapshotParser {
	return &SnapshotParser{
		expectSessionID: sessionID,
		expectSerial:    serial,
		onPublish:       onPublish,
	}
}

func (p *SnapshotParser) Feed(b []byte) (bool, error) {
	p.dec.Feed(b)
	for {
		tok, err := p.dec.Token()
		if err == errNeedMoreData {
			return false, nil
		}
		if err == io.EOF {
			return false, fmt.Errorf("%w: truncated snapshot document", ErrParse)
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrParse, err)
		}

		done, perr := p.handleToken(tok)
		if perr != nil {
			return false, perr
		}
		if done {
			return true, nil
		}
	}
}

func (p *SnapshotParser) Close() {
	p.dec.Close()
}

func (p *SnapshotParser) handleToken(tok xml.Token) (bool, error) {
	switch el := tok.(type) {
	case xml.StartElement:
		return false, p.handleStart(el)
	case xml.EndElement:
		return p.handleEnd(el)
	case xml.CharData:
		if p.scope == spScopePublish {
			p.current.AppendCharData([]byte(el))
		}
		return false, nil
	default:
		return false, nil
	}
}

func (p *SnapshotParser) handleStart(el xml.StartElement) error {
	switch p.scope {
	case spScopeStart:
		if el.Name.Local != "snapshot" {
			return fmt.Errorf("%w: expected <snapshot>, got <%s>", ErrParse, el.Name.Local)
		}
		if err := p.checkSnapshotAttrs(el); err != nil {
			return err
		}
		p.scope = spScopeSnapshot
		return nil

	case spScopeSnapshot:
		if el.Name.Local != "publish" {
			return fmt.Errorf("%w: unexpected element <%s> in snapshot", ErrParse, el.Name.Local)
		}
		var uri string
		for _, a := range el.Attr {
			switch a.Name.Local {
			case "uri":
				uri = a.Value
			case "hash":
				return fmt.Errorf("%w: <publish> in snapshot must not carry a hash", ErrParse)
			default:
				return fmt.Errorf("%w: <publish> has unrecognized attribute %q", ErrParse, a.Name.Local)
			}
		}
		if uri == "" {
			return fmt.Errorf("%w: <publish> missing uri", ErrParse)
		}
		p.current = PublishRecord{Type: PubAdd, URI: uri}
		p.scope = spScopePublish
		return nil

	default:
		return fmt.Errorf("%w: unexpected element <%s>", ErrParse, el.Name.Local)
	}
}

func (p *SnapshotParser) handleEnd(el xml.EndElement) (bool, error) {
	switch p.scope {
	case spScopePublish:
		if el.Name.Local != "publish" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		body, err := p.current.Finish()
		if err != nil {
			return false, err
		}
		if p.onPublish != nil {
			rec := DecodedPublish{Type: p.current.Type, URI: p.current.URI, Body: body}
			if err := p.onPublish(rec); err != nil {
				return false, err
			}
		}
		p.scope = spScopeSnapshot
		return false, nil

	case spScopeSnapshot:
		if el.Name.Local != "snapshot" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		p.scope = spScopeEnd
		return true, nil

	default:
		return false, fmt.Errorf("%w: unexpected close tag </%s>", ErrParse, el.Name.Local)
	}
}

func (p *SnapshotParser) checkSnapshotAttrs(el xml.StartElement) error {
	var haveXMLNS bool
	var version, sessionID, serialStr string
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "xmlns":
			haveXMLNS = true
		case "version":
			version = a.Value
		case "session_id":
			sessionID = a.Value
		case "serial":
			serialStr = a.Value
		default:
			return fmt.Errorf("%w: snapshot has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if !haveXMLNS {
		return fmt.Errorf("%w: snapshot missing xmlns", ErrParse)
	}
	v, err := strconv.Atoi(version)
	if err != nil || v < 1 || v > maxVersion {
		return fmt.Errorf("%w: snapshot has invalid version %q", ErrParse, version)
	}
	if sessionID != p.expectSessionID {
		return fmt.Errorf("%w: snapshot session_id %q does not match notification", ErrParse, sessionID)
	}
	serial, err := strconv.ParseInt(serialStr, 10, 64)
	if err != nil || serial != p.expectSerial {
		return fmt.Errorf("%w: snapshot serial %q does not match notification", ErrParse, serialStr)
	}
	return nil
}
