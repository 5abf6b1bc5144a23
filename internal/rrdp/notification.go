package rrdp

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
)

const maxVersion = 1

// npScope tracks where the parser currently sits inside the notification
// document, mirroring spec §4.3's element-scope state machine.
type npScope int

const (
	npScopeStart npScope = iota
	npScopeNotification
	npScopeSnapshot
	npScopePostSnapshot
	npScopeDelta
	npScopeEnd
)

// NotificationParser incrementally parses a notification.xml document
// (spec §4.3). Feed transport bytes as they arrive; Feed returns true once
// the document's closing tag has been consumed.
type NotificationParser struct {
	dec   chunkedDecoder
	scope npScope

	result       NotificationResult
	seenSerials  map[int64]bool
	repoSerial   int64 // deltas at or below this are discarded, not errors
	haveSnapshot bool
	done         bool
}

// NewNotificationParser creates a parser that will discard (without error)
// any delta whose serial is <= repoSerial, since such a delta can never be
// applied (spec §4.3 "superseded deltas").
func NewNotificationParser(repoSerial int64) *NotificationParser {
	return &NotificationParser{
		seenSerials: make(map[int64]bool),
		repoSerial:  repoSerial,
	}
}

// Feed supplies newly read bytes and advances the parse as far as possible.
// It returns (true, nil) once the document is fully parsed, (false, nil) if
// more bytes are needed, and a non-nil error wrapping ErrParse on any
// protocol violation (spec §4.3 "malformed notification").
func (p *NotificationParser) Feed(b []byte) (bool, error) {
	p.dec.Feed(b)
	for {
		tok, err := p.dec.Token()
		if err == errNeedMoreData {
			return false, nil
		}
		if err == io.EOF {
			return false, fmt.Errorf("%w: truncated notification document", ErrParse)
		}
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrParse, err)
		}

		done, perr := p.handleToken(tok)
		if perr != nil {
			return false, perr
		}
		if done {
			p.done = true
			return true, nil
		}
	}
}

// Close signals EOF on the underlying transport; a subsequent Feed(nil)
// that can't complete the document returns ErrParse for a truncated
// document rather than hanging forever.
func (p *NotificationParser) Close() {
	p.dec.Close()
}

// Result returns the fully parsed notification with deltas sorted
// ascending by serial. Valid only after Feed has returned (true, nil).
func (p *NotificationParser) Result() NotificationResult {
	sort.Slice(p.result.Deltas, func(i, j int) bool {
		return p.result.Deltas[i].Serial < p.result.Deltas[j].Serial
	})
	return p.result
}

func (p *NotificationParser) handleToken(tok xml.Token) (bool, error) {
	switch el := tok.(type) {
	case xml.StartElement:
		return false, p.handleStart(el)
	case xml.EndElement:
		return p.handleEnd(el)
	default:
		return false, nil
	}
}

func (p *NotificationParser) handleStart(el xml.StartElement) error {
	switch p.scope {
	case npScopeStart:
		if el.Name.Local != "notification" {
			return fmt.Errorf("%w: expected <notification>, got <%s>", ErrParse, el.Name.Local)
		}
		if err := p.parseNotificationAttrs(el); err != nil {
			return err
		}
		p.scope = npScopeNotification
		return nil

	case npScopeNotification, npScopePostSnapshot:
		switch el.Name.Local {
		case "snapshot":
			if p.haveSnapshot {
				return fmt.Errorf("%w: duplicate <snapshot> element", ErrParse)
			}
			if err := p.parseSnapshotAttrs(el); err != nil {
				return err
			}
			p.haveSnapshot = true
			p.scope = npScopeSnapshot
			return nil
		case "delta":
			if err := p.parseDeltaAttrs(el); err != nil {
				return err
			}
			p.scope = npScopeDelta
			return nil
		default:
			return fmt.Errorf("%w: unexpected element <%s> in notification", ErrParse, el.Name.Local)
		}

	default:
		return fmt.Errorf("%w: unexpected element <%s>", ErrParse, el.Name.Local)
	}
}

func (p *NotificationParser) handleEnd(el xml.EndElement) (bool, error) {
	switch p.scope {
	case npScopeSnapshot:
		if el.Name.Local != "snapshot" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		p.scope = npScopePostSnapshot
		return false, nil
	case npScopeDelta:
		if el.Name.Local != "delta" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		p.scope = npScopePostSnapshot
		return false, nil
	case npScopeNotification, npScopePostSnapshot:
		if el.Name.Local != "notification" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		if !p.haveSnapshot {
			return false, fmt.Errorf("%w: notification has no <snapshot>", ErrParse)
		}
		p.scope = npScopeEnd
		return true, nil
	default:
		return false, fmt.Errorf("%w: unexpected close tag </%s>", ErrParse, el.Name.Local)
	}
}

func (p *NotificationParser) parseNotificationAttrs(el xml.StartElement) error {
	var version string
	var sessionID string
	var serial string
	var haveXMLNS bool

	for _, a := range el.Attr {
		switch a.Name.Local {
		case "xmlns":
			haveXMLNS = true
		case "version":
			version = a.Value
		case "session_id":
			sessionID = a.Value
		case "serial":
			serial = a.Value
		default:
			return fmt.Errorf("%w: notification has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if !haveXMLNS {
		return fmt.Errorf("%w: notification missing xmlns", ErrParse)
	}
	v, err := strconv.Atoi(version)
	if err != nil || v < 1 || v > maxVersion {
		return fmt.Errorf("%w: notification has invalid version %q", ErrParse, version)
	}
	if sessionID == "" {
		return fmt.Errorf("%w: notification missing session_id", ErrParse)
	}
	s, err := strconv.ParseInt(serial, 10, 64)
	if err != nil || s < 1 {
		return fmt.Errorf("%w: notification has invalid serial %q", ErrParse, serial)
	}

	p.result.SessionID = sessionID
	p.result.Serial = s
	return nil
}

func (p *NotificationParser) parseSnapshotAttrs(el xml.StartElement) error {
	var uri, hashStr string
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "uri":
			uri = a.Value
		case "hash":
			hashStr = a.Value
		default:
			return fmt.Errorf("%w: <snapshot> has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if uri == "" {
		return fmt.Errorf("%w: <snapshot> missing uri", ErrParse)
	}
	hash, ok := ParseHash(hashStr)
	if !ok {
		return fmt.Errorf("%w: <snapshot> has invalid hash", ErrParse)
	}
	p.result.SnapshotURI = uri
	p.result.SnapshotHash = hash
	return nil
}

func (p *NotificationParser) parseDeltaAttrs(el xml.StartElement) error {
	var uri, hashStr, serialStr string
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "uri":
			uri = a.Value
		case "hash":
			hashStr = a.Value
		case "serial":
			serialStr = a.Value
		default:
			return fmt.Errorf("%w: <delta> has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if uri == "" {
		return fmt.Errorf("%w: <delta> missing uri", ErrParse)
	}
	hash, ok := ParseHash(hashStr)
	if !ok {
		return fmt.Errorf("%w: <delta> has invalid hash", ErrParse)
	}
	serial, err := strconv.ParseInt(serialStr, 10, 64)
	if err != nil || serial < 1 {
		return fmt.Errorf("%w: <delta> has invalid serial %q", ErrParse, serialStr)
	}

	if serial <= p.repoSerial {
		return nil // superseded, silently discarded
	}
	if p.seenSerials[serial] {
		return nil // duplicate serial, keep first occurrence; skipped without logging
	}
	p.seenSerials[serial] = true
	p.result.Deltas = append(p.result.Deltas, DeltaDescriptor{Serial: serial, URI: uri, Hash: hash})
	return nil
}
