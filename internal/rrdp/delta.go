package rrdp

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
)

type dpScope int

const (
	dpScopeStart dpScope = iota
	dpScopeDelta
	dpScopePublish
	dpScopeWithdraw
	dpScopeEnd
)

// DeltaParser incrementally parses a delta.xml document (spec §4.5),
// emitting a DecodedPublish via onPublish for every <publish> (PUB_ADD when
// no hash attribute is present, PUB_UPDATE when one is) and <withdraw>
// (PUB_WITHDRAW, no body) element as soon as its closing tag is consumed.
type DeltaParser struct {
	dec   chunkedDecoder
	scope dpScope

	expectSessionID string
	expectSerial    int64

	current   PublishRecord
	onPublish func(DecodedPublish) error
}

// NewDeltaParser creates a parser for the delta whose serial must equal
// expectSerial (spec §4.5 "serial must equal the expected next delta
// serial").
func NewDeltaParser(sessionID string, expectSerial int64, onPublish func(DecodedPublish) error) *DeltaParser {
	return &DeltaParser{
		expectSessionID: sessionID,
		expectSerial:    expectSerial,
		onPublish:       onPublish,
	}
}

func (p *DeltaParser) Feed(b []byte) (bool, error) {
	p.dec.Feed(b)
	for {
		tok, err := p.dec.Token()
		if err == errNeedMoreData {
			return false, nil
		}
		if err == io.EOF {
			return false, fmt.Errorf("%w: truncated delta document", ErrParse)
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

func (p *DeltaParser) Close() {
	p.dec.Close()
}

func (p *DeltaParser) handleToken(tok xml.Token) (bool, error) {
	switch el := tok.(type) {
	case xml.StartElement:
		return false, p.handleStart(el)
	case xml.EndElement:
		return p.handleEnd(el)
	case xml.CharData:
		if p.scope == dpScopePublish {
			p.current.AppendCharData([]byte(el))
		}
		return false, nil
	default:
		return false, nil
	}
}

func (p *DeltaParser) handleStart(el xml.StartElement) error {
	switch p.scope {
	case dpScopeStart:
		if el.Name.Local != "delta" {
			return fmt.Errorf("%w: expected <delta>, got <%s>", ErrParse, el.Name.Local)
		}
		if err := p.checkDeltaAttrs(el); err != nil {
			return err
		}
		p.scope = dpScopeDelta
		return nil

	case dpScopeDelta:
		switch el.Name.Local {
		case "publish":
			return p.startPublish(el)
		case "withdraw":
			return p.startWithdraw(el)
		default:
			return fmt.Errorf("%w: unexpected element <%s> in delta", ErrParse, el.Name.Local)
		}

	default:
		return fmt.Errorf("%w: unexpected element <%s>", ErrParse, el.Name.Local)
	}
}

func (p *DeltaParser) startPublish(el xml.StartElement) error {
	var uri, hashStr string
	var haveHash bool
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "uri":
			uri = a.Value
		case "hash":
			hashStr = a.Value
			haveHash = true
		default:
			return fmt.Errorf("%w: <publish> has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if uri == "" {
		return fmt.Errorf("%w: <publish> missing uri", ErrParse)
	}
	p.current = PublishRecord{Type: PubAdd, URI: uri}
	if haveHash {
		hash, ok := ParseHash(hashStr)
		if !ok {
			return fmt.Errorf("%w: <publish> has invalid hash", ErrParse)
		}
		p.current.Type = PubUpdate
		p.current.HasHash = true
		p.current.ExpectedHash = hash
	}
	p.scope = dpScopePublish
	return nil
}

func (p *DeltaParser) startWithdraw(el xml.StartElement) error {
	var uri, hashStr string
	for _, a := range el.Attr {
		switch a.Name.Local {
		case "uri":
			uri = a.Value
		case "hash":
			hashStr = a.Value
		default:
			return fmt.Errorf("%w: <withdraw> has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if uri == "" {
		return fmt.Errorf("%w: <withdraw> missing uri", ErrParse)
	}
	hash, ok := ParseHash(hashStr)
	if !ok {
		return fmt.Errorf("%w: <withdraw> missing or invalid hash", ErrParse)
	}
	p.current = PublishRecord{Type: PubWithdraw, URI: uri, HasHash: true, ExpectedHash: hash}
	p.scope = dpScopeWithdraw
	return nil
}

func (p *DeltaParser) handleEnd(el xml.EndElement) (bool, error) {
	switch p.scope {
	case dpScopePublish:
		if el.Name.Local != "publish" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		body, err := p.current.Finish()
		if err != nil {
			return false, err
		}
		if p.onPublish != nil {
			rec := DecodedPublish{
				Type:         p.current.Type,
				URI:          p.current.URI,
				HasHash:      p.current.HasHash,
				ExpectedHash: p.current.ExpectedHash,
				Body:         body,
			}
			if err := p.onPublish(rec); err != nil {
				return false, err
			}
		}
		p.scope = dpScopeDelta
		return false, nil

	case dpScopeWithdraw:
		if el.Name.Local != "withdraw" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		if p.onPublish != nil {
			rec := DecodedPublish{
				Type:         PubWithdraw,
				URI:          p.current.URI,
				HasHash:      true,
				ExpectedHash: p.current.ExpectedHash,
			}
			if err := p.onPublish(rec); err != nil {
				return false, err
			}
		}
		p.scope = dpScopeDelta
		return false, nil

	case dpScopeDelta:
		if el.Name.Local != "delta" {
			return false, fmt.Errorf("%w: mismatched close tag </%s>", ErrParse, el.Name.Local)
		}
		p.scope = dpScopeEnd
		return true, nil

	default:
		return false, fmt.Errorf("%w: unexpected close tag </%s>", ErrParse, el.Name.Local)
	}
}

func (p *DeltaParser) checkDeltaAttrs(el xml.StartElement) error {
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
			return fmt.Errorf("%w: delta has unrecognized attribute %q", ErrParse, a.Name.Local)
		}
	}
	if !haveXMLNS {
		return fmt.Errorf("%w: delta missing xmlns", ErrParse)
	}
	v, err := strconv.Atoi(version)
	if err != nil || v < 1 || v > maxVersion {
		return fmt.Errorf("%w: delta has invalid version %q", ErrParse, version)
	}
	if sessionID != p.expectSessionID {
		return fmt.Errorf("%w: delta session_id %q does not match notification", ErrParse, sessionID)
	}
	serial, err := strconv.ParseInt(serialStr, 10, 64)
	if err != nil || serial != p.expectSerial {
		return fmt.Errorf("%w: delta serial %q does not match expected serial", ErrParse, serialStr)
	}
	return nil
}
