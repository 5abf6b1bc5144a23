package rrdp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
)

// errNeedMoreData signals that the buffered bytes do not yet contain a
// complete token; the caller should read more from the transport and Feed
// it in, then retry.
var errNeedMoreData = errors.New("rrdp: need more data")

// chunkedDecoder adapts the stdlib's pull-based, whole-reader
// encoding/xml.Decoder to the incremental, fed-as-it-arrives style the
// parsers need (spec §4.3/§4.4/§4.5 describe parsing driven by element-start,
// element-end and char-data callbacks as bytes come off the wire). Each Feed
// call appends newly read bytes to an internal buffer; Token re-decodes a
// fresh *xml.Decoder over whatever is buffered, returning errNeedMoreData
// when the decoder hits EOF mid-token rather than treating that as a parse
// failure. Bytes the underlying decoder has fully consumed are dropped from
// the buffer so it doesn't grow unboundedly across a multi-megabyte document.
// Tokens come from RawToken, so matching end tags to start tags is left to the
// parsers' scope checks; the end of a self-closing element is returned by the
// call after its start.
type chunkedDecoder struct {
	buf bytes.Buffer
	eof bool // true once the caller has signalled end of input

	pending *xml.EndElement // end of a self-closing element, returned next
}

// Feed appends newly read transport bytes to the decode buffer.
func (c *chunkedDecoder) Feed(b []byte) {
	c.buf.Write(b)
}

// Close signals that no further bytes will be fed; a subsequent Token call
// that still can't complete a token returns io.ErrUnexpectedEOF instead of
// errNeedMoreData.
func (c *chunkedDecoder) Close() {
	c.eof = true
}

// Token returns the next XML token from the buffered bytes, or
// errNeedMoreData if the buffer doesn't yet hold a complete one. Returned
// tokens are copied via xml.CopyToken since the buffer backing them is
// mutated on the next call.
func (c *chunkedDecoder) Token() (xml.Token, error) {
	if c.pending != nil {
		end := *c.pending
		c.pending = nil
		return end, nil
	}

	data := c.buf.Bytes()
	if len(data) == 0 {
		if c.eof {
			return nil, io.EOF
		}
		return nil, errNeedMoreData
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	tok, err := dec.RawToken()
	if err != nil {
		var syntaxErr *xml.SyntaxError
		if err == io.EOF || errors.As(err, &syntaxErr) && syntaxErr.Msg == "unexpected EOF" {
			if c.eof {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, errNeedMoreData
		}
		return nil, err
	}

	tok = xml.CopyToken(tok)
	off := int(dec.InputOffset())
	if start, ok := tok.(xml.StartElement); ok && bytes.HasSuffix(data[:off], []byte("/>")) {
		c.pending = &xml.EndElement{Name: start.Name}
	}
	c.buf.Next(off)
	return tok, nil
}
