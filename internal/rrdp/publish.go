package rrdp

import (
	"bytes"
	"encoding/base64"

	"github.com/marmos91/rrdpworker/internal/wire"
)

// PublishType mirrors wire.PublishType; re-exported here so parser code
// that never touches the wire package directly can still speak in these
// terms (spec §3 "Publish record").
type PublishType = wire.PublishType

const (
	PubAdd      = wire.PubAdd
	PubUpdate   = wire.PubUpdate
	PubWithdraw = wire.PubWithdraw
)

// PublishRecord is a transient container for one <publish> or <withdraw>
// element while its body is being accumulated.
type PublishRecord struct {
	Type         PublishType
	URI          string
	HasHash      bool
	ExpectedHash [32]byte

	body bytes.Buffer // accumulated base64 text, decoded on Finish
}

// DecodedPublish is a publish/withdraw element after base64 decoding,
// handed to parser callbacks (spec §4.6 "publish emission").
type DecodedPublish struct {
	Type         PublishType
	URI          string
	HasHash      bool
	ExpectedHash [32]byte
	Body         []byte // empty for PUB_WITHDRAW
}

// AppendCharData appends a chunk of base64 character data, dropping a
// chunk that is exactly a single "\n" (spec §4.4/§4.5 character-data
// handling). The rule is applied per CharData token; chunkedDecoder returns
// whatever text is buffered when a read ends mid-run, so a run of text split
// across reads arrives as several tokens.
func (p *PublishRecord) AppendCharData(chunk []byte) {
	if len(chunk) == 1 && chunk[0] == '\n' {
		return
	}
	p.body.Write(chunk)
}

// Finish base64-decodes the accumulated body. Returns ErrBase64Decode on
// malformed input (spec §4.6).
func (p *PublishRecord) Finish() ([]byte, error) {
	clean := stripBase64Whitespace(p.body.Bytes())

	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(clean)))
	n, err := base64.StdEncoding.Decode(decoded, clean)
	if err != nil {
		return nil, ErrBase64Decode
	}
	return decoded[:n], nil
}

// stripBase64Whitespace removes the whitespace that real-world RRDP
// producers insert between base64 lines; the standard decoder rejects it
// outright otherwise.
func stripBase64Whitespace(b []byte) []byte {
	out := make([]byte, 0, len(b))
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			out = append(out, c)
		}
	}
	return out
}
