package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Encoder accumulates a message body using the protocol's primitive
// encodings: fixed-width little-endian integers and length-prefixed
// strings/byte slices with no padding.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder ready to accept fields.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// PutUint32 appends a little-endian uint32.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// PutInt64 appends a little-endian int64.
func (e *Encoder) PutInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	e.buf.Write(b[:])
}

// PutString appends a length-prefixed UTF-8 string. An empty string is
// encoded as a zero length with no following bytes.
func (e *Encoder) PutString(s string) {
	e.PutUint32(uint32(len(s)))
	e.buf.WriteString(s)
}

// PutBytes appends a length-prefixed byte slice.
func (e *Encoder) PutBytes(b []byte) {
	e.PutUint32(uint32(len(b)))
	e.buf.Write(b)
}

// Bytes returns the accumulated, unframed message body.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// Decoder reads fields out of a message body in the order they were
// written by an Encoder.
type Decoder struct {
	data []byte
	off  int
}

// NewDecoder wraps a message body for sequential field decoding.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

func (d *Decoder) need(n int) error {
	if d.off+n > len(d.data) {
		return fmt.Errorf("wire: short message: need %d bytes, have %d", n, len(d.data)-d.off)
	}
	return nil
}

// Uint32 decodes a little-endian uint32.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.off : d.off+4])
	d.off += 4
	return v, nil
}

// Int64 decodes a little-endian int64.
func (d *Decoder) Int64() (int64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.off : d.off+8])
	d.off += 8
	return int64(v), nil
}

// String decodes a length-prefixed UTF-8 string.
func (d *Decoder) String() (string, error) {
	n, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.data[d.off : d.off+int(n)])
	d.off += int(n)
	return s, nil
}

// Bytes decodes a length-prefixed byte slice. The returned slice aliases
// the decoder's backing array and must be copied if retained past the
// next decode call on this Decoder's source buffer.
func (d *Decoder) Bytes() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	if err := d.need(int(n)); err != nil {
		return nil, err
	}
	b := d.data[d.off : d.off+int(n)]
	d.off += int(n)
	return b, nil
}

// FixedBytes decodes exactly n raw bytes with no length prefix (used for
// the 32-byte SHA-256 expected-hash field).
func (d *Decoder) FixedBytes(n int) ([]byte, error) {
	if err := d.need(n); err != nil {
		return nil, err
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

// Done reports whether every byte of the message body has been consumed.
func (d *Decoder) Done() bool {
	return d.off == len(d.data)
}

// frameHeaderSize is the on-wire size of the length+tag header that
// precedes every message body.
const frameHeaderSize = 8

// putHeader encodes a [u32 bodyLen][u32 tag] header into hdr, which must
// be at least frameHeaderSize bytes long.
func putHeader(hdr []byte, bodyLen int, tag Tag) {
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(bodyLen))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(tag))
}

// parseHeader decodes a header previously written by putHeader.
func parseHeader(hdr []byte) (bodyLen int, tag Tag) {
	bodyLen = int(binary.LittleEndian.Uint32(hdr[0:4]))
	tag = Tag(binary.LittleEndian.Uint32(hdr[4:8]))
	return bodyLen, tag
}

// WriteFrame writes a length-prefixed, tagged frame to a plain io.Writer:
// [u32 bodyLen][u32 tag][body]. Used by collaborators (and tests) that
// don't need fd passing and so don't need a *net.UnixConn.
func WriteFrame(w io.Writer, tag Tag, body []byte) error {
	var hdr [frameHeaderSize]byte
	putHeader(hdr[:], len(body), tag)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}

// ReadFrame reads one length-prefixed, tagged frame from a plain
// io.Reader (no fd passing).
func ReadFrame(r io.Reader) (tag Tag, body []byte, err error) {
	var hdr [frameHeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	bodyLen, tag := parseHeader(hdr[:])
	body = make([]byte, bodyLen)
	if bodyLen > 0 {
		if _, err := io.ReadFull(r, body); err != nil {
			return 0, nil, err
		}
	}
	return tag, body, nil
}
