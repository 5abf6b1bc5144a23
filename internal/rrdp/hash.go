package rrdp

import "encoding/hex"

// ParseHash decodes a lowercase-hex SHA-256 digest attribute value (spec
// §4.3/§4.4/§4.5 "hash" attributes) into a fixed 32-byte array. It rejects
// mixed-case and any length other than 64 hex characters.
func ParseHash(s string) ([32]byte, bool) {
	var out [32]byte
	if len(s) != 64 {
		return out, false
	}
	for _, r := range s {
		if !(r >= '0' && r <= '9') && !(r >= 'a' && r <= 'f') {
			return out, false
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != 32 {
		return out, false
	}
	copy(out[:], b)
	return out, true
}

// FormatHash renders a digest back to lowercase hex, the inverse of
// ParseHash.
func FormatHash(h [32]byte) string {
	return hex.EncodeToString(h[:])
}
