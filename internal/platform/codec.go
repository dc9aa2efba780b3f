package platform

import (
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

// UTF16Codec decodes/encodes the little-endian UTF-16 code unit stream
// that a guest java/lang/String's backing char array holds, the
// encoding every WIPI/KTF handset in the corpus this targets used for
// its JVM string representation.
type UTF16Codec struct {
	enc *unicode.Encoding
}

// NewUTF16Codec returns the default TextCodec.
func NewUTF16Codec() *UTF16Codec {
	return &UTF16Codec{enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}
}

// Encode converts a Go string to packed little-endian UTF-16 bytes.
func (c *UTF16Codec) Encode(s string) ([]byte, error) {
	out, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("platform: encode utf16: %w", err)
	}
	return out, nil
}

// Decode converts packed little-endian UTF-16 bytes to a Go string.
func (c *UTF16Codec) Decode(b []byte) (string, error) {
	out, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("platform: decode utf16: %w", err)
	}
	return string(out), nil
}
