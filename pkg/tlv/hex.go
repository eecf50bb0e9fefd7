package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

const upperHexDigits = "0123456789ABCDEF"

// Hex constructs a byte slice from a series of hex strings.
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	// Clean up spaces to allow format like "00 A4 04 00"
	cleanHex := strings.ReplaceAll(fullHex, " ", "")

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}

// EncodeUpper writes src into dst as uppercase hex and returns the number of
// characters written (2*len(src)). dst must hold at least 2*len(src) bytes.
func EncodeUpper(dst, src []byte) int {
	j := 0
	for _, b := range src {
		dst[j] = upperHexDigits[b>>4]
		dst[j+1] = upperHexDigits[b&0x0F]
		j += 2
	}
	return j
}

// EncodeUpperString returns src as an uppercase hex string.
func EncodeUpperString(src []byte) string {
	dst := make([]byte, 2*len(src))
	EncodeUpper(dst, src)
	return string(dst)
}

// DecodeLenient converts pairs of hex characters from src into bytes in dst and
// returns the number of bytes written. A trailing odd character is ignored and
// characters that are not hex digits decode as zero. dst may alias src, which
// allows in-place conversion of a modem reply.
func DecodeLenient(dst, src []byte) int {
	n := 0
	for i := 0; i+1 < len(src); i += 2 {
		dst[n] = nibble(src[i])<<4 | nibble(src[i+1])
		n++
	}
	return n
}

func nibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	default:
		return 0
	}
}
