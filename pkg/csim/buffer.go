package csim

import (
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

const (
	// RecordBufferMax is the buffer size holding a full 256 byte record as
	// reply hex: 2*256 data chars, 4 status word chars and a terminator.
	RecordBufferMax = 2*256 + 4 + 1

	// CloseBufferSize is the private buffer used by CloseChannel. It fits the
	// close command text and a bare status word reply.
	CloseBufferSize = 21
)

// Buffer is the working area of exchanges. Its size bounds both the AT
// command text (which must leave room for a terminator) and the reply hex
// (size-1 characters). After a successful exchange it holds the reply hex,
// status word included; ReadFile then decodes the payload in place so the
// leading bytes hold the binary file content.
type Buffer struct {
	data []byte
	n    int
}

// NewBuffer allocates a buffer of size bytes.
func NewBuffer(size int) *Buffer {
	return &Buffer{data: make([]byte, size)}
}

// WrapBuffer uses p as the buffer memory. On a successful read the binary
// content is left at the start of p.
func WrapBuffer(p []byte) *Buffer {
	return &Buffer{data: p}
}

// Cap returns the buffer size.
func (b *Buffer) Cap() int { return len(b.data) }

// Len returns the number of valid bytes (reply hex chars or decoded bytes).
func (b *Buffer) Len() int { return b.n }

// Bytes returns the valid part of the buffer.
func (b *Buffer) Bytes() []byte { return b.data[:b.n] }

func (b *Buffer) String() string { return string(b.data[:b.n]) }

// fitsText reports whether s plus a terminator fits the buffer.
func (b *Buffer) fitsText(s string) bool {
	return len(s) < len(b.data)
}

// setText stores s, which must fit as checked by fitsText.
func (b *Buffer) setText(s string) {
	b.n = copy(b.data, s)
}

// decodeHex converts the first hexLen hex chars in place and returns the
// number of bytes produced.
func (b *Buffer) decodeHex(hexLen int) int {
	if hexLen > b.n {
		hexLen = b.n
	}
	b.n = tlv.DecodeLenient(b.data, b.data[:hexLen])
	return b.n
}
