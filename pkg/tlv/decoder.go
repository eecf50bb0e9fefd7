package tlv

import (
	"errors"

	"github.com/gregLibert/sim-bootstrap/pkg/bits"
)

// DECODER:
// Decoder walks a BER encoded buffer with an explicit cursor. It covers what
// UICC file system metadata needs and nothing more:
//
//   - single identifier octet (tag numbers 0-30, no multi-byte tags),
//   - definite lengths, short form or long form with 1 to 3 length octets,
//   - primitive OCTET STRING values, returned as uppercase hex,
//   - nested constructs, walked by a caller supplied function.
//
// ERROR STATE:
// The first malformed header marks the decoder as failed. From then on every
// read fails and no byte is consumed, so a structural walker can ignore errors
// until the end of its walk and check Failed() once. A nested Sequence walk
// hands its failure back to the enclosing decoder.

// ErrMalformed is reported by Err once the decoder has failed.
var ErrMalformed = errors.New("malformed BER-TLV data")

const (
	headerMin       = 2
	maxLengthOctets = 3
)

// Decoder is a cursor over a BER-TLV buffer with a sticky failure flag.
type Decoder struct {
	buf    []byte
	offset int
	failed bool
}

// NewDecoder returns a decoder positioned at the start of buf.
func NewDecoder(buf []byte) *Decoder {
	return &Decoder{buf: buf}
}

// Header reads the tag and length of the next value and advances past them.
// The value itself is left for the caller to dispatch (OctetString, Sequence or
// Skip).
//
// Header returns ok=false without failing the decoder when fewer than two
// bytes remain, which is how the end of a buffer or sequence shows up. A
// multi-byte tag, more than three length octets, or a header/value running past
// the end fail the decoder.
func (d *Decoder) Header() (tag byte, length int, ok bool) {
	if d.failed || d.offset+headerMin > len(d.buf) {
		return 0, 0, false
	}

	pos := d.offset
	tag = d.buf[pos]
	first := d.buf[pos+1]
	pos += headerMin

	if bits.IsRangeSet(tag, 5, 1) {
		d.failed = true
		return 0, 0, false
	}

	length = int(first)
	if bits.IsSet(first, 8) {
		n := int(bits.GetRange(first, 7, 1))
		if n > maxLengthOctets || pos+n > len(d.buf) {
			d.failed = true
			return 0, 0, false
		}

		length = 0
		for _, b := range d.buf[pos : pos+n] {
			length = length<<8 | int(b)
		}
		pos += n
	}

	if pos+length > len(d.buf) {
		d.failed = true
		return 0, 0, false
	}

	d.offset = pos
	return tag, length, true
}

// OctetString consumes length bytes and returns them as uppercase hex.
// capacity is the room the caller has for the text plus a terminator, so the
// read fails when 2*length+1 exceeds it, which also rejects some lengths below
// capacity whose hex form would not fit.
func (d *Decoder) OctetString(length, capacity int) string {
	if d.failed {
		return ""
	}
	if length < 0 || 2*length+1 > capacity || d.offset+length > len(d.buf) {
		d.failed = true
		return ""
	}

	value := EncodeUpperString(d.buf[d.offset : d.offset+length])
	d.offset += length
	return value
}

// Sequence runs walk over the next length bytes with its own decoder, then
// advances past them. A failure inside walk fails d.
func (d *Decoder) Sequence(length int, walk func(*Decoder)) {
	if d.failed {
		return
	}
	if length < 0 || d.offset+length > len(d.buf) {
		d.failed = true
		return
	}

	sub := &Decoder{buf: d.buf[d.offset : d.offset+length]}
	walk(sub)

	d.offset += length
	d.failed = sub.failed
}

// Skip advances past length bytes the caller has no use for. Skipping past
// the end fails the decoder and parks the cursor at the end.
func (d *Decoder) Skip(length int) {
	if d.failed {
		return
	}
	if length < 0 || d.offset+length > len(d.buf) {
		d.failed = true
		d.offset = len(d.buf)
		return
	}
	d.offset += length
}

// Peek returns the next byte without consuming it.
func (d *Decoder) Peek() (byte, bool) {
	if d.failed || d.offset >= len(d.buf) {
		return 0, false
	}
	return d.buf[d.offset], true
}

// Offset returns the current cursor position.
func (d *Decoder) Offset() int { return d.offset }

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int { return len(d.buf) - d.offset }

// Failed reports whether a malformed header or read has been seen.
func (d *Decoder) Failed() bool { return d.failed }

// Err returns ErrMalformed once the decoder has failed, nil otherwise.
func (d *Decoder) Err() error {
	if d.failed {
		return ErrMalformed
	}
	return nil
}
