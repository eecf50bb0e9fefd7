package tlv

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecoder_HeaderShortForm(t *testing.T) {
	for length := 0; length < 0x80; length++ {
		buf := make([]byte, 2+length)
		buf[0] = 0x04
		buf[1] = byte(length)

		d := NewDecoder(buf)
		tag, got, ok := d.Header()
		if !ok {
			t.Fatalf("Header() failed for length %d", length)
		}
		if tag != 0x04 || got != length {
			t.Errorf("Header() = (%02X, %d), want (04, %d)", tag, got, length)
		}
		if d.Offset() != 2 {
			t.Errorf("Offset() = %d after short header, want 2", d.Offset())
		}
	}
}

func TestDecoder_HeaderLongForm(t *testing.T) {
	tests := []struct {
		name       string
		lenOctets  []byte
		wantLength int
	}{
		{"1 octet", []byte{0x81, 0x80}, 0x80},
		{"1 octet small value", []byte{0x81, 0x05}, 0x05},
		{"2 octets", []byte{0x82, 0x01, 0x04}, 0x0104},
		{"3 octets", []byte{0x83, 0x00, 0x01, 0x02}, 0x0102},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := append([]byte{0x30}, tt.lenOctets...)
			buf = append(buf, make([]byte, tt.wantLength)...)

			d := NewDecoder(buf)
			tag, length, ok := d.Header()
			if !ok {
				t.Fatalf("Header() failed: %v", d.Err())
			}
			if tag != 0x30 || length != tt.wantLength {
				t.Errorf("Header() = (%02X, %d), want (30, %d)", tag, length, tt.wantLength)
			}
			if want := 1 + len(tt.lenOctets); d.Offset() != want {
				t.Errorf("Offset() = %d, want %d", d.Offset(), want)
			}
		})
	}
}

func TestDecoder_HeaderFailures(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"Extended tag short length", Hex("1F 01 00")},
		{"Extended tag long length", Hex("BF 81 01 00")},
		{"Extended tag zero length", Hex("FF 00")},
		{"Four length octets", Hex("04 84 00 00 00 01 AA")},
		{"Length octets past end", Hex("04 82 01")},
		{"Value past end", Hex("04 05 01 02")},
		{"Long form value past end", Hex("04 81 10 00")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.buf)
			if _, _, ok := d.Header(); ok {
				t.Fatal("Header() succeeded, want failure")
			}
			if !d.Failed() {
				t.Error("Failed() = false after malformed header")
			}
			if !errors.Is(d.Err(), ErrMalformed) {
				t.Errorf("Err() = %v, want ErrMalformed", d.Err())
			}
			if d.Offset() > len(tt.buf) {
				t.Errorf("Offset() = %d beyond buffer of %d", d.Offset(), len(tt.buf))
			}
		})
	}
}

func TestDecoder_EndOfData(t *testing.T) {
	d := NewDecoder(Hex("04"))
	if _, _, ok := d.Header(); ok {
		t.Fatal("Header() on a single byte succeeded")
	}
	if d.Failed() {
		t.Error("running out of data must not fail the decoder")
	}
}

func TestDecoder_StickyFailure(t *testing.T) {
	// A bad header followed by a valid one: nothing after the failure is read.
	d := NewDecoder(Hex("1F 00 04 02 64 30"))
	if _, _, ok := d.Header(); ok {
		t.Fatal("first Header() succeeded")
	}
	offset := d.Offset()

	if _, _, ok := d.Header(); ok {
		t.Error("Header() succeeded after failure")
	}
	if s := d.OctetString(2, 5); s != "" {
		t.Errorf("OctetString() after failure = %q", s)
	}
	d.Skip(1)
	d.Sequence(2, func(*Decoder) { t.Error("Sequence walk called after failure") })

	if d.Offset() != offset {
		t.Errorf("Offset() moved from %d to %d after failure", offset, d.Offset())
	}
	if _, ok := d.Peek(); ok {
		t.Error("Peek() succeeded after failure")
	}
}

func TestDecoder_OctetString(t *testing.T) {
	d := NewDecoder(Hex("04 02 64 30"))
	_, length, ok := d.Header()
	if !ok {
		t.Fatal("Header() failed")
	}

	if got := d.OctetString(length, 5); got != "6430" {
		t.Errorf("OctetString() = %q, want 6430", got)
	}
	if d.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", d.Remaining())
	}
}

func TestDecoder_OctetStringCapacity(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		ok       bool
	}{
		{"Exact fit", 5, true},
		{"Roomy", 17, true},
		{"No room for terminator", 4, false},
		{"Length equals capacity", 2, false},
		{"Length above capacity", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(Hex("64 30"))
			got := d.OctetString(2, tt.capacity)

			if tt.ok {
				if got != "6430" || d.Failed() {
					t.Errorf("OctetString() = %q failed=%v, want 6430", got, d.Failed())
				}
				return
			}
			if got != "" || !d.Failed() {
				t.Errorf("OctetString() = %q failed=%v, want failure", got, d.Failed())
			}
			if d.Offset() != 0 {
				t.Errorf("Offset() = %d after rejected read, want 0", d.Offset())
			}
		})
	}
}

func TestDecoder_Sequence(t *testing.T) {
	// A7 06 { 30 04 { 04 02 64 30 } } 05 00
	d := NewDecoder(Hex("A7 06 30 04 04 02 64 30 05 00"))

	var visited []string
	tag, length, ok := d.Header()
	if !ok || tag != 0xA7 {
		t.Fatalf("Header() = (%02X, %d, %v)", tag, length, ok)
	}

	d.Sequence(length, func(outer *Decoder) {
		for {
			tag, length, ok := outer.Header()
			if !ok {
				return
			}
			visited = append(visited, EncodeUpperString([]byte{tag}))
			outer.Sequence(length, func(inner *Decoder) {
				if _, length, ok := inner.Header(); ok {
					visited = append(visited, inner.OctetString(length, 5))
				}
			})
		}
	})

	if d.Offset() != 8 {
		t.Errorf("Offset() = %d after sequence, want 8", d.Offset())
	}

	tag, length, ok = d.Header()
	if !ok || tag != 0x05 || length != 0 {
		t.Errorf("trailing Header() = (%02X, %d, %v), want (05, 0, true)", tag, length, ok)
	}

	if diff := cmp.Diff([]string{"30", "6430"}, visited); diff != "" {
		t.Errorf("visited mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoder_SequencePropagatesFailure(t *testing.T) {
	d := NewDecoder(Hex("30 02 1F 00 04 00"))
	_, length, _ := d.Header()

	d.Sequence(length, func(sub *Decoder) {
		sub.Header()
	})

	if !d.Failed() {
		t.Fatal("sub-decoder failure not propagated")
	}
	if d.Offset() != 4 {
		t.Errorf("Offset() = %d, want 4 (past the sequence)", d.Offset())
	}
	if _, _, ok := d.Header(); ok {
		t.Error("Header() succeeded after propagated failure")
	}
}

func TestDecoder_Skip(t *testing.T) {
	d := NewDecoder(Hex("A5 03 01 02 03 A7 00"))
	_, length, _ := d.Header()
	d.Skip(length)

	tag, _, ok := d.Header()
	if !ok || tag != 0xA7 {
		t.Errorf("Header() after Skip = (%02X, %v), want A7", tag, ok)
	}

	d = NewDecoder(Hex("01 02"))
	d.Skip(3)
	if !d.Failed() || d.Offset() != 2 {
		t.Errorf("Skip past end: failed=%v offset=%d, want failed at 2", d.Failed(), d.Offset())
	}
}
