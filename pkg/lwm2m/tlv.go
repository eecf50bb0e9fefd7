/*
Package lwm2m decodes the OMA-TLV encoding (OMA-TS-LightweightM2M, clause
6.4.3) used by the LwM2M bootstrap configuration stored on a UICC.

Each entry starts with a type byte:

	bits 8-7  identifier type: 00 object instance, 01 resource instance,
	          10 multiple resource, 11 resource with value
	bit  6    identifier length: 0 = 8 bits, 1 = 16 bits
	bits 5-4  length type: 00 = length in bits 3-1, 01/10/11 = 8/16/24 bit
	          length field
	bits 3-1  length, when the length type is 00

followed by the identifier, the optional length field and the value. Object
instances and multiple resources hold nested entries.
*/
package lwm2m

import (
	"errors"
	"fmt"

	"github.com/gregLibert/sim-bootstrap/pkg/bits"
)

// ErrMalformed is returned for truncated or inconsistent TLV data.
var ErrMalformed = errors.New("lwm2m: malformed TLV")

// Kind is the identifier type of an entry.
type Kind uint8

const (
	ObjectInstance   Kind = 0b00
	ResourceInstance Kind = 0b01
	MultipleResource Kind = 0b10
	Resource         Kind = 0b11
)

func (k Kind) String() string {
	switch k {
	case ObjectInstance:
		return "Object Instance"
	case ResourceInstance:
		return "Resource Instance"
	case MultipleResource:
		return "Multiple Resource"
	case Resource:
		return "Resource"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// nested reports whether entries of kind k hold other entries.
func (k Kind) nested() bool {
	return k == ObjectInstance || k == MultipleResource
}

// Entry is one decoded TLV. Value is set for resources and resource
// instances, Children for object instances and multiple resources.
type Entry struct {
	Kind     Kind
	ID       uint16
	Value    []byte
	Children []Entry
}

// Decode parses a sequence of TLV entries. Values alias data.
func Decode(data []byte) ([]Entry, error) {
	var entries []Entry
	for offset := 0; offset < len(data); {
		entry, n, err := decodeEntry(data[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry at offset %d: %w", offset, err)
		}
		entries = append(entries, entry)
		offset += n
	}
	return entries, nil
}

func decodeEntry(b []byte) (Entry, int, error) {
	typ := b[0]
	entry := Entry{Kind: Kind(bits.GetRange(typ, 8, 7))}

	idLen := 1
	if bits.IsSet(typ, 6) {
		idLen = 2
	}
	lengthLen := int(bits.GetRange(typ, 5, 4))

	pos := 1
	if len(b) < pos+idLen+lengthLen {
		return Entry{}, 0, fmt.Errorf("%w: header of %d bytes truncated", ErrMalformed, 1+idLen+lengthLen)
	}

	for _, v := range b[pos : pos+idLen] {
		entry.ID = entry.ID<<8 | uint16(v)
	}
	pos += idLen

	length := int(bits.GetRange(typ, 3, 1))
	if lengthLen > 0 {
		length = 0
		for _, v := range b[pos : pos+lengthLen] {
			length = length<<8 | int(v)
		}
		pos += lengthLen
	}

	if pos+length > len(b) {
		return Entry{}, 0, fmt.Errorf("%w: %s %d value of %d bytes truncated", ErrMalformed, entry.Kind, entry.ID, length)
	}
	value := b[pos : pos+length]

	if !entry.Kind.nested() {
		entry.Value = value
		return entry, pos + length, nil
	}

	children, err := Decode(value)
	if err != nil {
		return Entry{}, 0, fmt.Errorf("%s %d: %w", entry.Kind, entry.ID, err)
	}
	for _, child := range children {
		if !allowedChild(entry.Kind, child.Kind) {
			return Entry{}, 0, fmt.Errorf("%w: %s inside %s %d", ErrMalformed, child.Kind, entry.Kind, entry.ID)
		}
	}
	entry.Children = children
	return entry, pos + length, nil
}

func allowedChild(parent, child Kind) bool {
	switch parent {
	case ObjectInstance:
		return child == Resource || child == MultipleResource
	case MultipleResource:
		return child == ResourceInstance
	default:
		return false
	}
}

// Find returns the first top level entry of kind with identifier id.
func Find(entries []Entry, kind Kind, id uint16) (Entry, bool) {
	for _, e := range entries {
		if e.Kind == kind && e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Int decodes the value as a signed big endian integer of 1, 2, 4 or 8 bytes.
func (e Entry) Int() (int64, error) {
	switch len(e.Value) {
	case 1:
		return int64(int8(e.Value[0])), nil
	case 2:
		return int64(int16(uint16(e.Value[0])<<8 | uint16(e.Value[1]))), nil
	case 4, 8:
		var v uint64
		for _, b := range e.Value {
			v = v<<8 | uint64(b)
		}
		if len(e.Value) == 4 {
			return int64(int32(uint32(v))), nil
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: integer of %d bytes", ErrMalformed, len(e.Value))
	}
}

// Bool decodes a one byte boolean (0 or 1).
func (e Entry) Bool() (bool, error) {
	if len(e.Value) != 1 || e.Value[0] > 1 {
		return false, fmt.Errorf("%w: boolean %X", ErrMalformed, e.Value)
	}
	return e.Value[0] == 1, nil
}
