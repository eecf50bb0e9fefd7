package iso7816

// READ BINARY COMMAND LOGIC (ISO 7816-4):
// The READ BINARY command (INS 'B0') reads part of the content of a
// transparent Elementary File.
//
// P1-P2 (Offset Control): with bit 8 of P1 at 0, P1-P2 is a 15-bit offset
// into the current EF. Addressing by Short File Identifier (bit 8 set) is not
// used: files are always selected by path first.
//
// Le is the number of bytes to read. A card holding fewer bytes after the
// offset answers with '6282' (end of file reached) or '6CXX'.

// MaxBinaryOffset is the largest offset encodable when P1 bit 8 is 0.
const MaxBinaryOffset = 0x7FFF

// ReadBinary reads ne bytes from the current EF starting at offset.
// The offset is limited to 15 bits; higher bits are dropped.
func ReadBinary(cla Class, offset uint16, ne int) *CommandAPDU {
	offset &= MaxBinaryOffset
	return NewCommandAPDU(cla, mustInstruction(INS_READ_BINARY), byte(offset>>8), byte(offset), nil, ne)
}
