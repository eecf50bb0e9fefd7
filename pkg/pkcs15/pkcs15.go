/*
Package pkcs15 locates files through the PKCS#15 directory chain of a UICC.

The PKCS#15 application (AID ApplicationID) starts with EF(ODF), the Object
Directory File. Its entries point at the other directory files, among them the
Data Object Directory File, EF(DODF). Each DODF entry describes one data object
and the file holding it.

	odf -> DODF path -> dodf -> bootstrap object path

DecodeODFPath and DecodeDODFPath walk those files with a tlv.Decoder and
return the referenced file identifier as a Path.

# Padding

Directory files are fixed size and filled with 'FF' (or '00') after the last
entry. A padding byte in place of an entry tag ends the walk.
*/
package pkcs15

import (
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// ApplicationID is the AID of the PKCS#15 application: RID 'A000000063'
// followed by "PKCS-15".
var ApplicationID = []byte{0xA0, 0x00, 0x00, 0x00, 0x63, 0x50, 0x4B, 0x43, 0x53, 0x2D, 0x31, 0x35}

// ODFPath is the file identifier of EF(ODF) under the PKCS#15 application.
const ODFPath Path = "5031"

// Path is a file identifier as 4 uppercase hex characters (e.g. "6430").
// The empty Path means no file was found.
type Path string

// Empty reports whether p holds no file identifier.
func (p Path) Empty() bool { return p == "" }

const (
	tagSequence    byte = 0x30
	tagOctetString byte = 0x04
	tagOID         byte = 0x06

	// pathCapacity bounds a Path octet string to 8 bytes (16 hex + terminator).
	pathCapacity = 17

	// fileIDChars is the length of a file identifier in hex.
	fileIDChars = 4
)

func isPadding(b byte) bool {
	return b == 0xFF || b == 0x00
}

// walkEntries calls match for each top level entry of a directory file until
// match reports a path, padding is reached or the data is malformed.
func walkEntries(data []byte, match func(tag byte, length int, d *tlv.Decoder) Path) (Path, bool) {
	d := tlv.NewDecoder(data)
	for {
		if b, ok := d.Peek(); !ok || isPadding(b) {
			return "", false
		}

		tag, length, ok := d.Header()
		if !ok {
			return "", false
		}

		path := match(tag, length, d)
		if d.Failed() {
			return "", false
		}
		if !path.Empty() {
			return path, true
		}
	}
}

// decodePath reads a PKCS#15 Path (SEQUENCE { efidOrPath OCTET STRING, ... })
// whose header has already been consumed, and returns the last file
// identifier of efidOrPath.
func decodePath(d *tlv.Decoder, length int) Path {
	var path Path
	d.Sequence(length, func(seq *tlv.Decoder) {
		tag, length, ok := seq.Header()
		if !ok || tag != tagOctetString {
			return
		}
		hex := seq.OctetString(length, pathCapacity)
		if len(hex) < fileIDChars {
			return
		}
		path = Path(hex[len(hex)-fileIDChars:])
	})
	return path
}
