package pkcs15

import (
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// tagDataObjects is the ODF choice pointing at a DODF ([7] dataObjects).
const tagDataObjects byte = 0xA7

// DecodeODFPath returns the path of the first EF(DODF) listed in an EF(ODF).
//
//	A7 06              dataObjects
//	   30 04           Path
//	      04 02 64 30  efidOrPath
//
// Other ODF entries (keys, certificates) are skipped.
func DecodeODFPath(data []byte) (Path, bool) {
	return walkEntries(data, func(tag byte, length int, d *tlv.Decoder) Path {
		if tag != tagDataObjects {
			d.Skip(length)
			return ""
		}

		var path Path
		d.Sequence(length, func(entry *tlv.Decoder) {
			tag, length, ok := entry.Header()
			if !ok || tag != tagSequence {
				return
			}
			path = decodePath(entry, length)
		})
		return path
	})
}
