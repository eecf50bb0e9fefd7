package pkcs15

import (
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// DODF entry layout for an oidDO object:
//
//	A1 len                          oidDO
//	   30 len ...                   CommonObjectAttributes (label, flags)
//	   30 len ...                   CommonDataObjectAttributes
//	   [A0 len ...]                 subClassAttributes, optional
//	   A1 len                       typeAttributes
//	      30 len                    OidDO
//	         06 len <oid>           id
//	         30 len 04 len <path>   value: Path
//
// Only the oidDO whose id is the LwM2M bootstrap object matches.

const (
	tagOidDO          byte = 0xA1
	tagSubClassAttrs  byte = 0xA0
	tagTypeAttributes byte = 0xA1

	// oidCapacity bounds the object identifier to 16 bytes.
	oidCapacity = 33
)

// BootstrapOID is the content of the DODF id identifying the LwM2M bootstrap
// object. Provisioning tools store it either as raw content (672B0901) or
// wrapped in a second OID header (0604672B0901); both are accepted.
const BootstrapOID = "672B0901"

const bootstrapOIDWrapped = "0604" + BootstrapOID

// DecodeDODFPath returns the path of the file holding the LwM2M bootstrap
// object listed in an EF(DODF).
func DecodeDODFPath(data []byte) (Path, bool) {
	return walkEntries(data, func(tag byte, length int, d *tlv.Decoder) Path {
		if tag != tagOidDO {
			d.Skip(length)
			return ""
		}

		var path Path
		d.Sequence(length, func(object *tlv.Decoder) {
			path = decodeOidDO(object)
		})
		return path
	})
}

func decodeOidDO(object *tlv.Decoder) Path {
	for {
		tag, length, ok := object.Header()
		if !ok {
			return ""
		}

		switch tag {
		case tagSequence, tagSubClassAttrs:
			object.Skip(length)
		case tagTypeAttributes:
			var path Path
			object.Sequence(length, func(attrs *tlv.Decoder) {
				tag, length, ok := attrs.Header()
				if !ok || tag != tagSequence {
					return
				}
				attrs.Sequence(length, func(oidDO *tlv.Decoder) {
					path = decodeBootstrapValue(oidDO)
				})
			})
			return path
		default:
			object.Skip(length)
		}
	}
}

// decodeBootstrapValue reads the id and value of an OidDO and returns the
// value path when the id is the bootstrap object.
func decodeBootstrapValue(oidDO *tlv.Decoder) Path {
	tag, length, ok := oidDO.Header()
	if !ok || tag != tagOID {
		return ""
	}
	oid := oidDO.OctetString(length, oidCapacity)
	if oid != BootstrapOID && oid != bootstrapOIDWrapped {
		return ""
	}

	tag, length, ok = oidDO.Header()
	if !ok || tag != tagSequence {
		return ""
	}
	return decodePath(oidDO, length)
}
