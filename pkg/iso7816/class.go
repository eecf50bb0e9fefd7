package iso7816

import (
	"fmt"

	"github.com/gregLibert/sim-bootstrap/pkg/bits"
)

// CLA byte layout (ISO/IEC 7816-4, clause 5.4.1). Bit 8 set means a
// proprietary class, which is kept as is. Otherwise bit 5 flags command
// chaining and bit 7 picks one of two interindustry encodings:
//
//	00xx xxxx  first:   SM on bits 4-3, logical channel 0-3 on bits 2-1
//	01xx xxxx  further: SM on bit 6, logical channel 4-19 as bits 4-1 plus 4
//
// UICC commands after MANAGE CHANNEL address the assigned channel through
// ChannelClass.

// SecureMessaging is the SM indication of an interindustry class.
type SecureMessaging int

const (
	SMNone         SecureMessaging = 0
	SMProprietary  SecureMessaging = 1 // first interindustry only
	SMHeaderNoProc SecureMessaging = 2
	SMHeaderAuth   SecureMessaging = 3 // first interindustry only
)

// firstRangeMax is the last channel of the first interindustry encoding.
const firstRangeMax = 3

// Class is a decoded CLA byte.
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8 // 0-19
}

// NewClass decodes a raw CLA byte. 'FF' is reserved for PPS and rejected.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}
	switch {
	case bits.IsSet(cla, 8):
		c.IsProprietary = true
	case bits.IsSet(cla, 7):
		c.IsChained = bits.IsSet(cla, 5)
		if bits.IsSet(cla, 6) {
			c.SecureMessaging = SMHeaderNoProc
		}
		c.Channel = bits.GetRange(cla, 4, 1) + firstRangeMax + 1
	default:
		c.IsChained = bits.IsSet(cla, 5)
		c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
		c.Channel = bits.GetRange(cla, 2, 1)
	}
	return c, nil
}

// NewInterindustryClass builds a class for channel, picking the first or
// further encoding from the channel number.
func NewInterindustryClass(isChained bool, sm SecureMessaging, channel uint8) (Class, error) {
	if channel > MaxLogicalChannel {
		return Class{}, fmt.Errorf("channel %d out of range (max %d)", channel, MaxLogicalChannel)
	}
	if channel > firstRangeMax && (sm == SMProprietary || sm == SMHeaderAuth) {
		return Class{}, fmt.Errorf("SM indicator %d not supported for further interindustry range (ch 4-19)", sm)
	}

	c := Class{IsChained: isChained, SecureMessaging: sm, Channel: channel}
	raw, err := c.Encode()
	if err != nil {
		return Class{}, err
	}
	c.Raw = raw
	return c, nil
}

// ChannelClass returns the plain interindustry class (no chaining, no secure
// messaging) addressing the given logical channel. Channel 0 is the basic
// channel.
func ChannelClass(channel uint8) (Class, error) {
	return NewInterindustryClass(false, SMNone, channel)
}

// Encode returns the CLA byte of c. Proprietary classes encode as Raw.
func (c *Class) Encode() (byte, error) {
	if c.IsProprietary {
		return c.Raw, nil
	}

	var cla byte
	if c.IsChained {
		cla = bits.Set(cla, 5)
	}

	if c.Channel <= firstRangeMax {
		return cla | byte(c.SecureMessaging)<<2 | c.Channel, nil
	}

	cla = bits.Set(cla, 7)
	if c.SecureMessaging != SMNone {
		cla = bits.Set(cla, 6)
	}
	return cla | (c.Channel - firstRangeMax - 1), nil
}
