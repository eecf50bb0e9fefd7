package iso7816

import (
	"fmt"
)

// MANAGE CHANNEL COMMAND LOGIC (ISO 7816-4):
// The MANAGE CHANNEL command (INS '70') opens and closes logical channels.
//
// P1:
// - '00': Open a channel. With P2 = '00' the card assigns the number and
//   returns it in a one byte response.
// - '80': Close the channel given in P2.
//
// The CLA of a MANAGE CHANNEL open is usually the basic channel. The close is
// sent on the channel being closed.

const (
	manageChannelOpen  byte = 0x00
	manageChannelClose byte = 0x80
)

// MaxLogicalChannel is the highest channel number a CLA byte can address.
const MaxLogicalChannel = 19

// OpenChannel asks the card, on the basic channel, to open and assign a new
// logical channel.
func OpenChannel() *CommandAPDU {
	cla, _ := ChannelClass(0)
	return NewCommandAPDU(cla, mustInstruction(INS_MANAGE_CHANNEL), manageChannelOpen, 0x00, nil, 1)
}

// CloseChannel closes the logical channel addressed by cla.
func CloseChannel(cla Class) *CommandAPDU {
	return NewCommandAPDU(cla, mustInstruction(INS_MANAGE_CHANNEL), manageChannelClose, cla.Channel, nil, 0)
}

// AssignedChannel extracts the channel number from the data of a MANAGE
// CHANNEL open response. Channel 0 and numbers above MaxLogicalChannel are
// rejected.
func AssignedChannel(data []byte) (uint8, error) {
	if len(data) != 1 {
		return 0, fmt.Errorf("open channel response: expected 1 byte, got %d", len(data))
	}
	channel := data[0]
	if channel == 0 || channel > MaxLogicalChannel {
		return 0, fmt.Errorf("open channel response: invalid channel %d", channel)
	}
	return channel, nil
}
