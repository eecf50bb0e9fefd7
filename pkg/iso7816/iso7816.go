/*
Package iso7816 implements the ISO/IEC 7816-4 command set needed to walk the file system of a UICC.

It provides typed Command and Response APDUs, Class (CLA) encoding with logical channels, Status Word (SW) analysis and parsers for the File Control Parameters (FCP) returned by SELECT.

# Fundamentals

The communication with a smart card is strictly synchronous:
 1. The Host sends a Command APDU (Header + Optional Body).
 2. The Card processes it and returns a Response APDU (Optional Body + Trailer SW1/SW2).

Commands are built as CommandAPDU records and serialized with Bytes() (or Hex()
for text transports such as AT+CSIM). No command is built by splicing bytes into
a pre-formatted template.

# Logical Channels

A UICC may host several independent sessions. MANAGE CHANNEL opens one, the
channel number is then carried in the CLA byte of every command addressed to it
(see ChannelClass), and MANAGE CHANNEL closes it again.

	open := iso7816.OpenChannel()          // 00 70 00 00 01
	cls, _ := iso7816.ChannelClass(1)      // CLA 01
	sel := iso7816.SelectPath(cls, iso7816.PathFromMF(0x7FFF, 0x5031))
	read := iso7816.ReadBinary(cls, 0, iso7816.MaxShortLe)
	closeCmd := iso7816.CloseChannel(cls)  // 01 70 80 01

# Status Words

Every response ends with a 2-byte Status Word (SW).
  - 0x9000: Success (OK).
  - 0x61XX: Success, but response data is still available (XX bytes).
  - 0x6CXX: Error, wrong length expectation (XX is the correct length).
  - Other: Various error conditions.

# File Control Parameters

A SELECT issued with P2 = ReturnFCP answers with an FCP template (tag '62')
describing the file: identifier, size, life cycle. ParseSelectData and
SelectResult expose it:

	result, err := iso7816.NewSelectResult(trace)
	if err != nil {
	    log.Fatal(err)
	}
	fci, err := result.FCI()
	if err == nil && fci.FCP != nil {
	    fmt.Printf("File %X, %d bytes\n", fci.FCP.FileIdentifier, fci.FCP.Size())
	}
*/
package iso7816
