package csim

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gregLibert/sim-bootstrap/pkg/iso7816"
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// CurrentADF is the reserved file identifier '7FFF' standing for the
// application selected on the channel (ETSI TS 102 221).
const CurrentADF uint16 = 0x7FFF

// OpenChannel asks the card for a new logical channel and returns the class
// addressing it. The reply must carry the assigned channel number.
func (s *Session) OpenChannel(ctx context.Context, buf *Buffer) (iso7816.Class, error) {
	n, err := s.Exchange(ctx, iso7816.OpenChannel(), buf)
	if err != nil {
		return iso7816.Class{}, err
	}
	if n == 0 {
		return iso7816.Class{}, invalidf("open channel reply carries no channel number")
	}

	buf.decodeHex(n)
	channel, err := iso7816.AssignedChannel(buf.Bytes())
	if err != nil {
		return iso7816.Class{}, invalidf("%v", err)
	}

	cls, err := iso7816.ChannelClass(channel)
	if err != nil {
		return iso7816.Class{}, invalidf("%v", err)
	}
	return cls, nil
}

// CloseChannel closes the channel addressed by cls. It uses its own
// CloseBufferSize buffer so the content of the caller's buffer survives.
func (s *Session) CloseChannel(ctx context.Context, cls iso7816.Class) error {
	_, err := s.Exchange(ctx, iso7816.CloseChannel(cls), NewBuffer(CloseBufferSize))
	return err
}

// SelectApplication selects an application by AID on the channel of cls and
// returns the number of FCP hex chars in buf.
func (s *Session) SelectApplication(ctx context.Context, cls iso7816.Class, aid []byte, buf *Buffer) (int, error) {
	cmd := iso7816.SelectApplication(cls, aid)
	n, err := s.Exchange(ctx, cmd, buf)
	if err != nil {
		return 0, err
	}
	s.logFCP(ctx, cmd, buf, n)
	return n, nil
}

// SelectFile selects the EF with file identifier path (4 hex chars) under the
// current application, i.e. path '7FFF<path>' from the MF, and returns the
// number of FCP hex chars in buf.
func (s *Session) SelectFile(ctx context.Context, cls iso7816.Class, path string, buf *Buffer) (int, error) {
	fid, err := parseFileID(path)
	if err != nil {
		return 0, err
	}

	cmd := iso7816.SelectPath(cls, iso7816.PathFromMF(CurrentADF, fid))
	n, err := s.Exchange(ctx, cmd, buf)
	if err != nil {
		return 0, err
	}
	s.logFCP(ctx, cmd, buf, n)
	return n, nil
}

// ReadFile selects path and reads it with one READ BINARY. The file content
// is decoded in place at the start of buf and its length in bytes returned.
//
// A select answered without FCP returns 0 and issues no read. The expected
// length is 256 bytes, or what buf can hold as reply hex when it is smaller
// than RecordBufferMax.
func (s *Session) ReadFile(ctx context.Context, cls iso7816.Class, path string, buf *Buffer) (int, error) {
	n, err := s.SelectFile(ctx, cls, path, buf)
	if err != nil || n == 0 {
		return 0, err
	}

	n, err = s.Exchange(ctx, iso7816.ReadBinary(cls, 0, ExpectedLength(buf.Cap())), buf)
	if err != nil || n == 0 {
		return 0, err
	}

	return buf.decodeHex(n), nil
}

// ExpectedLength returns the Ne of a READ BINARY whose reply hex must fit a
// buffer of size bytes. Sizes of RecordBufferMax and above read a full 256
// byte record. Below, Ne is (size-4)/2 truncated to a byte, where 0 means 256.
func ExpectedLength(size int) int {
	if size >= RecordBufferMax {
		return iso7816.MaxShortLe
	}
	ne := byte((size - statusChars) / 2)
	if ne == 0 {
		return iso7816.MaxShortLe
	}
	return int(ne)
}

func parseFileID(path string) (uint16, error) {
	if len(path) != 4 {
		return 0, invalidf("file path %q is not a 4 hex digit identifier", path)
	}
	fid, err := strconv.ParseUint(path, 16, 16)
	if err != nil {
		return 0, invalidf("file path %q: %v", path, err)
	}
	return uint16(fid), nil
}

// logFCP traces the file selected by cmd. It reads the reply hex without
// altering buf.
func (s *Session) logFCP(ctx context.Context, cmd *iso7816.CommandAPDU, buf *Buffer, n int) {
	if n == 0 || !s.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	payload := make([]byte, n/2)
	tlv.DecodeLenient(payload, buf.Bytes()[:n])

	fci, err := iso7816.ParseSelectData(payload, cmd.P2)
	if err != nil || fci == nil || fci.FCP == nil {
		s.logger.DebugContext(ctx, "csim select: FCP not decoded", "fcp", tlv.EncodeUpperString(payload), "err", err)
		return
	}

	s.logger.DebugContext(ctx, "csim select",
		"path", tlv.EncodeUpperString(cmd.Data),
		"file_id", tlv.EncodeUpperString(fci.FCP.FileIdentifier),
		"structure", fci.FCP.Structure().String(),
		"size", fci.FCP.Size(),
	)
}
