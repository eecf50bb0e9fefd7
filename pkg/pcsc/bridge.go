// Package pcsc lets a PC/SC card reader stand in for a modem: AT+CSIM
// commands are unwrapped, sent to the card through an iso7816.Client and the
// final response is wrapped back into a "+CSIM:" line.
package pcsc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gregLibert/sim-bootstrap/pkg/iso7816"
	"github.com/gregLibert/sim-bootstrap/pkg/tlv"
)

// ErrUnsupported is returned for anything but a well formed AT+CSIM set
// command, where a modem would answer ERROR.
var ErrUnsupported = errors.New("pcsc: unsupported AT command")

const csimPrefix = "AT+CSIM="

// Bridge implements csim.Modem over a card connection. The T=0 follow-up
// exchanges (61XX, 6CXX) a modem performs internally are handled by the
// client, so the caller only sees final status words.
type Bridge struct {
	client *iso7816.Client
	logger *slog.Logger
}

// NewBridge returns a bridge sending APDUs to card.
func NewBridge(card iso7816.Transmitter, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{client: iso7816.NewClient(card), logger: logger}
}

func (b *Bridge) Command(ctx context.Context, cmd string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	raw, err := parseCSIM(cmd)
	if err != nil {
		return "", err
	}

	apdu, err := iso7816.ParseCommandAPDU(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrUnsupported, cmd, err)
	}

	trace, err := b.client.Send(apdu)
	if err != nil {
		return "", err
	}
	b.logger.Debug("pcsc exchange", "trace", trace.String())
	if apdu.Instruction.Raw == iso7816.INS_SELECT && b.logger.Enabled(ctx, slog.LevelDebug) {
		if result, err := iso7816.NewSelectResult(trace); err == nil {
			b.logger.Debug("pcsc select", "report", result.Describe())
		}
	}

	resp, err := trace.Final()
	if err != nil {
		return "", err
	}

	reply := tlv.EncodeUpperString(resp.Bytes())
	return fmt.Sprintf("+CSIM: %d,\"%s\"", len(reply), reply), nil
}

// parseCSIM extracts the command bytes of AT+CSIM=<length>,"<hex>".
func parseCSIM(cmd string) ([]byte, error) {
	args, ok := strings.CutPrefix(cmd, csimPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cmd)
	}

	lengthText, hexText, ok := strings.Cut(args, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing command field in %q", ErrUnsupported, cmd)
	}
	length, err := strconv.Atoi(lengthText)
	if err != nil {
		return nil, fmt.Errorf("%w: bad length in %q", ErrUnsupported, cmd)
	}

	hexText, ok = strings.CutPrefix(hexText, `"`)
	if ok {
		hexText, ok = strings.CutSuffix(hexText, `"`)
	}
	if !ok || len(hexText) != length || length%2 != 0 {
		return nil, fmt.Errorf("%w: length %d does not match %q", ErrUnsupported, length, hexText)
	}

	raw, err := hex.DecodeString(hexText)
	if err != nil {
		return nil, fmt.Errorf("%w: bad hex in %q", ErrUnsupported, cmd)
	}
	return raw, nil
}
