/*
Package csim carries ISO 7816-4 commands to a UICC through the AT+CSIM modem
command (3GPP TS 27.007).

A command is sent as its hex encoding and the card reply comes back the same
way, status word included:

	AT+CSIM=10,"0070000001"
	+CSIM: 6,"019000"

Only replies ending with '9000' are successful. There are no retries: a
failed exchange is reported to the caller, which decides what to do with the
logical channel.
*/
package csim

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gregLibert/sim-bootstrap/pkg/iso7816"
)

// Modem sends one AT command and returns the "+CSIM:" information line of
// its reply. Transport failures (timeouts, ERROR, +CME ERROR) are returned as
// errors and propagated unchanged.
type Modem interface {
	Command(ctx context.Context, cmd string) (string, error)
}

// ModemFunc adapts a function to the Modem interface.
type ModemFunc func(ctx context.Context, cmd string) (string, error)

func (f ModemFunc) Command(ctx context.Context, cmd string) (string, error) {
	return f(ctx, cmd)
}

const replyPrefix = "+CSIM:"

// statusChars is the length of the status word in reply hex.
const statusChars = 4

// Session issues AT+CSIM exchanges over a modem. It holds no card state and
// is not safe for concurrent use.
type Session struct {
	modem   Modem
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for exchange traces.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithMetrics records exchange counts and durations.
func WithMetrics(m *Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// NewSession returns a session bound to modem.
func NewSession(modem Modem, opts ...Option) *Session {
	s := &Session{modem: modem, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Exchange sends cmd and checks the reply. On success buf holds the reply
// hex and the returned value is the number of payload hex chars (the status
// word excluded).
func (s *Session) Exchange(ctx context.Context, cmd *iso7816.CommandAPDU, buf *Buffer) (int, error) {
	ins := cmd.Instruction.Raw.String()

	apdu, err := cmd.Hex()
	if err != nil {
		s.metrics.observe(ins, OutcomeFormat, 0)
		return 0, invalidf("encoding %s: %v", ins, err)
	}

	at := FormatCommand(apdu)
	if !buf.fitsText(at) {
		s.metrics.observe(ins, OutcomeFormat, 0)
		return 0, invalidf("command of %d chars does not fit a %d byte buffer", len(at), buf.Cap())
	}
	buf.setText(at)

	start := time.Now()
	line, err := s.modem.Command(ctx, at)
	elapsed := time.Since(start)
	if err != nil {
		s.metrics.observe(ins, OutcomeTransport, elapsed)
		s.logger.DebugContext(ctx, "csim exchange failed", "cmd", apdu, "err", err)
		return 0, err
	}

	n, err := parseReply(line, buf)
	if err != nil {
		outcome := OutcomeProtocol
		if _, ok := err.(*StatusError); ok {
			outcome = OutcomeStatus
		}
		s.metrics.observe(ins, outcome, elapsed)
		s.logger.DebugContext(ctx, "csim exchange rejected", "cmd", apdu, "reply", line, "err", err)
		return 0, err
	}

	s.metrics.observe(ins, OutcomeOK, elapsed)
	s.logger.DebugContext(ctx, "csim exchange", "cmd", apdu, "reply", buf.String(), "duration", elapsed)
	return n, nil
}

// FormatCommand wraps APDU hex into an AT+CSIM command line.
func FormatCommand(apdu string) string {
	return fmt.Sprintf("AT+CSIM=%d,\"%s\"", len(apdu), apdu)
}

// parseReply checks a "+CSIM: <len>,"<hex>"" line and stores the hex in buf.
func parseReply(line string, buf *Buffer) (int, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(line), replyPrefix)
	if !ok {
		return 0, invalidf("unexpected reply %q", line)
	}

	lenField, hexField, ok := strings.Cut(strings.TrimSpace(rest), ",")
	if !ok {
		return 0, invalidf("reply %q misses the response field", line)
	}

	length, err := strconv.Atoi(strings.TrimSpace(lenField))
	if err != nil {
		return 0, invalidf("reply length %q: %v", lenField, err)
	}

	hex := strings.Trim(strings.TrimSpace(hexField), `"`)
	if !buf.fitsText(hex) {
		return 0, invalidf("reply of %d chars does not fit a %d byte buffer", len(hex), buf.Cap())
	}
	if length != len(hex) {
		return 0, invalidf("reply length %d does not match %d hex chars", length, len(hex))
	}
	if length < statusChars {
		return 0, invalidf("reply %q has no status word", hex)
	}

	payload := length - statusChars
	sw, err := strconv.ParseUint(hex[payload:], 16, 16)
	if err != nil {
		return 0, invalidf("status word %q: %v", hex[payload:], err)
	}

	buf.setText(hex)

	if status := iso7816.StatusWord(sw); status != iso7816.SW_NO_ERROR {
		return 0, &StatusError{Status: status}
	}
	return payload, nil
}
