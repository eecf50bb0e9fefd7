// Package atmodem drives a cellular modem over a serial line and implements
// csim.Modem on top of its AT command interface.
package atmodem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"
)

const (
	DefaultBaudRate = 115200
	DefaultTimeout  = 5 * time.Second

	// pollInterval bounds a single port read so cancellation is noticed.
	pollInterval = 100 * time.Millisecond
)

var (
	// ErrTimeout is returned when no final result code arrives in time.
	ErrTimeout = errors.New("atmodem: timeout waiting for final result code")

	// ErrNoReply is returned when the modem answers OK without an
	// information line for the command.
	ErrNoReply = errors.New("atmodem: no information line in reply")
)

// CommandError is a final result code other than OK.
type CommandError struct {
	Command string
	Result  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("atmodem: %s: %s", e.Command, e.Result)
}

// Port is the part of serial.Port the modem needs.
type Port interface {
	io.ReadWriter
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	Close() error
}

// Modem serialises AT commands over a Port. It is safe for concurrent use.
type Modem struct {
	mu      sync.Mutex
	port    Port
	timeout time.Duration
	logger  *slog.Logger
	pending []byte
}

// Option configures a Modem.
type Option func(*Modem)

// WithTimeout sets how long a command may wait for its final result code.
func WithTimeout(d time.Duration) Option {
	return func(m *Modem) { m.timeout = d }
}

// WithLogger sets the logger used for line traces.
func WithLogger(l *slog.Logger) Option {
	return func(m *Modem) { m.logger = l }
}

// Open opens the serial device name at baud 8N1.
func Open(name string, baud int, opts ...Option) (*Modem, error) {
	if baud == 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}

	m, err := New(port, opts...)
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return m, nil
}

// New wraps an already opened port.
func New(port Port, opts ...Option) (*Modem, error) {
	m := &Modem{port: port, timeout: DefaultTimeout, logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	if err := port.SetReadTimeout(pollInterval); err != nil {
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	return m, nil
}

// Close closes the underlying port.
func (m *Modem) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.port.Close()
}

// Command writes cmd terminated by CR LF and collects reply lines up to the
// final result code. It returns the information line whose prefix matches
// the command name (e.g. "+CSIM:" for "AT+CSIM=..."), or the first
// information line when none does. The context is checked between port
// reads.
func (m *Modem) Command(ctx context.Context, cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.pending = m.pending[:0]
	if err := m.port.ResetInputBuffer(); err != nil {
		return "", fmt.Errorf("reset input: %w", err)
	}

	m.logger.Debug("at send", "cmd", cmd)
	if _, err := io.WriteString(m.port, cmd+"\r\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}

	deadline := time.Now().Add(m.timeout)

	var info []string
	for {
		line, err := m.readLine(ctx, deadline)
		if err != nil {
			return "", fmt.Errorf("%s: %w", cmd, err)
		}
		m.logger.Debug("at recv", "line", line)

		switch {
		case line == "" || line == cmd:
			// blank separator or command echo
		case line == "OK":
			return pickInfo(cmd, info)
		case isFinalError(line):
			return "", &CommandError{Command: cmd, Result: line}
		default:
			info = append(info, line)
		}
	}
}

func isFinalError(line string) bool {
	return line == "ERROR" ||
		strings.HasPrefix(line, "+CME ERROR") ||
		strings.HasPrefix(line, "+CMS ERROR")
}

// pickInfo selects the information line answering cmd: the one carrying the
// command prefix, else the first one.
func pickInfo(cmd string, info []string) (string, error) {
	if prefix, ok := infoPrefix(cmd); ok {
		for _, line := range info {
			if strings.HasPrefix(line, prefix) {
				return line, nil
			}
		}
	}
	if len(info) > 0 {
		return info[0], nil
	}
	return "", fmt.Errorf("%s: %w", cmd, ErrNoReply)
}

// infoPrefix maps "AT+CSIM=..." to "+CSIM:".
func infoPrefix(cmd string) (string, bool) {
	name, ok := strings.CutPrefix(cmd, "AT")
	if !ok || !strings.HasPrefix(name, "+") {
		return "", false
	}
	if i := strings.IndexAny(name, "=?"); i >= 0 {
		name = name[:i]
	}
	return name + ":", true
}

// readLine returns the next line without its CR LF terminator. A port read
// returning no data is a poll timeout.
func (m *Modem) readLine(ctx context.Context, deadline time.Time) (string, error) {
	var chunk [128]byte
	for {
		if i := bytes.IndexByte(m.pending, '\n'); i >= 0 {
			line := strings.TrimRight(string(m.pending[:i]), "\r")
			m.pending = m.pending[i+1:]
			return strings.TrimSpace(line), nil
		}

		if err := ctx.Err(); err != nil {
			return "", err
		}
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}

		n, err := m.port.Read(chunk[:])
		m.pending = append(m.pending, chunk[:n]...)
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}
}
