package atmodem

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePort answers each written line with the scripted bytes for it.
type fakePort struct {
	mu       sync.Mutex
	replies  map[string]string
	written  []string
	rx       bytes.Buffer
	resets   int
	closed   bool
	readErr  error
	pollWait time.Duration
}

func newFakePort(replies map[string]string) *fakePort {
	return &fakePort{replies: replies, pollWait: time.Millisecond}
}

func (p *fakePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	line := string(bytes.TrimRight(b, "\r\n"))
	p.written = append(p.written, string(b))
	p.rx.WriteString(p.replies[line])
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	if p.readErr != nil {
		defer p.mu.Unlock()
		return 0, p.readErr
	}
	if p.rx.Len() == 0 {
		p.mu.Unlock()
		time.Sleep(p.pollWait)
		return 0, nil
	}
	defer p.mu.Unlock()
	// Small reads exercise line reassembly.
	if len(b) > 7 {
		b = b[:7]
	}
	return p.rx.Read(b)
}

func (p *fakePort) SetReadTimeout(time.Duration) error { return nil }

func (p *fakePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resets++
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

const openCmd = `AT+CSIM=10,"0070000001"`

func TestModem_Command(t *testing.T) {
	port := newFakePort(map[string]string{
		openCmd: openCmd + "\r\r\n+CSIM: 6,\"019000\"\r\n\r\nOK\r\n",
	})
	m, err := New(port)
	require.NoError(t, err)

	reply, err := m.Command(context.Background(), openCmd)
	require.NoError(t, err)
	assert.Equal(t, `+CSIM: 6,"019000"`, reply)
	assert.Equal(t, []string{openCmd + "\r\n"}, port.written)
	assert.Equal(t, 1, port.resets)
}

func TestModem_SkipsUnsolicitedLines(t *testing.T) {
	port := newFakePort(map[string]string{
		openCmd: "\r\n+CEREG: 1\r\n+CSIM: 6,\"019000\"\r\nOK\r\n",
	})
	m, err := New(port)
	require.NoError(t, err)

	reply, err := m.Command(context.Background(), openCmd)
	require.NoError(t, err)
	assert.Equal(t, `+CSIM: 6,"019000"`, reply)
}

func TestModem_PlainCommand(t *testing.T) {
	port := newFakePort(map[string]string{
		"AT+CIMI": "\r\n262011234567890\r\n\r\nOK\r\n",
		"ATE0":    "\r\nOK\r\n",
	})
	m, err := New(port)
	require.NoError(t, err)

	imsi, err := m.Command(context.Background(), "AT+CIMI")
	require.NoError(t, err)
	assert.Equal(t, "262011234567890", imsi)

	_, err = m.Command(context.Background(), "ATE0")
	assert.ErrorIs(t, err, ErrNoReply)
}

func TestModem_FinalErrors(t *testing.T) {
	tests := []struct {
		name   string
		reply  string
		result string
	}{
		{"ERROR", "\r\nERROR\r\n", "ERROR"},
		{"CME", "\r\n+CME ERROR: 4\r\n", "+CME ERROR: 4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(newFakePort(map[string]string{openCmd: tt.reply}))
			require.NoError(t, err)

			_, err = m.Command(context.Background(), openCmd)
			var cmdErr *CommandError
			require.True(t, errors.As(err, &cmdErr), "error %v", err)
			assert.Equal(t, openCmd, cmdErr.Command)
			assert.Equal(t, tt.result, cmdErr.Result)
		})
	}
}

func TestModem_Timeout(t *testing.T) {
	m, err := New(newFakePort(map[string]string{openCmd: "+CSIM: 6,\"019000\"\r\n"}), WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = m.Command(context.Background(), openCmd)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestModem_ContextCancelled(t *testing.T) {
	m, err := New(newFakePort(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = m.Command(ctx, openCmd)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), DefaultTimeout)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = m.Command(ctx, openCmd)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestModem_ReadError(t *testing.T) {
	port := newFakePort(nil)
	port.readErr = errors.New("device unplugged")
	m, err := New(port)
	require.NoError(t, err)

	_, err = m.Command(context.Background(), openCmd)
	assert.ErrorIs(t, err, port.readErr)
}

func TestModem_Close(t *testing.T) {
	port := newFakePort(nil)
	m, err := New(port)
	require.NoError(t, err)

	require.NoError(t, m.Close())
	assert.True(t, port.closed)
}

func TestInfoPrefix(t *testing.T) {
	tests := []struct {
		cmd    string
		prefix string
		ok     bool
	}{
		{openCmd, "+CSIM:", true},
		{"AT+CSIM?", "+CSIM:", true},
		{"AT+CIMI", "+CIMI:", true},
		{"ATI", "", false},
	}
	for _, tt := range tests {
		prefix, ok := infoPrefix(tt.cmd)
		assert.Equal(t, tt.prefix, prefix, tt.cmd)
		assert.Equal(t, tt.ok, ok, tt.cmd)
	}
}
