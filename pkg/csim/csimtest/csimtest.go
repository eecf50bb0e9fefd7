// Package csimtest provides a scripted csim.Modem for tests.
package csimtest

import (
	"context"
	"fmt"
	"sync"
)

// Step is one expected AT command and the modem answer to it. A non-nil Err
// is returned instead of Reply.
type Step struct {
	Command string
	Reply   string
	Err     error
}

// Modem replays a transcript. A command that differs from the next step, or
// comes after the last one, fails with an error naming the mismatch.
type Modem struct {
	mu    sync.Mutex
	steps []Step
	sent  []string
}

// NewModem returns a modem playing steps in order.
func NewModem(steps ...Step) *Modem {
	return &Modem{steps: steps}
}

func (m *Modem) Command(_ context.Context, cmd string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.sent)
	m.sent = append(m.sent, cmd)

	if i >= len(m.steps) {
		return "", fmt.Errorf("csimtest: unexpected command #%d %q after end of transcript", i+1, cmd)
	}
	step := m.steps[i]
	if step.Command != cmd {
		return "", fmt.Errorf("csimtest: command #%d is %q, want %q", i+1, cmd, step.Command)
	}
	if step.Err != nil {
		return "", step.Err
	}
	return step.Reply, nil
}

// Sent returns the commands received so far.
func (m *Modem) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

// Remaining returns the number of steps not played yet.
func (m *Modem) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.steps) - len(m.sent)
}

// Commands lists the commands of steps, the transcript a test expects to be
// sent in full.
func Commands(steps []Step) []string {
	cmds := make([]string, len(steps))
	for i, s := range steps {
		cmds[i] = s.Command
	}
	return cmds
}
