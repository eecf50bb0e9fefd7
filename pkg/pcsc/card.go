package pcsc

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ebfe/scard"
)

// ErrNoReader is returned when PC/SC reports no reader.
var ErrNoReader = errors.New("pcsc: no smart card reader found")

// Card is a connected PC/SC card together with the context that owns it.
type Card struct {
	ctx    *scard.Context
	card   *scard.Card
	reader string
}

// Connect establishes a PC/SC context and connects to reader, or to the first
// reader when reader is empty.
func Connect(reader string) (*Card, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err == nil {
		reader, err = pickReader(readers, reader)
	}
	if err != nil {
		return nil, errors.Join(err, releaseErr(ctx))
	}

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(reader, scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("connect to %s: %w", reader, err), releaseErr(ctx))
	}

	return &Card{ctx: ctx, card: card, reader: reader}, nil
}

func pickReader(readers []string, want string) (string, error) {
	if len(readers) == 0 {
		return "", ErrNoReader
	}
	if want == "" {
		return readers[0], nil
	}
	if !slices.Contains(readers, want) {
		return "", fmt.Errorf("%w: %q not in %q", ErrNoReader, want, readers)
	}
	return want, nil
}

func releaseErr(ctx *scard.Context) error {
	if err := ctx.Release(); err != nil {
		return fmt.Errorf("release context: %w", err)
	}
	return nil
}

// Reader returns the name of the connected reader.
func (c *Card) Reader() string { return c.reader }

// Transmit implements iso7816.Transmitter.
func (c *Card) Transmit(cmd []byte) ([]byte, error) {
	return c.card.Transmit(cmd)
}

// Close disconnects the card, leaving it powered, and releases the context.
func (c *Card) Close() error {
	var errs []error
	if err := c.card.Disconnect(scard.LeaveCard); err != nil {
		errs = append(errs, fmt.Errorf("disconnect card: %w", err))
	}
	if err := releaseErr(c.ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
