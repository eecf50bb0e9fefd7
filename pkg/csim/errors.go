package csim

import (
	"errors"
	"fmt"

	"github.com/gregLibert/sim-bootstrap/pkg/iso7816"
)

// ErrInvalid reports a command that cannot be formatted into its buffer or a
// modem reply that breaks the +CSIM contract (unparsable, oversized, length
// mismatch, missing or failing status word).
var ErrInvalid = errors.New("csim: invalid exchange")

// StatusError is returned when the card answers with a status word other
// than '9000'. It matches ErrInvalid.
type StatusError struct {
	Status iso7816.StatusWord
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("csim: card status %s", e.Status.Verbose())
}

// Is makes errors.Is(err, ErrInvalid) hold for status failures.
func (e *StatusError) Is(target error) bool {
	return target == ErrInvalid
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
