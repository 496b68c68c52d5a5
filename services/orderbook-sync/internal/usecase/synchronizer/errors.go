package synchronizer

import (
	"errors"
	"fmt"
)

var (
	// ErrSequenceGap matches every *SequenceGapError.
	ErrSequenceGap = errors.New("sequence gap")
	// ErrHalted is returned in strict mode for every book message after a gap until a snapshot arrives.
	ErrHalted = errors.New("synchronizer halted")
)

// SequenceGapError reports a message that skipped ahead of the expected sequence.
type SequenceGapError struct {
	ProductID string
	Expected  int64
	Received  int64
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("%s: %s expected sequence %d, received %d", ErrSequenceGap, e.ProductID, e.Expected, e.Received)
}

// Is makes errors.Is(err, ErrSequenceGap) hold.
func (e *SequenceGapError) Is(target error) bool {
	return target == ErrSequenceGap
}
