package establish

import (
	"errors"
	"fmt"
)

var ErrPaymentTimeout = errors.New("payment timed out")

// PairError is returned when a sender/receiver pair could not be
// established. State is the state the pair was in when it failed.
type PairError struct {
	Sender   string
	Receiver string
	State    State
	Err      error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("%s -> %s failed in %v: %v", e.Sender, e.Receiver, e.State, e.Err)
}

func (e *PairError) Unwrap() error {
	return e.Err
}
