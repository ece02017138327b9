package establish

import (
	"context"
	"time"
)

type Transition struct {
	Sender   string
	Receiver string
	From     State
	To       State
	Detail   string
	Time     time.Time
}

// Journal records the state transitions of established pairs.
type Journal interface {
	RecordTransition(ctx context.Context, t *Transition) error
}
