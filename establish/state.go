package establish

import "fmt"

type State int

const (
	StateProbePayment  State = 0
	StateEnsureChannel State = 1
	StateDone          State = 2
)

func (s State) String() string {
	switch s {
	case StateProbePayment:
		return "ProbePayment"
	case StateEnsureChannel:
		return "EnsureChannel"
	case StateDone:
		return "Done"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}
