package money

import (
	"fmt"
	"strings"
)

// Unit is a denomination an amount can be expressed in.
type Unit int

const (
	MilliSatoshi Unit = 0
	Satoshi      Unit = 1
	Bit          Unit = 2
	BTC          Unit = 3
)

// exponent is the power of ten of millisatoshi per unit.
func (u Unit) exponent() int32 {
	switch u {
	case Satoshi:
		return 3
	case Bit:
		return 5
	case BTC:
		return 11
	default:
		return 0
	}
}

func (u Unit) String() string {
	switch u {
	case MilliSatoshi:
		return "msat"
	case Satoshi:
		return "sat"
	case Bit:
		return "bit"
	case BTC:
		return "btc"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "msat", "millisatoshi":
		return MilliSatoshi, nil
	case "sat", "satoshi", "sats":
		return Satoshi, nil
	case "bit", "bits":
		return Bit, nil
	case "btc":
		return BTC, nil
	default:
		return MilliSatoshi, fmt.Errorf("unknown unit %q", s)
	}
}
