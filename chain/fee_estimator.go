package chain

import (
	"context"
	"fmt"
	"math"
)

type FeeStrategy int

const (
	FeeStrategyFastest  FeeStrategy = 0
	FeeStrategyHalfHour FeeStrategy = 1
	FeeStrategyHour     FeeStrategy = 2
	FeeStrategyEconomy  FeeStrategy = 3
	FeeStrategyMinimum  FeeStrategy = 4
)

type FeeEstimation struct {
	SatPerVByte float64
}

// WholeSatPerVByte rounds the estimation up to a whole sat/vbyte, never
// returning less than min.
func (f *FeeEstimation) WholeSatPerVByte(min uint64) uint64 {
	rate := uint64(math.Ceil(f.SatPerVByte))
	if rate < min {
		return min
	}

	return rate
}

type FeeEstimator interface {
	EstimateFeeRate(context.Context, FeeStrategy) (*FeeEstimation, error)
}

func (s FeeStrategy) String() string {
	switch s {
	case FeeStrategyFastest:
		return "fastest"
	case FeeStrategyHalfHour:
		return "halfhour"
	case FeeStrategyHour:
		return "hour"
	case FeeStrategyEconomy:
		return "economy"
	case FeeStrategyMinimum:
		return "minimum"
	default:
		return fmt.Sprintf("FeeStrategy(%d)", int(s))
	}
}
