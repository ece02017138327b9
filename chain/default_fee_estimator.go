package chain

import "context"

// DefaultFeeEstimator returns a fixed fee rate regardless of strategy. It is
// used when no fee api is configured, which is the normal case on regtest.
type DefaultFeeEstimator struct {
	satPerVByte float64
}

func NewDefaultFeeEstimator(satPerVByte float64) *DefaultFeeEstimator {
	return &DefaultFeeEstimator{
		satPerVByte: satPerVByte,
	}
}

func (e *DefaultFeeEstimator) EstimateFeeRate(
	context.Context,
	FeeStrategy,
) (*FeeEstimation, error) {
	return &FeeEstimation{
		SatPerVByte: e.satPerVByte,
	}, nil
}
