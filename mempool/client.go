package mempool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/transport"
)

// MempoolClient estimates fee rates from a mempool.space compatible api.
type MempoolClient struct {
	transport transport.Transport
}

type RecommendedFeesResponse struct {
	FastestFee  float64 `json:"fastestFee"`
	HalfHourFee float64 `json:"halfHourFee"`
	HourFee     float64 `json:"hourFee"`
	EconomyFee  float64 `json:"economyFee"`
	MinimumFee  float64 `json:"minimumFee"`
}

func NewMempoolClient(apiBaseUrl string) (*MempoolClient, error) {
	t, err := transport.NewClient(apiBaseUrl)
	if err != nil {
		return nil, err
	}

	return NewClient(t), nil
}

func NewClient(t transport.Transport) *MempoolClient {
	return &MempoolClient{transport: t}
}

func (m *MempoolClient) EstimateFeeRate(
	ctx context.Context,
	strategy chain.FeeStrategy,
) (*chain.FeeEstimation, error) {
	raw, err := m.transport.Do(ctx, "GET", "fees/recommended", nil)
	if err != nil {
		return nil, fmt.Errorf("mempool fees/recommended: %w", err)
	}

	var body RecommendedFeesResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	var rate float64
	switch strategy {
	case chain.FeeStrategyFastest:
		rate = body.FastestFee
	case chain.FeeStrategyHalfHour:
		rate = body.HalfHourFee
	case chain.FeeStrategyHour:
		rate = body.HourFee
	case chain.FeeStrategyEconomy:
		rate = body.EconomyFee
	case chain.FeeStrategyMinimum:
		rate = body.MinimumFee
	default:
		return nil, fmt.Errorf("unsupported fee strategy: %v", strategy)
	}

	return &chain.FeeEstimation{
		SatPerVByte: rate,
	}, nil
}
