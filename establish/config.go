package establish

import (
	"fmt"
	"time"

	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/money"
)

type Config struct {
	CoinbaseMaturity     uint32
	ChannelCapacity      money.Amount
	FundingAmount        money.Amount
	ProbeAmount          money.Amount
	InvoiceExpiry        time.Duration
	PaymentTimeout       time.Duration
	PaymentRetryDelay    time.Duration
	SyncPollInterval     time.Duration
	SyncTimeout          time.Duration
	AlreadyExistsDelay   time.Duration
	ConfirmationBlocks   uint32
	FundingConfirmations uint32
	MinimumFeeRate       uint64
	FeeStrategy          chain.FeeStrategy
	Parallelism          int
}

func DefaultConfig() *Config {
	return &Config{
		CoinbaseMaturity:     101,
		ChannelCapacity:      mustSat(1_000_000),
		FundingAmount:        mustSat(10_000_000),
		ProbeAmount:          mustSat(1),
		InvoiceExpiry:        time.Hour,
		PaymentTimeout:       time.Minute,
		PaymentRetryDelay:    time.Second,
		SyncPollInterval:     100 * time.Millisecond,
		AlreadyExistsDelay:   5 * time.Second,
		ConfirmationBlocks:   6,
		FundingConfirmations: 6,
		MinimumFeeRate:       1,
		FeeStrategy:          chain.FeeStrategyMinimum,
		Parallelism:          1,
	}
}

func mustSat(sat int64) money.Amount {
	a, err := money.FromSatoshi(sat)
	if err != nil {
		panic(err)
	}
	return a
}

// NewConfig overlays the values set in conf on the defaults. Both arguments
// may be nil.
func NewConfig(conf *config.EstablishConfig, strategy *chain.FeeStrategy) (*Config, error) {
	c := DefaultConfig()
	if strategy != nil {
		c.FeeStrategy = *strategy
	}
	if conf == nil {
		return c, nil
	}

	if conf.CoinbaseMaturity != 0 {
		c.CoinbaseMaturity = conf.CoinbaseMaturity
	}
	if conf.ConfirmationBlocks != 0 {
		c.ConfirmationBlocks = conf.ConfirmationBlocks
	}
	if conf.FundingConfirmations != 0 {
		c.FundingConfirmations = conf.FundingConfirmations
	}
	if conf.Parallelism != 0 {
		if conf.Parallelism < 0 {
			return nil, fmt.Errorf("invalid parallelism %d", conf.Parallelism)
		}
		c.Parallelism = conf.Parallelism
	}

	var err error
	if conf.ChannelCapacity != 0 {
		if c.ChannelCapacity, err = money.FromSatoshi(conf.ChannelCapacity); err != nil {
			return nil, fmt.Errorf("channelCapacity: %w", err)
		}
	}
	if conf.FundingAmount != 0 {
		if c.FundingAmount, err = money.FromSatoshi(conf.FundingAmount); err != nil {
			return nil, fmt.Errorf("fundingAmount: %w", err)
		}
	}
	if conf.ProbeAmountMsat != 0 {
		if c.ProbeAmount, err = money.FromMilliSatoshi(conf.ProbeAmountMsat); err != nil {
			return nil, fmt.Errorf("probeAmountMsat: %w", err)
		}
	}

	durations := []struct {
		name  string
		value string
		dst   *time.Duration
	}{
		{"invoiceExpiry", conf.InvoiceExpiry, &c.InvoiceExpiry},
		{"paymentTimeout", conf.PaymentTimeout, &c.PaymentTimeout},
		{"paymentRetryDelay", conf.PaymentRetryDelay, &c.PaymentRetryDelay},
		{"syncPollInterval", conf.SyncPollInterval, &c.SyncPollInterval},
		{"syncTimeout", conf.SyncTimeout, &c.SyncTimeout},
		{"alreadyExistsDelay", conf.AlreadyExistsDelay, &c.AlreadyExistsDelay},
	}
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.name, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("%s: negative duration %v", d.name, v)
		}
		*d.dst = v
	}

	return c, nil
}
