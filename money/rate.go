package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ExchangeRate is the price of one BTC in fiat units, Base / 10^Offset.
type ExchangeRate struct {
	Base   int64
	Offset int32
}

func (r ExchangeRate) Validate() error {
	if r.Base <= 0 {
		return fmt.Errorf("exchange rate base must be positive, got %d", r.Base)
	}
	if r.Offset < 0 {
		return fmt.Errorf("exchange rate offset must not be negative, got %d", r.Offset)
	}

	return nil
}

func (r ExchangeRate) Price() decimal.Decimal {
	return decimal.New(r.Base, -r.Offset)
}

// RateConverter converts between amounts and minor fiat units (cents for
// a currency with two decimals).
type RateConverter struct {
	Rate         ExchangeRate
	FiatDecimals int32
}

func NewRateConverter(rate ExchangeRate, fiatDecimals int32) (*RateConverter, error) {
	if err := rate.Validate(); err != nil {
		return nil, err
	}
	if fiatDecimals < 0 {
		return nil, fmt.Errorf("fiat decimals must not be negative, got %d", fiatDecimals)
	}

	return &RateConverter{Rate: rate, FiatDecimals: fiatDecimals}, nil
}

// ToAmount converts minor fiat units to an amount:
// msat = minor * 10^(11+offset) / (base * 10^fiatDecimals), rounded once.
func (c *RateConverter) ToAmount(minor int64) (Amount, error) {
	if minor < 0 {
		return Amount{}, fmt.Errorf("%w: %d minor fiat units", errNegative, minor)
	}

	num := decimal.NewFromInt(minor).Shift(BTC.exponent() + c.Rate.Offset)
	den := decimal.NewFromInt(c.Rate.Base).Shift(c.FiatDecimals)
	return FromUnit(num.DivRound(den, 0), MilliSatoshi)
}

// ToFiat converts an amount to minor fiat units, rounded half away from zero.
func (c *RateConverter) ToFiat(a Amount) int64 {
	num := decimal.NewFromInt(a.msat).
		Mul(decimal.NewFromInt(c.Rate.Base)).
		Shift(c.FiatDecimals)
	den := decimal.New(1, BTC.exponent()+c.Rate.Offset)
	return num.DivRound(den, 0).IntPart()
}
