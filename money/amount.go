package money

import (
	"errors"
	"fmt"
	"math"

	"github.com/btcsuite/btcutil"
	"github.com/lightningnetwork/lnd/lnwire"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverflow      = errors.New("amount overflow")
)

const MaxMilliSatoshi int64 = math.MaxInt64

// MaxAmount is the largest representable amount. Decoders clamp to it.
var MaxAmount = Amount{msat: MaxMilliSatoshi}

var (
	maxMsat      = decimal.NewFromInt(MaxMilliSatoshi)
	msatPerSat   = decimal.NewFromInt(1000)
	satExponent  = Satoshi.exponent()
	errNegative  = fmt.Errorf("%w: negative value", ErrInvalidAmount)
	errTooLarge  = fmt.Errorf("%w: value out of range", ErrInvalidAmount)
	errZeroDenom = fmt.Errorf("%w: zero denominator", ErrInvalidAmount)
)

// Amount is an exact amount of millisatoshi. The zero value is zero msat.
type Amount struct {
	msat int64
}

func FromMilliSatoshi(msat int64) (Amount, error) {
	if msat < 0 {
		return Amount{}, fmt.Errorf("%w: %d msat", errNegative, msat)
	}

	return Amount{msat: msat}, nil
}

func FromSatoshi(sat int64) (Amount, error) {
	return FromUnit(decimal.NewFromInt(sat), Satoshi)
}

func FromBTC(btc decimal.Decimal) (Amount, error) {
	return FromUnit(btc, BTC)
}

func FromBit(bits decimal.Decimal) (Amount, error) {
	return FromUnit(bits, Bit)
}

// FromUnit converts v expressed in u to an amount. Fractions of a
// millisatoshi round half away from zero.
func FromUnit(v decimal.Decimal, u Unit) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: %s %s", errNegative, v.String(), u)
	}

	msat := v.Shift(u.exponent()).Round(0)
	if msat.GreaterThan(maxMsat) {
		return Amount{}, fmt.Errorf("%w: %s %s", errTooLarge, v.String(), u)
	}

	return Amount{msat: msat.IntPart()}, nil
}

// Clamped is like FromUnit, but values above the representable range are
// clamped to MaxAmount instead of failing. Negative values still fail.
func Clamped(v decimal.Decimal, u Unit) (Amount, error) {
	if v.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: %s %s", errNegative, v.String(), u)
	}

	msat := v.Shift(u.exponent()).Round(0)
	if msat.GreaterThan(maxMsat) {
		return MaxAmount, nil
	}

	return Amount{msat: msat.IntPart()}, nil
}

func FromLnwire(m lnwire.MilliSatoshi) (Amount, error) {
	if uint64(m) > uint64(MaxMilliSatoshi) {
		return Amount{}, fmt.Errorf("%w: %d msat", errTooLarge, uint64(m))
	}

	return Amount{msat: int64(m)}, nil
}

func FromBtcutil(a btcutil.Amount) (Amount, error) {
	return FromSatoshi(int64(a))
}

func (a Amount) MilliSatoshi() int64 {
	return a.msat
}

// Satoshi returns the amount in whole satoshi, rounded half away from zero.
func (a Amount) Satoshi() int64 {
	return decimal.NewFromInt(a.msat).DivRound(msatPerSat, 0).IntPart()
}

func (a Amount) ToLnwire() lnwire.MilliSatoshi {
	if a.msat < 0 {
		return 0
	}

	return lnwire.MilliSatoshi(a.msat)
}

func (a Amount) ToBtcutil() btcutil.Amount {
	return btcutil.Amount(a.Satoshi())
}

// ToUnit expresses the amount in u. Millisatoshi is exact; every coarser
// unit is rounded to the satoshi grid, half away from zero.
func (a Amount) ToUnit(u Unit) decimal.Decimal {
	d := decimal.NewFromInt(a.msat)
	if u == MilliSatoshi {
		return d
	}

	sat := d.DivRound(msatPerSat, 0)
	return sat.Shift(satExponent - u.exponent())
}

func (a Amount) IsZero() bool {
	return a.msat == 0
}

func (a Amount) Cmp(b Amount) int {
	switch {
	case a.msat < b.msat:
		return -1
	case a.msat > b.msat:
		return 1
	default:
		return 0
	}
}

func (a Amount) Add(b Amount) (Amount, error) {
	sum := a.msat + b.msat
	if (b.msat > 0 && sum < a.msat) || (b.msat < 0 && sum > a.msat) {
		return Amount{}, ErrOverflow
	}

	return Amount{msat: sum}, nil
}

func (a Amount) Sub(b Amount) (Amount, error) {
	diff := a.msat - b.msat
	if (b.msat > 0 && diff > a.msat) || (b.msat < 0 && diff < a.msat) {
		return Amount{}, ErrOverflow
	}

	return Amount{msat: diff}, nil
}

// MulRat multiplies the amount by num/den without intermediate rounding.
// The result is rounded half away from zero to whole millisatoshi.
func (a Amount) MulRat(num int64, den int64) (Amount, error) {
	if den == 0 {
		return Amount{}, errZeroDenom
	}

	r := decimal.NewFromInt(a.msat).
		Mul(decimal.NewFromInt(num)).
		DivRound(decimal.NewFromInt(den), 0)
	if r.GreaterThan(maxMsat) || r.LessThan(maxMsat.Neg().Sub(decimal.NewFromInt(1))) {
		return Amount{}, ErrOverflow
	}

	return Amount{msat: r.IntPart()}, nil
}

func (a Amount) String() string {
	return fmt.Sprintf("%dmsat", a.msat)
}

// Sum adds up the amounts, failing on overflow.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	var err error
	for _, a := range amounts {
		total, err = total.Add(a)
		if err != nil {
			return Amount{}, err
		}
	}

	return total, nil
}

