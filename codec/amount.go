package codec

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/breez/lnunify/money"
	"github.com/shopspring/decimal"
)

var jsonNull = []byte("null")

// DecodeAmount decodes a single JSON token in the adapter's dialect. A null
// or absent token decodes to nil. Values above the representable range are
// clamped to money.MaxAmount.
func (a *Adapter) DecodeAmount(raw json.RawMessage) (*money.Amount, error) {
	token := bytes.TrimSpace(raw)
	if len(token) == 0 || bytes.Equal(token, jsonNull) {
		return nil, nil
	}

	switch token[0] {
	case '{':
		return a.decodeAmountObject(token)
	case '"':
		var s string
		if err := json.Unmarshal(token, &s); err != nil {
			return nil, a.malformedAmount(token, err)
		}
		return a.decodeAmountString(s, token)
	default:
		return a.decodeAmountNumber(string(token), token)
	}
}

// DecodeAmountOrZero is DecodeAmount with a missing value read as zero.
func (a *Adapter) DecodeAmountOrZero(raw json.RawMessage) (money.Amount, error) {
	v, err := a.DecodeAmount(raw)
	if err != nil || v == nil {
		return money.Amount{}, err
	}

	return *v, nil
}

// EncodeAmount renders the amount as a plain JSON number in the dialect's
// integer unit. Coarser units are rounded to the satoshi grid.
func (a *Adapter) EncodeAmount(v money.Amount) json.RawMessage {
	d := v.ToUnit(a.intUnit)
	if a.intUnit == money.BTC {
		return json.RawMessage(d.StringFixed(8))
	}
	if a.intUnit == money.Bit {
		return json.RawMessage(d.StringFixed(2))
	}

	return json.RawMessage(d.String())
}

func (a *Adapter) decodeAmountNumber(s string, token []byte) (*money.Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, a.malformedAmount(token, err)
	}

	unit := a.intUnit
	if strings.ContainsAny(s, ".eE") {
		unit = a.floatUnit
	}

	v, err := money.Clamped(d, unit)
	if err != nil {
		return nil, a.malformedAmount(token, err)
	}

	return &v, nil
}

func (a *Adapter) decodeAmountString(s string, token []byte) (*money.Amount, error) {
	s = strings.TrimSpace(s)
	for _, suffix := range a.suffixes {
		s = strings.TrimSuffix(s, suffix)
	}
	if a.trailingZero {
		s = trimZeroFraction(s)
	}

	if !isDigits(s) {
		return nil, a.malformedAmount(token, nil)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, a.malformedAmount(token, err)
	}

	v, err := money.Clamped(d, a.intUnit)
	if err != nil {
		return nil, a.malformedAmount(token, err)
	}

	return &v, nil
}

func (a *Adapter) decodeAmountObject(token []byte) (*money.Amount, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(token, &fields); err != nil {
		return nil, a.malformedAmount(token, err)
	}

	if len(fields) == 0 {
		if a.emptyIsZero {
			return &money.Amount{}, nil
		}
		return nil, a.malformedAmount(token, nil)
	}

	for _, f := range a.amountFields {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}

		v, err := a.In(f.unit).DecodeAmount(raw)
		if err != nil {
			return nil, a.malformedAmount(token, err)
		}
		if v != nil {
			return v, nil
		}
	}

	return nil, a.malformedAmount(token, nil)
}

func (a *Adapter) malformedAmount(token []byte, err error) error {
	return &MalformedError{
		Kind:    KindAmount,
		Dialect: a.dialect,
		Token:   string(token),
		Err:     err,
	}
}

// trimZeroFraction turns "1000.0" or "1000.000" into "1000".
func trimZeroFraction(s string) string {
	i := strings.IndexByte(s, '.')
	if i < 0 || i == len(s)-1 {
		return s
	}
	if strings.Trim(s[i+1:], "0") != "" {
		return s
	}

	return s[:i]
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}

	return true
}
