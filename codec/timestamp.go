package codec

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DecodeTimestamp decodes an epoch number, a numeric string, or the
// dialect's timestamp object. A null or absent token decodes to nil.
func (a *Adapter) DecodeTimestamp(raw json.RawMessage) (*time.Time, error) {
	token := bytes.TrimSpace(raw)
	if len(token) == 0 || bytes.Equal(token, jsonNull) {
		return nil, nil
	}

	switch token[0] {
	case '{':
		if a.timestampField == "" {
			return nil, a.malformedTimestamp(token, nil)
		}

		var fields map[string]json.RawMessage
		if err := json.Unmarshal(token, &fields); err != nil {
			return nil, a.malformedTimestamp(token, err)
		}
		v, ok := fields[a.timestampField]
		if !ok {
			return nil, a.malformedTimestamp(token, nil)
		}
		t, err := a.WithEpoch(a.fieldEpoch).DecodeTimestamp(v)
		if err != nil || t == nil {
			return nil, a.malformedTimestamp(token, err)
		}
		return t, nil
	case '"':
		var s string
		if err := json.Unmarshal(token, &s); err != nil {
			return nil, a.malformedTimestamp(token, err)
		}
		return a.decodeEpoch(strings.TrimSpace(s), token)
	default:
		return a.decodeEpoch(string(token), token)
	}
}

// EncodeTimestamp renders t as an epoch number in the dialect's resolution.
// Times before the epoch encode as 0.
func (a *Adapter) EncodeTimestamp(t time.Time) json.RawMessage {
	if t.Before(time.Unix(0, 0)) {
		return json.RawMessage("0")
	}

	var v int64
	if a.epoch == time.Millisecond {
		v = t.UnixMilli()
	} else {
		v = t.Unix()
	}

	return json.RawMessage(strconv.FormatInt(v, 10))
}

func (a *Adapter) decodeEpoch(s string, token []byte) (*time.Time, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, a.malformedTimestamp(token, err)
	}

	var t time.Time
	if a.epoch == time.Millisecond {
		ms := d.Round(0)
		if !ms.Equal(decimal.NewFromInt(ms.IntPart())) {
			return nil, a.malformedTimestamp(token, nil)
		}
		t = time.UnixMilli(ms.IntPart())
	} else {
		sec := d.Floor()
		if !sec.Equal(decimal.NewFromInt(sec.IntPart())) {
			return nil, a.malformedTimestamp(token, nil)
		}
		nsec := d.Sub(sec).Shift(9).Round(0).IntPart()
		t = time.Unix(sec.IntPart(), nsec)
	}

	return &t, nil
}

func (a *Adapter) malformedTimestamp(token []byte, err error) error {
	return &MalformedError{
		Kind:    KindTimestamp,
		Dialect: a.dialect,
		Token:   string(token),
		Err:     err,
	}
}
