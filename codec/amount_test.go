package codec

import (
	"encoding/json"
	"testing"

	"github.com/breez/lnunify/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msat(v int64) *money.Amount {
	a, err := money.FromMilliSatoshi(v)
	if err != nil {
		panic(err)
	}
	return &a
}

func Test_DecodeAmount(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		token   string
		want    *money.Amount
	}{
		{"lnd integer is sat", Lnd, `1000`, msat(1_000_000)},
		{"lnd string is sat", Lnd, `"1000"`, msat(1_000_000)},
		{"lnd empty object is zero", Lnd, `{}`, msat(0)},
		{"lnd msat object", Lnd, `{"sat":"1","msat":"1500"}`, msat(1500)},
		{"lnd sat object", Lnd, `{"sat":"2"}`, msat(2000)},
		{"lnd null", Lnd, `null`, nil},
		{"lnd absent", Lnd, ``, nil},
		{"cln integer is msat", Cln, `1000`, msat(1000)},
		{"cln msat suffix", Cln, `"1000msat"`, msat(1000)},
		{"legacy trailing fraction", ClnRestLegacy, `"1000.0"`, msat(1000)},
		{"legacy suffix and fraction", ClnRestLegacy, `"1000.000msat"`, msat(1000)},
		{"legacy empty object is zero", ClnRestLegacy, `{}`, msat(0)},
		{"eclair integer is msat", Eclair, `1500`, msat(1500)},
		{"eclair float is btc", Eclair, `0.001`, msat(100_000_000)},
		{"bitcoind float is btc", Bitcoind, `0.00000001`, msat(1000)},
		{"bitcoind integer is btc", Bitcoind, `2`, msat(200_000_000_000)},
		{"overflow clamps", Cln, `99999999999999999999999`, &money.MaxAmount},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			got, err := For(tst.dialect).DecodeAmount(json.RawMessage(tst.token))
			require.NoError(t, err)
			assert.Equal(t, tst.want, got)
		})
	}
}

func Test_DecodeAmount_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		token   string
	}{
		{"negative", Lnd, `-1`},
		{"text", Cln, `"abc"`},
		{"cln fraction", Cln, `"1000.5msat"`},
		{"legacy nonzero fraction", ClnRestLegacy, `"1000.5"`},
		{"cln empty object", Cln, `{}`},
		{"eclair empty object", Eclair, `{}`},
		{"lnd unknown object", Lnd, `{"btc":1}`},
		{"array", Lnd, `[1]`},
		{"bool", Cln, `true`},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			_, err := For(tst.dialect).DecodeAmount(json.RawMessage(tst.token))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedAmount)
			assert.NotErrorIs(t, err, ErrMalformedTimestamp)

			var merr *MalformedError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tst.token, merr.Token)
			assert.Equal(t, tst.dialect, merr.Dialect)
		})
	}
}

func Test_In_OverridesIntegerUnit(t *testing.T) {
	got, err := For(ClnRestLegacy).In(money.Satoshi).DecodeAmount(json.RawMessage(`12`))
	require.NoError(t, err)
	assert.Equal(t, msat(12000), got)

	// the parent adapter is unchanged
	got, err = For(ClnRestLegacy).DecodeAmount(json.RawMessage(`12`))
	require.NoError(t, err)
	assert.Equal(t, msat(12), got)
}

func Test_EncodeAmount(t *testing.T) {
	a := *msat(1_500_000)
	assert.Equal(t, `1500`, string(For(Lnd).EncodeAmount(a)))
	assert.Equal(t, `1500000`, string(For(Cln).EncodeAmount(a)))
	assert.Equal(t, `1500000`, string(For(Eclair).EncodeAmount(a)))
	assert.Equal(t, `0.00001500`, string(For(Bitcoind).EncodeAmount(a)))
}

func Test_EncodeDecode_RoundTrip(t *testing.T) {
	a := *msat(123_456_000)
	for _, d := range []Dialect{Lnd, Cln, ClnRestLegacy, Eclair, Bitcoind} {
		got, err := For(d).DecodeAmount(For(d).EncodeAmount(a))
		require.NoError(t, err, d.String())
		assert.Equal(t, a, *got, d.String())
	}
}
