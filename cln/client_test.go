package cln

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/money"
	"github.com/breez/lnunify/transport"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type response struct {
	status int
	body   string
}

type recorder struct {
	mtx    sync.Mutex
	bodies map[string]map[string]interface{}
}

func (r *recorder) body(key string) map[string]interface{} {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.bodies[key]
}

func newTestClient(t *testing.T, flavor Flavor, routes map[string]response) (*ClnClient, *recorder) {
	rec := &recorder{bodies: make(map[string]map[string]interface{})}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		body, _ := io.ReadAll(r.Body)
		if len(body) > 0 {
			var m map[string]interface{}
			if json.Unmarshal(body, &m) == nil {
				rec.mtx.Lock()
				rec.bodies[key] = m
				rec.mtx.Unlock()
			}
		}

		resp, ok := routes[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if resp.status != 0 {
			w.WriteHeader(resp.status)
		}
		w.Write([]byte(resp.body))
	}))
	t.Cleanup(srv.Close)

	tr, err := transport.NewClient(srv.URL)
	require.NoError(t, err)
	return NewClient(tr, flavor, &chaincfg.MainNetParams), rec
}

func msat(v int64) money.Amount {
	a, _ := money.FromMilliSatoshi(v)
	return a
}

func Test_GetInfo(t *testing.T) {
	c, _ := newTestClient(t, Clnrest, map[string]response{
		"POST /v1/getinfo": {body: `{"id":"03cc","alias":"bob","num_peers":1,"num_pending_channels":0,"num_active_channels":1,"num_inactive_channels":0,"blockheight":210,"warning_bitcoind_sync":"Bitcoind is not up-to-date with network."}`},
	})

	info, err := c.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "03cc", info.NodeID)
	assert.Equal(t, uint32(210), info.BlockHeight)
	assert.Equal(t, 1, info.Channels.Active)
	assert.False(t, info.Synced)
}

func Test_GetInfo_Legacy(t *testing.T) {
	c, _ := newTestClient(t, Legacy, map[string]response{
		"GET /v1/getinfo": {body: `{"id":"03cc","alias":"bob","num_peers":0,"blockheight":210}`},
	})

	info, err := c.GetInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(210), info.BlockHeight)
	assert.True(t, info.Synced)
}

func Test_GetBalance(t *testing.T) {
	c, _ := newTestClient(t, Clnrest, map[string]response{
		"POST /v1/listfunds": {body: `{
			"outputs": [
				{"amount_msat": 1000000, "status": "confirmed"},
				{"amount_msat": "2000000msat", "status": "confirmed"},
				{"amount_msat": 5000000, "status": "unconfirmed"}
			],
			"channels": [
				{"our_amount_msat": 700000, "state": "CHANNELD_NORMAL"},
				{"our_amount_msat": 900000, "state": "CHANNELD_AWAITING_LOCKIN"}
			]
		}`},
	})

	b, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msat(3_000_000), b.Onchain)
	assert.Equal(t, msat(700_000), b.Offchain)
}

func Test_GetBalance_Legacy(t *testing.T) {
	c, _ := newTestClient(t, Legacy, map[string]response{
		"GET /v1/getBalance":             {body: `{"totalBalance":1500,"confBalance":1000,"unconfBalance":500}`},
		"GET /v1/channel/localremotebal": {body: `{"localBalance":20,"remoteBalance":0,"pendingBalance":0,"inactiveBalance":0}`},
	})

	b, err := c.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, msat(1_000_000), b.Onchain)
	assert.Equal(t, msat(20_000), b.Offchain)
}

func Test_CreateInvoice(t *testing.T) {
	c, rec := newTestClient(t, Clnrest, map[string]response{
		"POST /v1/invoice": {body: `{"bolt11":"lnbc1fake","payment_hash":"ABCD","expires_at":1700003600}`},
	})

	inv, err := c.CreateInvoice(context.Background(), &lightning.CreateInvoiceRequest{
		Amount: msat(1000),
		Expiry: time.Hour,
		Memo:   "probe",
	})
	require.NoError(t, err)
	assert.Equal(t, "abcd", inv.PaymentHash)
	assert.True(t, time.Unix(1700003600, 0).Equal(inv.ExpiresAt))
	assert.True(t, time.Unix(1700000000, 0).Equal(inv.CreatedAt))

	body := rec.body("POST /v1/invoice")
	assert.Equal(t, float64(1000), body["amount_msat"])
	assert.Equal(t, float64(3600), body["expiry"])
	assert.Equal(t, "probe", body["description"])
	assert.NotEmpty(t, body["label"])
}

func Test_CreateInvoice_LegacyBuffer(t *testing.T) {
	c, rec := newTestClient(t, Legacy, map[string]response{
		"POST /v1/invoice/genInvoice": {body: `{"payment_hash":{"type":"Buffer","data":[171,205]},"expires_at":1700003600,"bolt11":"lnbc1fake"}`},
	})

	inv, err := c.CreateInvoice(context.Background(), &lightning.CreateInvoiceRequest{
		Amount: msat(1000),
		Expiry: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "abcd", inv.PaymentHash)
	assert.Equal(t, float64(1000), rec.body("POST /v1/invoice/genInvoice")["amount"])
}

func Test_Pay(t *testing.T) {
	tests := []struct {
		name      string
		flavor    Flavor
		resp      response
		result    lightning.PaymentResult
		retryable bool
	}{
		{"complete", Clnrest, response{body: `{"payment_hash":"aa","payment_preimage":"bb","amount_msat":1000,"amount_sent_msat":1001,"status":"complete"}`}, lightning.PaymentOk, false},
		{"legacy complete", Legacy, response{body: `{"payment_hash":"aa","payment_preimage":"bb","amount_msat":"1000msat","amount_sent_msat":"1001.0msat","status":"complete"}`}, lightning.PaymentOk, false},
		{"route not found", Clnrest, response{status: 500, body: `{"code":205,"message":"Ran out of routes to try"}`}, lightning.PaymentCouldNotFindRoute, false},
		{"legacy route not found", Legacy, response{status: 500, body: `{"error":{"code":205,"message":"Ran out of routes to try"}}`}, lightning.PaymentCouldNotFindRoute, false},
		{"expired", Clnrest, response{status: 500, body: `{"code":207,"message":"Invoice expired"}`}, lightning.PaymentFailed, false},
		{"in progress", Clnrest, response{status: 500, body: `{"code":200,"message":"In progress"}`}, 0, true},
		{"pending", Clnrest, response{body: `{"payment_hash":"aa","status":"pending"}`}, 0, true},
		{"unknown", Clnrest, response{status: 500, body: `{"code":-1,"message":"something odd"}`}, lightning.PaymentUnknown, false},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			c, _ := newTestClient(t, tst.flavor, map[string]response{
				"POST /v1/pay": tst.resp,
			})

			outcome, err := c.Pay(context.Background(), "lnbc1fake")
			if tst.retryable {
				assert.True(t, lightning.IsRetryablePayment(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tst.result, outcome.Result)
			if tst.result == lightning.PaymentOk {
				assert.Equal(t, msat(1001), outcome.Total)
				assert.Equal(t, msat(1), outcome.Fee)
				assert.Equal(t, "bb", outcome.Preimage)
			}
		})
	}
}

func Test_OpenChannel(t *testing.T) {
	tests := []struct {
		name   string
		resp   response
		result lightning.ChannelOpenResult
	}{
		{"ok", response{body: `{"txid":"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b","outnum":0}`}, lightning.ChannelOpenOk},
		{"cannot afford", response{status: 500, body: `{"code":301,"message":"Could not afford 1000000sat using all 0 available UTXOs"}`}, lightning.ChannelOpenCannotAffordFunding},
		{"syncing", response{status: 500, body: `{"code":304,"message":"Still syncing with bitcoin network"}`}, lightning.ChannelOpenNeedMoreConf},
		{"not connected", response{status: 500, body: `{"code":305,"message":"Peer not connected"}`}, lightning.ChannelOpenPeerNotConnected},
		{"unknown peer", response{status: 500, body: `{"code":306,"message":"Unknown peer"}`}, lightning.ChannelOpenPeerNotConnected},
		{"already", response{status: 500, body: `{"code":-1,"message":"Peer already CHANNELD_AWAITING_LOCKIN"}`}, lightning.ChannelOpenAlreadyExists},
		{"other", response{status: 500, body: `{"code":300,"message":"Amount exceeded"}`}, lightning.ChannelOpenError},
	}

	for _, tst := range tests {
		t.Run(tst.name, func(t *testing.T) {
			c, rec := newTestClient(t, Clnrest, map[string]response{
				"POST /v1/fundchannel": tst.resp,
			})

			outcome, err := c.OpenChannel(context.Background(), &lightning.OpenChannelRequest{
				Peer:        &lightning.PeerInfo{NodeID: "02aa", Host: "alice", Port: 9735},
				Amount:      msat(1_000_000_000),
				SatPerVByte: 2,
			})
			require.NoError(t, err)
			assert.Equal(t, tst.result, outcome.Result)

			body := rec.body("POST /v1/fundchannel")
			assert.Equal(t, float64(1_000_000), body["amount"])
			assert.Equal(t, "2000perkb", body["feerate"])
			if tst.result == lightning.ChannelOpenOk {
				require.NotNil(t, outcome.ChannelPoint)
				assert.Equal(t, "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b", outcome.ChannelPoint.Hash.String())
			}
		})
	}
}

func Test_OpenChannel_Legacy(t *testing.T) {
	c, rec := newTestClient(t, Legacy, map[string]response{
		"POST /v1/channel/openChannel": {body: `{"txid":"4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b","outnum":1}`},
	})

	outcome, err := c.OpenChannel(context.Background(), &lightning.OpenChannelRequest{
		Peer:   &lightning.PeerInfo{NodeID: "02aa", Host: "alice", Port: 9735},
		Amount: msat(1_000_000_000),
	})
	require.NoError(t, err)
	assert.Equal(t, lightning.ChannelOpenOk, outcome.Result)
	assert.Equal(t, uint32(1), outcome.ChannelPoint.Index)
	assert.Equal(t, float64(1_000_000), rec.body("POST /v1/channel/openChannel")["satoshis"])
}

func Test_ConnectToPeer(t *testing.T) {
	c, rec := newTestClient(t, Clnrest, map[string]response{
		"POST /v1/connect": {body: `{"id":"02aa","features":"","direction":"out"}`},
	})

	err := c.ConnectToPeer(context.Background(), &lightning.PeerInfo{NodeID: "02aa", Host: "alice", Port: 9735})
	require.NoError(t, err)
	assert.Equal(t, "02aa@alice:9735", rec.body("POST /v1/connect")["id"])
}

func Test_GetDepositAddress(t *testing.T) {
	c, _ := newTestClient(t, Clnrest, map[string]response{
		"POST /v1/newaddr": {body: `{"bech32":"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"}`},
	})
	addr, err := c.GetDepositAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", addr)

	legacy, _ := newTestClient(t, Legacy, map[string]response{
		"GET /v1/newaddr": {body: `{"address":"bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"}`},
	})
	addr, err = legacy.GetDepositAddress(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4", addr)
}
