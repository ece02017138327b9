package cln

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/breez/lnunify/codec"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/money"
	"github.com/breez/lnunify/transport"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

// Flavor is the REST server in front of lightningd.
type Flavor int

const (
	// clnrest, shipped with Core Lightning.
	Clnrest Flavor = 0
	// c-lightning-REST.
	Legacy Flavor = 1
)

var OPEN_STATUSES = []string{"CHANNELD_NORMAL"}

// Rpc error codes of lightningd.
const (
	codePayInProgress        = 200
	codePayRouteNotFound     = 205
	codePayRouteTooExpensive = 206
	codePayInvoiceExpired    = 207
	codeFundMaxExceeded      = 300
	codeFundCannotAfford     = 301
	codeFundStillSyncing     = 304
	codeFundPeerNotConnected = 305
	codeFundUnknownPeer      = 306
)

var paymentRules = []lightning.PaymentRule{
	{Match: "ran out of routes", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "no path found", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "insufficient", Result: lightning.PaymentInsufficientBalance},
	{Match: "cannot afford", Result: lightning.PaymentInsufficientBalance},
}

var openChannelRules = []lightning.ChannelOpenRule{
	{Match: "cannot afford", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "insufficient funds", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "still syncing", Result: lightning.ChannelOpenNeedMoreConf},
	{Match: "unknown peer", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "not connected", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "already", Result: lightning.ChannelOpenAlreadyExists},
}

type ClnClient struct {
	transport transport.Transport
	flavor    Flavor
	codec     *codec.Adapter
	params    *chaincfg.Params
}

// NewClnClient connects to the REST api of a Core Lightning node.
func NewClnClient(conf *config.ClnConfig, params *chaincfg.Params) (*ClnClient, error) {
	var opts []transport.Option
	flavor := Clnrest
	if conf.Legacy {
		flavor = Legacy
		macaroon, err := config.ReadMacaroonHex(conf.Macaroon)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			transport.WithHeader("macaroon", macaroon),
			transport.WithHeader("encodingtype", "hex"),
		)
	} else {
		if conf.Rune == "" {
			return nil, fmt.Errorf("CLN: rune not set")
		}
		opts = append(opts, transport.WithHeader("Rune", conf.Rune))
	}

	if conf.CaCert != "" {
		cert, err := config.ReadFileOrContents(conf.CaCert)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithRootCert([]byte(cert)))
	}

	t, err := transport.NewClient(conf.RestAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("CLN: failed to create transport: %w", err)
	}

	return NewClient(t, flavor, params), nil
}

func NewClient(t transport.Transport, flavor Flavor, params *chaincfg.Params) *ClnClient {
	dialect := codec.Cln
	if flavor == Legacy {
		dialect = codec.ClnRestLegacy
	}

	return &ClnClient{
		transport: t,
		flavor:    flavor,
		codec:     codec.For(dialect),
		params:    params,
	}
}

// call invokes an rpc method. clnrest exposes every method as POST
// /v1/<method>, c-lightning-REST has its own routes.
func (c *ClnClient) call(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	resp interface{},
) error {
	if c.flavor == Clnrest && body == nil {
		body = struct{}{}
	}

	raw, err := c.transport.Do(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp == nil {
		return nil
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("CLN: failed to unmarshal %s response: %w", path, err)
	}

	return nil
}

type getInfoResponse struct {
	ID                    string `json:"id"`
	Alias                 string `json:"alias"`
	NumPeers              int    `json:"num_peers"`
	NumPendingChannels    int    `json:"num_pending_channels"`
	NumActiveChannels     int    `json:"num_active_channels"`
	NumInactiveChannels   int    `json:"num_inactive_channels"`
	BlockHeight           uint32 `json:"blockheight"`
	WarningBitcoindSync   string `json:"warning_bitcoind_sync"`
	WarningLightningdSync string `json:"warning_lightningd_sync"`
}

func (c *ClnClient) GetInfo(ctx context.Context) (*lightning.NodeInfo, error) {
	method := "POST"
	if c.flavor == Legacy {
		method = "GET"
	}

	var info getInfoResponse
	err := c.call(ctx, method, "v1/getinfo", nil, &info)
	if err != nil {
		log.Printf("CLN: client.GetInfo() error: %v", err)
		return nil, err
	}

	return &lightning.NodeInfo{
		NodeID:      info.ID,
		Alias:       info.Alias,
		BlockHeight: info.BlockHeight,
		Peers:       info.NumPeers,
		Channels: lightning.ChannelsSummary{
			Active:   info.NumActiveChannels,
			Pending:  info.NumPendingChannels,
			Inactive: info.NumInactiveChannels,
		},
		Synced: info.WarningBitcoindSync == "" && info.WarningLightningdSync == "",
	}, nil
}

type listFundsResponse struct {
	Outputs []struct {
		AmountMsat json.RawMessage `json:"amount_msat"`
		Status     string          `json:"status"`
	} `json:"outputs"`
	Channels []struct {
		OurAmountMsat json.RawMessage `json:"our_amount_msat"`
		State         string          `json:"state"`
	} `json:"channels"`
}

type legacyBalanceResponse struct {
	ConfBalance json.RawMessage `json:"confBalance"`
}

type legacyLocalRemoteBalanceResponse struct {
	LocalBalance json.RawMessage `json:"localBalance"`
}

func (c *ClnClient) GetBalance(ctx context.Context) (*lightning.Balance, error) {
	if c.flavor == Legacy {
		return c.getLegacyBalance(ctx)
	}

	var funds listFundsResponse
	err := c.call(ctx, "POST", "v1/listfunds", nil, &funds)
	if err != nil {
		log.Printf("CLN: client.ListFunds() error: %v", err)
		return nil, err
	}

	var b lightning.Balance
	for _, o := range funds.Outputs {
		if o.Status != "confirmed" {
			continue
		}
		v, err := c.codec.DecodeAmountOrZero(o.AmountMsat)
		if err != nil {
			return nil, fmt.Errorf("CLN: amount_msat: %w", err)
		}
		if b.Onchain, err = b.Onchain.Add(v); err != nil {
			return nil, err
		}
	}

	for _, ch := range funds.Channels {
		if !contains(OPEN_STATUSES, ch.State) {
			continue
		}
		v, err := c.codec.DecodeAmountOrZero(ch.OurAmountMsat)
		if err != nil {
			return nil, fmt.Errorf("CLN: our_amount_msat: %w", err)
		}
		if b.Offchain, err = b.Offchain.Add(v); err != nil {
			return nil, err
		}
	}

	return &b, nil
}

// c-lightning-REST reports balances in satoshi.
func (c *ClnClient) getLegacyBalance(ctx context.Context) (*lightning.Balance, error) {
	var wallet legacyBalanceResponse
	err := c.call(ctx, "GET", "v1/getBalance", nil, &wallet)
	if err != nil {
		log.Printf("CLN: client.GetBalance() error: %v", err)
		return nil, err
	}

	var channels legacyLocalRemoteBalanceResponse
	err = c.call(ctx, "GET", "v1/channel/localremotebal", nil, &channels)
	if err != nil {
		log.Printf("CLN: client.LocalRemoteBal() error: %v", err)
		return nil, err
	}

	sat := c.codec.In(money.Satoshi)
	onchain, err := sat.DecodeAmountOrZero(wallet.ConfBalance)
	if err != nil {
		return nil, fmt.Errorf("CLN: confBalance: %w", err)
	}
	offchain, err := sat.DecodeAmountOrZero(channels.LocalBalance)
	if err != nil {
		return nil, fmt.Errorf("CLN: localBalance: %w", err)
	}

	return &lightning.Balance{
		Onchain:  onchain,
		Offchain: offchain,
	}, nil
}

type invoiceResponse struct {
	Bolt11      string          `json:"bolt11"`
	PaymentHash codec.HexBuffer `json:"payment_hash"`
	ExpiresAt   json.RawMessage `json:"expires_at"`
}

func (c *ClnClient) CreateInvoice(
	ctx context.Context,
	req *lightning.CreateInvoiceRequest,
) (*lightning.Invoice, error) {
	if err := lightning.ValidateInvoiceRequest(req); err != nil {
		return nil, err
	}

	label := fmt.Sprintf("lnunify-%d", time.Now().UnixNano())
	expiry := req.ExpirySeconds()
	body := map[string]interface{}{
		"label":       label,
		"description": req.Memo,
		"expiry":      expiry,
	}
	path := "v1/invoice"
	if c.flavor == Legacy {
		path = "v1/invoice/genInvoice"
		body["amount"] = c.codec.EncodeAmount(req.Amount)
	} else {
		body["amount_msat"] = c.codec.EncodeAmount(req.Amount)
	}

	var resp invoiceResponse
	err := c.call(ctx, "POST", path, body, &resp)
	if err != nil {
		log.Printf("CLN: client.Invoice(%v, %s) error: %v", req.Amount, label, err)
		return nil, err
	}

	invoice := &lightning.Invoice{
		ID:              label,
		Bolt11:          resp.Bolt11,
		PaymentHash:     resp.PaymentHash.String(),
		AmountRequested: req.Amount,
		Status:          lightning.InvoiceUnpaid,
	}

	expiresAt, err := c.codec.DecodeTimestamp(resp.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("CLN: expires_at: %w", err)
	}
	if expiresAt != nil {
		invoice.ExpiresAt = *expiresAt
		invoice.CreatedAt = expiresAt.Add(-req.Expiry)
	}

	lightning.FillInvoiceTimes(invoice, c.params, req.Expiry)
	return invoice, nil
}

type payResponse struct {
	PaymentHash     codec.HexBuffer `json:"payment_hash"`
	PaymentPreimage codec.HexBuffer `json:"payment_preimage"`
	AmountMsat      json.RawMessage `json:"amount_msat"`
	AmountSentMsat  json.RawMessage `json:"amount_sent_msat"`
	Status          string          `json:"status"`
}

func (c *ClnClient) Pay(ctx context.Context, bolt11 string) (*lightning.PaymentOutcome, error) {
	body := map[string]interface{}{"bolt11": bolt11}
	if c.flavor == Legacy {
		body = map[string]interface{}{"invoice": bolt11}
	}

	var resp payResponse
	err := c.call(ctx, "POST", "v1/pay", body, &resp)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("CLN: client.Pay() error: %v", err)
			return nil, err
		}

		return c.paymentFailure(serr)
	}

	switch resp.Status {
	case "pending":
		return nil, &lightning.PaymentError{
			Code:    lightning.PaymentDetailsNotSettled,
			Message: "payment pending",
		}
	case "failed":
		return &lightning.PaymentOutcome{
			Result:      lightning.PaymentFailed,
			PaymentHash: resp.PaymentHash.String(),
		}, nil
	}

	amount, err := c.codec.DecodeAmountOrZero(resp.AmountMsat)
	if err != nil {
		return nil, fmt.Errorf("CLN: amount_msat: %w", err)
	}
	sent, err := c.codec.DecodeAmountOrZero(resp.AmountSentMsat)
	if err != nil {
		return nil, fmt.Errorf("CLN: amount_sent_msat: %w", err)
	}
	fee, err := sent.Sub(amount)
	if err != nil || fee.MilliSatoshi() < 0 {
		fee = money.Amount{}
	}

	return &lightning.PaymentOutcome{
		Result:      lightning.PaymentOk,
		Total:       sent,
		Fee:         fee,
		PaymentHash: resp.PaymentHash.String(),
		Preimage:    resp.PaymentPreimage.String(),
	}, nil
}

func (c *ClnClient) paymentFailure(serr *transport.StatusError) (*lightning.PaymentOutcome, error) {
	msg := serr.Message()
	code, hasCode := serr.Code()
	if hasCode {
		switch code {
		case codePayInProgress:
			return nil, &lightning.PaymentError{
				Code:    lightning.PaymentDetailsNotSettled,
				Message: msg,
			}
		case codePayRouteNotFound:
			return &lightning.PaymentOutcome{Result: lightning.PaymentCouldNotFindRoute, Message: msg}, nil
		case codePayRouteTooExpensive, codePayInvoiceExpired:
			return &lightning.PaymentOutcome{Result: lightning.PaymentFailed, Message: msg}, nil
		}
	}

	result, ok := lightning.MatchPaymentRule(msg, paymentRules)
	if !ok {
		log.Printf("CLN: unclassified payment error %d: %s", code, msg)
	}

	return &lightning.PaymentOutcome{Result: result, Message: msg}, nil
}

type fundChannelResponse struct {
	Txid   string `json:"txid"`
	Outnum uint32 `json:"outnum"`
}

func (c *ClnClient) OpenChannel(
	ctx context.Context,
	req *lightning.OpenChannelRequest,
) (*lightning.ChannelOpenOutcome, error) {
	amount := c.codec.In(money.Satoshi).EncodeAmount(req.Amount)
	body := map[string]interface{}{"id": req.Peer.NodeID}
	feerate := ""
	if req.SatPerVByte > 0 {
		feerate = fmt.Sprintf("%dperkb", req.SatPerVByte*1000)
	}

	path := "v1/fundchannel"
	if c.flavor == Legacy {
		path = "v1/channel/openChannel"
		body["satoshis"] = amount
		if feerate != "" {
			body["feeRate"] = feerate
		}
	} else {
		body["amount"] = amount
		if feerate != "" {
			body["feerate"] = feerate
		}
	}

	var resp fundChannelResponse
	err := c.call(ctx, "POST", path, body, &resp)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("CLN: client.FundChannel(%v, %v) error: %v", req.Peer.NodeID, req.Amount, err)
			return nil, err
		}

		result := classifyOpenError(serr)
		log.Printf("CLN: client.FundChannel(%v, %v) refused: %v: %s", req.Peer.NodeID, req.Amount, result, serr.Message())
		return &lightning.ChannelOpenOutcome{Result: result, Message: serr.Message()}, nil
	}

	outcome := &lightning.ChannelOpenOutcome{Result: lightning.ChannelOpenOk}
	if resp.Txid != "" {
		outcome.ChannelPoint, err = lightning.NewOutPointFromTxid(resp.Txid, resp.Outnum)
		if err != nil {
			log.Printf("CLN: FundChannel returned invalid outpoint. error: %v", err)
			return nil, err
		}
	}

	return outcome, nil
}

func classifyOpenError(serr *transport.StatusError) lightning.ChannelOpenResult {
	if code, ok := serr.Code(); ok {
		switch code {
		case codeFundCannotAfford:
			return lightning.ChannelOpenCannotAffordFunding
		case codeFundStillSyncing:
			return lightning.ChannelOpenNeedMoreConf
		case codeFundPeerNotConnected, codeFundUnknownPeer:
			return lightning.ChannelOpenPeerNotConnected
		case codeFundMaxExceeded:
			return lightning.ChannelOpenError
		}
	}

	result, _ := lightning.MatchChannelOpenRule(serr.Message(), openChannelRules)
	return result
}

func (c *ClnClient) ConnectToPeer(ctx context.Context, peer *lightning.PeerInfo) error {
	path := "v1/connect"
	if c.flavor == Legacy {
		path = "v1/peer/connect"
	}

	err := c.call(ctx, "POST", path, map[string]interface{}{"id": peer.URI()}, nil)
	if err != nil {
		if serr, ok := transport.AsStatusError(err); ok &&
			lightning.ContainsAny(serr.Message(), "already connected") {
			return nil
		}

		log.Printf("CLN: client.Connect(%s) error: %v", peer.URI(), err)
		return fmt.Errorf("CLN: Connect() error: %w", err)
	}

	return nil
}

type newAddrResponse struct {
	Bech32  string `json:"bech32"`
	Address string `json:"address"`
}

func (c *ClnClient) GetDepositAddress(ctx context.Context) (string, error) {
	var resp newAddrResponse
	var err error
	if c.flavor == Legacy {
		err = c.call(ctx, "GET", "v1/newaddr?addrType=bech32", nil, &resp)
	} else {
		err = c.call(ctx, "POST", "v1/newaddr", map[string]interface{}{"addresstype": "bech32"}, &resp)
	}
	if err != nil {
		log.Printf("CLN: client.NewAddr() error: %v", err)
		return "", err
	}

	addr := resp.Bech32
	if addr == "" {
		addr = resp.Address
	}
	if err := lightning.ValidateAddress(addr, c.params); err != nil {
		return "", fmt.Errorf("CLN: %w", err)
	}

	return addr, nil
}

func contains(statuses []string, s string) bool {
	for _, v := range statuses {
		if v == s {
			return true
		}
	}

	return false
}
