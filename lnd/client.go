package lnd

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/breez/lnunify/codec"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/money"
	"github.com/breez/lnunify/transport"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

var paymentRules = []lightning.PaymentRule{
	{Match: "unable to find a path", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "no_route", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "unable to route", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "insufficient_balance", Result: lightning.PaymentInsufficientBalance},
	{Match: "insufficient local balance", Result: lightning.PaymentInsufficientBalance},
	{Match: "incorrect_or_unknown_payment_details", Result: lightning.PaymentFailed},
	{Match: "invoice expired", Result: lightning.PaymentFailed},
	{Match: "timeout", Result: lightning.PaymentFailed},
}

var openChannelRules = []lightning.ChannelOpenRule{
	{Match: "not enough witness outputs", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "insufficient funds", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "not enough funds", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "is not online", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "not connected", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "wallet is fully synced", Result: lightning.ChannelOpenNeedMoreConf},
	{Match: "not enough confirmations", Result: lightning.ChannelOpenNeedMoreConf},
	{Match: "pending channels exceed maximum", Result: lightning.ChannelOpenAlreadyExists},
	{Match: "already", Result: lightning.ChannelOpenAlreadyExists},
}

// Payments in flight for the same invoice. Paying again later is safe.
var retryablePaymentErrors = []string{
	"payment is in transition",
	"invoice is already being paid",
}

type LndClient struct {
	transport transport.Transport
	codec     *codec.Adapter
	params    *chaincfg.Params
}

// NewLndClient connects to the REST api of an lnd node.
func NewLndClient(conf *config.LndConfig, params *chaincfg.Params) (*LndClient, error) {
	macaroon, err := config.ReadMacaroonHex(conf.Macaroon)
	if err != nil {
		return nil, err
	}

	opts := []transport.Option{
		transport.WithHeader("Grpc-Metadata-macaroon", macaroon),
	}
	if conf.Cert != "" {
		cert, err := config.ReadFileOrContents(conf.Cert)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transport.WithRootCert([]byte(cert)))
	}

	t, err := transport.NewClient(conf.RestAddress, opts...)
	if err != nil {
		return nil, fmt.Errorf("LND: failed to create transport: %w", err)
	}

	return NewClient(t, params), nil
}

func NewClient(t transport.Transport, params *chaincfg.Params) *LndClient {
	return &LndClient{
		transport: t,
		codec:     codec.For(codec.Lnd),
		params:    params,
	}
}

func (c *LndClient) call(
	ctx context.Context,
	method string,
	path string,
	body interface{},
	resp interface{},
) error {
	raw, err := c.transport.Do(ctx, method, path, body)
	if err != nil {
		return err
	}

	if resp == nil {
		return nil
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("LND: failed to unmarshal %s response: %w", path, err)
	}

	return nil
}

type getInfoResponse struct {
	IdentityPubkey      string `json:"identity_pubkey"`
	Alias               string `json:"alias"`
	NumPendingChannels  int    `json:"num_pending_channels"`
	NumActiveChannels   int    `json:"num_active_channels"`
	NumInactiveChannels int    `json:"num_inactive_channels"`
	NumPeers            int    `json:"num_peers"`
	BlockHeight         uint32 `json:"block_height"`
	SyncedToChain       bool   `json:"synced_to_chain"`
}

func (c *LndClient) GetInfo(ctx context.Context) (*lightning.NodeInfo, error) {
	var info getInfoResponse
	err := c.call(ctx, "GET", "v1/getinfo", nil, &info)
	if err != nil {
		log.Printf("LND: client.GetInfo() error: %v", err)
		return nil, err
	}

	return &lightning.NodeInfo{
		NodeID:      info.IdentityPubkey,
		Alias:       info.Alias,
		BlockHeight: info.BlockHeight,
		Peers:       info.NumPeers,
		Channels: lightning.ChannelsSummary{
			Active:   info.NumActiveChannels,
			Pending:  info.NumPendingChannels,
			Inactive: info.NumInactiveChannels,
		},
		Synced: info.SyncedToChain,
	}, nil
}

type walletBalanceResponse struct {
	ConfirmedBalance json.RawMessage `json:"confirmed_balance"`
}

type channelBalanceResponse struct {
	// Deprecated in lnd, reported in satoshi.
	Balance      json.RawMessage `json:"balance"`
	LocalBalance json.RawMessage `json:"local_balance"`
}

func (c *LndClient) GetBalance(ctx context.Context) (*lightning.Balance, error) {
	var wallet walletBalanceResponse
	err := c.call(ctx, "GET", "v1/balance/blockchain", nil, &wallet)
	if err != nil {
		log.Printf("LND: client.WalletBalance() error: %v", err)
		return nil, err
	}

	var channels channelBalanceResponse
	err = c.call(ctx, "GET", "v1/balance/channels", nil, &channels)
	if err != nil {
		log.Printf("LND: client.ChannelBalance() error: %v", err)
		return nil, err
	}

	onchain, err := c.codec.DecodeAmountOrZero(wallet.ConfirmedBalance)
	if err != nil {
		return nil, fmt.Errorf("LND: confirmed_balance: %w", err)
	}

	local := channels.LocalBalance
	if len(local) == 0 {
		local = channels.Balance
	}
	offchain, err := c.codec.DecodeAmountOrZero(local)
	if err != nil {
		return nil, fmt.Errorf("LND: local_balance: %w", err)
	}

	return &lightning.Balance{
		Onchain:  onchain,
		Offchain: offchain,
	}, nil
}

type addInvoiceRequest struct {
	Memo      string          `json:"memo"`
	ValueMsat json.RawMessage `json:"value_msat"`
	Expiry    string          `json:"expiry"`
}

type addInvoiceResponse struct {
	RHash          string `json:"r_hash"`
	PaymentRequest string `json:"payment_request"`
	AddIndex       string `json:"add_index"`
}

func (c *LndClient) CreateInvoice(
	ctx context.Context,
	req *lightning.CreateInvoiceRequest,
) (*lightning.Invoice, error) {
	if err := lightning.ValidateInvoiceRequest(req); err != nil {
		return nil, err
	}

	var resp addInvoiceResponse
	err := c.call(ctx, "POST", "v1/invoices", &addInvoiceRequest{
		Memo:      req.Memo,
		ValueMsat: c.codec.In(money.MilliSatoshi).EncodeAmount(req.Amount),
		Expiry:    strconv.FormatInt(req.ExpirySeconds(), 10),
	}, &resp)
	if err != nil {
		log.Printf("LND: client.AddInvoice(%v) error: %v", req.Amount, err)
		return nil, err
	}

	hash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil {
		return nil, fmt.Errorf("LND: invalid r_hash %q: %w", resp.RHash, err)
	}

	invoice := &lightning.Invoice{
		ID:              hex.EncodeToString(hash),
		Bolt11:          resp.PaymentRequest,
		PaymentHash:     hex.EncodeToString(hash),
		AmountRequested: req.Amount,
		Status:          lightning.InvoiceUnpaid,
	}
	lightning.FillInvoiceTimes(invoice, c.params, req.Expiry)
	return invoice, nil
}

type sendPaymentRequest struct {
	PaymentRequest string `json:"payment_request"`
}

type route struct {
	TotalAmt      json.RawMessage `json:"total_amt"`
	TotalFees     json.RawMessage `json:"total_fees"`
	TotalAmtMsat  json.RawMessage `json:"total_amt_msat"`
	TotalFeesMsat json.RawMessage `json:"total_fees_msat"`
}

type sendPaymentResponse struct {
	PaymentError    string `json:"payment_error"`
	PaymentPreimage string `json:"payment_preimage"`
	PaymentHash     string `json:"payment_hash"`
	PaymentRoute    *route `json:"payment_route"`
}

func (c *LndClient) Pay(ctx context.Context, bolt11 string) (*lightning.PaymentOutcome, error) {
	var resp sendPaymentResponse
	err := c.call(ctx, "POST", "v1/channels/transactions", &sendPaymentRequest{
		PaymentRequest: bolt11,
	}, &resp)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("LND: client.SendPaymentSync() error: %v", err)
			return nil, err
		}

		return c.paymentFailure(serr.Message())
	}

	if resp.PaymentError != "" {
		return c.paymentFailure(resp.PaymentError)
	}

	outcome := &lightning.PaymentOutcome{
		Result:      lightning.PaymentOk,
		PaymentHash: base64ToHex(resp.PaymentHash),
		Preimage:    base64ToHex(resp.PaymentPreimage),
	}
	if resp.PaymentRoute != nil {
		outcome.Total, err = c.routeAmount(resp.PaymentRoute.TotalAmtMsat, resp.PaymentRoute.TotalAmt)
		if err != nil {
			return nil, err
		}
		outcome.Fee, err = c.routeAmount(resp.PaymentRoute.TotalFeesMsat, resp.PaymentRoute.TotalFees)
		if err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

func (c *LndClient) paymentFailure(msg string) (*lightning.PaymentOutcome, error) {
	if lightning.ContainsAny(msg, retryablePaymentErrors...) {
		return nil, &lightning.PaymentError{
			Code:    lightning.PaymentDetailsNotSettled,
			Message: msg,
		}
	}

	if lightning.ContainsAny(msg, "invoice is already paid") {
		return &lightning.PaymentOutcome{Result: lightning.PaymentOk, Message: msg}, nil
	}

	result, ok := lightning.MatchPaymentRule(msg, paymentRules)
	if !ok {
		log.Printf("LND: unclassified payment error: %s", msg)
	}

	return &lightning.PaymentOutcome{Result: result, Message: msg}, nil
}

func (c *LndClient) routeAmount(msat json.RawMessage, sat json.RawMessage) (money.Amount, error) {
	if len(msat) > 0 {
		return c.codec.In(money.MilliSatoshi).DecodeAmountOrZero(msat)
	}

	return c.codec.DecodeAmountOrZero(sat)
}

type openChannelRequest struct {
	NodePubkey         string          `json:"node_pubkey"`
	LocalFundingAmount json.RawMessage `json:"local_funding_amount"`
	SatPerVbyte        string          `json:"sat_per_vbyte,omitempty"`
}

type channelPoint struct {
	FundingTxidBytes string `json:"funding_txid_bytes"`
	FundingTxidStr   string `json:"funding_txid_str"`
	OutputIndex      uint32 `json:"output_index"`
}

func (c *LndClient) OpenChannel(
	ctx context.Context,
	req *lightning.OpenChannelRequest,
) (*lightning.ChannelOpenOutcome, error) {
	pubkey, err := hex.DecodeString(req.Peer.NodeID)
	if err != nil {
		return nil, fmt.Errorf("LND: invalid node id %q: %w", req.Peer.NodeID, err)
	}

	lnReq := &openChannelRequest{
		NodePubkey:         base64.StdEncoding.EncodeToString(pubkey),
		LocalFundingAmount: c.codec.EncodeAmount(req.Amount),
	}
	if req.SatPerVByte > 0 {
		lnReq.SatPerVbyte = strconv.FormatUint(req.SatPerVByte, 10)
	}

	var cp channelPoint
	err = c.call(ctx, "POST", "v1/channels", lnReq, &cp)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("LND: client.OpenChannelSync(%s, %v) error: %v", req.Peer.NodeID, req.Amount, err)
			return nil, err
		}

		msg := serr.Message()
		result, _ := lightning.MatchChannelOpenRule(msg, openChannelRules)
		log.Printf("LND: client.OpenChannelSync(%s, %v) refused: %v: %s", req.Peer.NodeID, req.Amount, result, msg)
		return &lightning.ChannelOpenOutcome{Result: result, Message: msg}, nil
	}

	outcome := &lightning.ChannelOpenOutcome{Result: lightning.ChannelOpenOk}
	if cp.FundingTxidBytes != "" {
		txid, err := base64.StdEncoding.DecodeString(cp.FundingTxidBytes)
		if err != nil {
			return nil, fmt.Errorf("LND: invalid funding_txid_bytes %q: %w", cp.FundingTxidBytes, err)
		}
		outcome.ChannelPoint, err = lightning.NewOutPoint(txid, cp.OutputIndex)
		if err != nil {
			log.Printf("LND: OpenChannel returned invalid outpoint. error: %v", err)
			return nil, err
		}
	} else if cp.FundingTxidStr != "" {
		outcome.ChannelPoint, err = lightning.NewOutPointFromTxid(cp.FundingTxidStr, cp.OutputIndex)
		if err != nil {
			return nil, err
		}
	}

	return outcome, nil
}

type lightningAddress struct {
	Pubkey string `json:"pubkey"`
	Host   string `json:"host"`
}

type connectPeerRequest struct {
	Addr lightningAddress `json:"addr"`
	Perm bool             `json:"perm"`
}

func (c *LndClient) ConnectToPeer(ctx context.Context, peer *lightning.PeerInfo) error {
	err := c.call(ctx, "POST", "v1/peers", &connectPeerRequest{
		Addr: lightningAddress{
			Pubkey: peer.NodeID,
			Host:   peer.Address(),
		},
	}, nil)
	if err != nil {
		if serr, ok := transport.AsStatusError(err); ok &&
			lightning.ContainsAny(serr.Message(), "already connected") {
			return nil
		}

		log.Printf("LND: client.ConnectPeer(%s) error: %v", peer.URI(), err)
		return fmt.Errorf("LND: ConnectPeer() error: %w", err)
	}

	return nil
}

type newAddressResponse struct {
	Address string `json:"address"`
}

func (c *LndClient) GetDepositAddress(ctx context.Context) (string, error) {
	var resp newAddressResponse
	err := c.call(ctx, "GET", "v1/newaddress?type=WITNESS_PUBKEY_HASH", nil, &resp)
	if err != nil {
		log.Printf("LND: client.NewAddress() error: %v", err)
		return "", err
	}

	if err := lightning.ValidateAddress(resp.Address, c.params); err != nil {
		return "", fmt.Errorf("LND: %w", err)
	}

	return resp.Address, nil
}

func base64ToHex(s string) string {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return s
	}

	return hex.EncodeToString(b)
}
