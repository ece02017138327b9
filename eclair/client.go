package eclair

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/breez/lnunify/codec"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/money"
	"github.com/breez/lnunify/transport"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

const (
	stateNormal  = "NORMAL"
	stateOffline = "OFFLINE"

	peerConnected = "CONNECTED"
)

var pendingStates = []string{
	"WAIT_FOR_INIT_INTERNAL",
	"WAIT_FOR_OPEN_CHANNEL",
	"WAIT_FOR_ACCEPT_CHANNEL",
	"WAIT_FOR_FUNDING_INTERNAL",
	"WAIT_FOR_FUNDING_CREATED",
	"WAIT_FOR_FUNDING_SIGNED",
	"WAIT_FOR_FUNDING_CONFIRMED",
	"WAIT_FOR_CHANNEL_READY",
	"WAIT_FOR_FUNDING_LOCKED",
	"WAIT_FOR_DUAL_FUNDING_CONFIRMED",
	"WAIT_FOR_DUAL_FUNDING_READY",
}

var paymentRules = []lightning.PaymentRule{
	{Match: "route not found", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "no route", Result: lightning.PaymentCouldNotFindRoute},
	{Match: "balance too low", Result: lightning.PaymentInsufficientBalance},
	{Match: "insufficient", Result: lightning.PaymentInsufficientBalance},
	{Match: "incorrectorunknownpaymentdetails", Result: lightning.PaymentFailed},
	{Match: "expired", Result: lightning.PaymentFailed},
}

var openChannelRules = []lightning.ChannelOpenRule{
	{Match: "insufficient funds", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "not enough funds", Result: lightning.ChannelOpenCannotAffordFunding},
	{Match: "no connection to peer", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "not connected", Result: lightning.ChannelOpenPeerNotConnected},
	{Match: "not synchronized", Result: lightning.ChannelOpenNeedMoreConf},
	{Match: "syncing", Result: lightning.ChannelOpenNeedMoreConf},
	{Match: "already", Result: lightning.ChannelOpenAlreadyExists},
}

var fundingTxRegexp = regexp.MustCompile(`fundingTxId=([0-9a-fA-F]{64})`)

type EclairClient struct {
	transport transport.Transport
	codec     *codec.Adapter
	params    *chaincfg.Params
}

// NewEclairClient connects to the REST api of an eclair node.
func NewEclairClient(conf *config.EclairConfig, params *chaincfg.Params) (*EclairClient, error) {
	t, err := transport.NewClient(
		conf.RestAddress,
		transport.WithBasicAuth("", conf.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("Eclair: failed to create transport: %w", err)
	}

	return NewClient(t, params), nil
}

func NewClient(t transport.Transport, params *chaincfg.Params) *EclairClient {
	return &EclairClient{
		transport: t,
		codec:     codec.For(codec.Eclair),
		params:    params,
	}
}

// call posts a form to an eclair endpoint.
func (c *EclairClient) call(
	ctx context.Context,
	path string,
	form url.Values,
	resp interface{},
) error {
	if form == nil {
		form = url.Values{}
	}

	raw, err := c.transport.Do(ctx, "POST", path, form)
	if err != nil {
		return err
	}

	if resp == nil {
		return nil
	}

	if err := json.Unmarshal(raw, resp); err != nil {
		return fmt.Errorf("Eclair: failed to unmarshal %s response: %w", path, err)
	}

	return nil
}

type getInfoResponse struct {
	NodeID      string `json:"nodeId"`
	Alias       string `json:"alias"`
	BlockHeight uint32 `json:"blockHeight"`
}

type peer struct {
	NodeID string `json:"nodeId"`
	State  string `json:"state"`
}

type channel struct {
	NodeID string `json:"nodeId"`
	State  string `json:"state"`
}

func (c *EclairClient) GetInfo(ctx context.Context) (*lightning.NodeInfo, error) {
	var info getInfoResponse
	err := c.call(ctx, "getinfo", nil, &info)
	if err != nil {
		log.Printf("Eclair: client.GetInfo() error: %v", err)
		return nil, err
	}

	var peers []peer
	err = c.call(ctx, "peers", nil, &peers)
	if err != nil {
		log.Printf("Eclair: client.Peers() error: %v", err)
		return nil, err
	}

	var channels []channel
	err = c.call(ctx, "channels", nil, &channels)
	if err != nil {
		log.Printf("Eclair: client.Channels() error: %v", err)
		return nil, err
	}

	result := &lightning.NodeInfo{
		NodeID:      info.NodeID,
		Alias:       info.Alias,
		BlockHeight: info.BlockHeight,
		// eclair only reports a block height once it is synced.
		Synced: info.BlockHeight > 0,
	}
	for _, p := range peers {
		if p.State == peerConnected {
			result.Peers++
		}
	}
	for _, ch := range channels {
		switch {
		case ch.State == stateNormal:
			result.Channels.Active++
		case ch.State == stateOffline:
			result.Channels.Inactive++
		case contains(pendingStates, ch.State):
			result.Channels.Pending++
		}
	}

	return result, nil
}

type globalBalanceResponse struct {
	OnChain struct {
		Confirmed json.RawMessage `json:"confirmed"`
	} `json:"onChain"`
	OffChain struct {
		Normal struct {
			ToLocal json.RawMessage `json:"toLocal"`
		} `json:"normal"`
	} `json:"offChain"`
}

func (c *EclairClient) GetBalance(ctx context.Context) (*lightning.Balance, error) {
	var resp globalBalanceResponse
	err := c.call(ctx, "globalbalance", nil, &resp)
	if err != nil {
		log.Printf("Eclair: client.GlobalBalance() error: %v", err)
		return nil, err
	}

	// globalbalance reports every amount in BTC.
	btc := c.codec.In(money.BTC)
	onchain, err := btc.DecodeAmountOrZero(resp.OnChain.Confirmed)
	if err != nil {
		return nil, fmt.Errorf("Eclair: onChain.confirmed: %w", err)
	}
	offchain, err := btc.DecodeAmountOrZero(resp.OffChain.Normal.ToLocal)
	if err != nil {
		return nil, fmt.Errorf("Eclair: offChain.normal.toLocal: %w", err)
	}

	return &lightning.Balance{
		Onchain:  onchain,
		Offchain: offchain,
	}, nil
}

type invoiceResponse struct {
	Serialized  string          `json:"serialized"`
	PaymentHash string          `json:"paymentHash"`
	Timestamp   json.RawMessage `json:"timestamp"`
	Expiry      int64           `json:"expiry"`
}

func (c *EclairClient) CreateInvoice(
	ctx context.Context,
	req *lightning.CreateInvoiceRequest,
) (*lightning.Invoice, error) {
	if err := lightning.ValidateInvoiceRequest(req); err != nil {
		return nil, err
	}

	var resp invoiceResponse
	err := c.call(ctx, "createinvoice", url.Values{
		"amountMsat":  {string(c.codec.EncodeAmount(req.Amount))},
		"description": {req.Memo},
		"expireIn":    {strconv.FormatInt(req.ExpirySeconds(), 10)},
	}, &resp)
	if err != nil {
		log.Printf("Eclair: client.CreateInvoice(%v) error: %v", req.Amount, err)
		return nil, err
	}

	invoice := &lightning.Invoice{
		ID:              resp.PaymentHash,
		Bolt11:          resp.Serialized,
		PaymentHash:     resp.PaymentHash,
		AmountRequested: req.Amount,
		Status:          lightning.InvoiceUnpaid,
	}

	// Invoice timestamps are in seconds, unlike the rest of the api.
	created, err := c.codec.WithEpoch(time.Second).DecodeTimestamp(resp.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("Eclair: timestamp: %w", err)
	}
	if created != nil {
		invoice.CreatedAt = *created
		expiry := req.Expiry
		if resp.Expiry > 0 {
			expiry = time.Duration(resp.Expiry) * time.Second
		}
		invoice.ExpiresAt = created.Add(expiry)
	}

	lightning.FillInvoiceTimes(invoice, c.params, req.Expiry)
	return invoice, nil
}

type paymentPart struct {
	Amount    json.RawMessage `json:"amount"`
	FeesPaid  json.RawMessage `json:"feesPaid"`
	Timestamp json.RawMessage `json:"timestamp"`
}

type payInvoiceResponse struct {
	Type            string          `json:"type"`
	PaymentHash     string          `json:"paymentHash"`
	PaymentPreimage string          `json:"paymentPreimage"`
	RecipientAmount json.RawMessage `json:"recipientAmount"`
	Parts           []paymentPart   `json:"parts"`
	Failures        json.RawMessage `json:"failures"`
}

func (c *EclairClient) Pay(ctx context.Context, bolt11 string) (*lightning.PaymentOutcome, error) {
	var resp payInvoiceResponse
	err := c.call(ctx, "payinvoice", url.Values{
		"invoice":  {bolt11},
		"blocking": {"true"},
	}, &resp)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("Eclair: client.PayInvoice() error: %v", err)
			return nil, err
		}

		return c.paymentFailure(serr.Message())
	}

	switch resp.Type {
	case "payment-sent":
	case "payment-failed":
		return c.paymentFailure(string(resp.Failures))
	default:
		return nil, &lightning.PaymentError{
			Code:    lightning.PaymentDetailsNotSettled,
			Message: fmt.Sprintf("payment %s", resp.Type),
		}
	}

	outcome := &lightning.PaymentOutcome{
		Result:      lightning.PaymentOk,
		PaymentHash: resp.PaymentHash,
		Preimage:    resp.PaymentPreimage,
	}

	var total, fees money.Amount
	for _, part := range resp.Parts {
		amount, err := c.codec.DecodeAmountOrZero(part.Amount)
		if err != nil {
			return nil, fmt.Errorf("Eclair: parts.amount: %w", err)
		}
		fee, err := c.codec.DecodeAmountOrZero(part.FeesPaid)
		if err != nil {
			return nil, fmt.Errorf("Eclair: parts.feesPaid: %w", err)
		}
		if total, err = money.Sum(total, amount, fee); err != nil {
			return nil, err
		}
		if fees, err = fees.Add(fee); err != nil {
			return nil, err
		}

		settled, err := c.codec.DecodeTimestamp(part.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("Eclair: parts.timestamp: %w", err)
		}
		if settled != nil && settled.After(outcome.SettledAt) {
			outcome.SettledAt = *settled
		}
	}
	outcome.Total = total
	outcome.Fee = fees

	return outcome, nil
}

func (c *EclairClient) paymentFailure(msg string) (*lightning.PaymentOutcome, error) {
	if lightning.ContainsAny(msg, "already been paid", "already paid") {
		return &lightning.PaymentOutcome{Result: lightning.PaymentOk, Message: msg}, nil
	}

	if lightning.ContainsAny(msg, "payment is pending", "already pending") {
		return nil, &lightning.PaymentError{
			Code:    lightning.PaymentDetailsNotSettled,
			Message: msg,
		}
	}

	result, ok := lightning.MatchPaymentRule(msg, paymentRules)
	if !ok {
		log.Printf("Eclair: unclassified payment error: %s", msg)
	}

	return &lightning.PaymentOutcome{Result: result, Message: msg}, nil
}

func (c *EclairClient) OpenChannel(
	ctx context.Context,
	req *lightning.OpenChannelRequest,
) (*lightning.ChannelOpenOutcome, error) {
	form := url.Values{
		"nodeId":          {req.Peer.NodeID},
		"fundingSatoshis": {string(c.codec.In(money.Satoshi).EncodeAmount(req.Amount))},
	}
	if req.SatPerVByte > 0 {
		form.Set("fundingFeerateSatByte", strconv.FormatUint(req.SatPerVByte, 10))
	}

	var msg string
	err := c.call(ctx, "open", form, &msg)
	if err != nil {
		serr, ok := transport.AsStatusError(err)
		if !ok {
			log.Printf("Eclair: client.Open(%v, %v) error: %v", req.Peer.NodeID, req.Amount, err)
			return nil, err
		}

		result, _ := lightning.MatchChannelOpenRule(serr.Message(), openChannelRules)
		log.Printf("Eclair: client.Open(%v, %v) refused: %v: %s", req.Peer.NodeID, req.Amount, result, serr.Message())
		return &lightning.ChannelOpenOutcome{Result: result, Message: serr.Message()}, nil
	}

	if txid, ok := FundingTxID(msg); ok {
		log.Printf("Eclair: opened channel to %v, funding tx %s", req.Peer.NodeID, txid)
	}

	// The output index is not part of the response.
	return &lightning.ChannelOpenOutcome{
		Result:  lightning.ChannelOpenOk,
		Message: msg,
	}, nil
}

// FundingTxID extracts the funding transaction id from the message eclair
// returns for a successful open.
func FundingTxID(msg string) (string, bool) {
	m := fundingTxRegexp.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}

	return m[1], true
}

func (c *EclairClient) ConnectToPeer(ctx context.Context, peer *lightning.PeerInfo) error {
	var msg string
	err := c.call(ctx, "connect", url.Values{"uri": {peer.URI()}}, &msg)
	if err != nil {
		if serr, ok := transport.AsStatusError(err); ok &&
			lightning.ContainsAny(serr.Message(), "already connected") {
			return nil
		}

		log.Printf("Eclair: client.Connect(%s) error: %v", peer.URI(), err)
		return fmt.Errorf("Eclair: Connect() error: %w", err)
	}

	return nil
}

func (c *EclairClient) GetDepositAddress(ctx context.Context) (string, error) {
	var addr string
	err := c.call(ctx, "getnewaddress", nil, &addr)
	if err != nil {
		log.Printf("Eclair: client.GetNewAddress() error: %v", err)
		return "", err
	}

	if err := lightning.ValidateAddress(addr, c.params); err != nil {
		return "", fmt.Errorf("Eclair: %w", err)
	}

	return addr, nil
}

func contains(states []string, s string) bool {
	for _, v := range states {
		if v == s {
			return true
		}
	}

	return false
}
