package establish

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/lightning"
	"github.com/cenkalti/backoff/v4"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Node is a lightning node taking part in channel establishment. Host and
// Port are the p2p address senders connect to.
type Node struct {
	Name   string
	Client lightning.Client
	Host   string
	Port   uint32
}

// Establisher makes sure senders can pay receivers, opening and funding
// channels as needed. It is meant for test and bootstrap networks where the
// chain source can mine at will.
type Establisher struct {
	chain   chain.Source
	fees    chain.FeeEstimator
	journal Journal
	cfg     *Config
}

// NewEstablisher creates an establisher. fees and journal may be nil, in
// which case the minimum fee rate is used and transitions are only logged.
func NewEstablisher(
	source chain.Source,
	fees chain.FeeEstimator,
	journal Journal,
	cfg *Config,
) *Establisher {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	return &Establisher{
		chain:   source,
		fees:    fees,
		journal: journal,
		cfg:     cfg,
	}
}

// EnsureMaturity mines the blocks missing to reach coinbase maturity, so the
// chain source wallet can fund senders.
func (e *Establisher) EnsureMaturity(ctx context.Context) error {
	height, err := e.chain.GetBlockHeight(ctx)
	if err != nil {
		return fmt.Errorf("GetBlockHeight: %w", err)
	}

	if height >= e.cfg.CoinbaseMaturity {
		return nil
	}

	shortfall := e.cfg.CoinbaseMaturity - height
	log.Printf("Chain at height %d, mining %d blocks to coinbase maturity", height, shortfall)
	if err := e.chain.GenerateBlocks(ctx, shortfall); err != nil {
		return fmt.Errorf("GenerateBlocks(%d): %w", shortfall, err)
	}

	return nil
}

// EstablishAll establishes every sender/receiver pair, running up to
// Parallelism pairs at once. Chain access is serialized across pairs. A
// failing pair does not stop the others; all failures are returned.
func (e *Establisher) EstablishAll(ctx context.Context, senders []*Node, receivers []*Node) error {
	if err := e.EnsureMaturity(ctx); err != nil {
		return err
	}

	serialized := &Establisher{
		chain:   chain.NewSerialized(e.chain),
		fees:    e.fees,
		journal: e.journal,
		cfg:     e.cfg,
	}

	limit := e.cfg.Parallelism
	if limit < 1 {
		limit = 1
	}

	var g errgroup.Group
	g.SetLimit(limit)

	var mtx sync.Mutex
	var result error
	for _, sender := range senders {
		for _, receiver := range receivers {
			if sender == receiver || (sender.Name != "" && sender.Name == receiver.Name) {
				continue
			}

			sender, receiver := sender, receiver
			g.Go(func() error {
				err := serialized.EstablishPair(ctx, sender, receiver)
				if err != nil {
					mtx.Lock()
					result = multierr.Append(result, err)
					mtx.Unlock()
				}
				return nil
			})
		}
	}

	g.Wait()
	return result
}

type pair struct {
	*Establisher
	sender   *Node
	receiver *Node
	peer     *lightning.PeerInfo
	log      *log.Entry
}

// EstablishPair loops between probing a payment from sender to receiver and
// acting on the open channel outcome until the probe succeeds. Only a missing
// route leads to a channel; other failed payments end the pair. Errors are
// returned as *PairError.
func (e *Establisher) EstablishPair(ctx context.Context, sender *Node, receiver *Node) error {
	p := &pair{
		Establisher: e,
		sender:      sender,
		receiver:    receiver,
		log: log.WithFields(log.Fields{
			"sender":   sender.Name,
			"receiver": receiver.Name,
		}),
	}

	state := StateProbePayment
	for {
		if err := ctx.Err(); err != nil {
			return p.fail(state, err)
		}

		var next State
		var detail string
		var err error
		switch state {
		case StateProbePayment:
			next, detail, err = p.probePayment(ctx)
		case StateEnsureChannel:
			next, detail, err = p.ensureChannel(ctx)
		default:
			err = fmt.Errorf("unexpected state %v", state)
		}
		if err != nil {
			return p.fail(state, err)
		}

		p.transition(ctx, state, next, detail)
		if next == StateDone {
			return nil
		}
		state = next
	}
}

func (p *pair) fail(state State, err error) error {
	p.log.Printf("Establishment failed in %v: %v", state, err)
	return &PairError{
		Sender:   p.sender.Name,
		Receiver: p.receiver.Name,
		State:    state,
		Err:      err,
	}
}

func (p *pair) transition(ctx context.Context, from State, to State, detail string) {
	p.log.WithFields(log.Fields{
		"from": from.String(),
		"to":   to.String(),
	}).Info(detail)

	if p.journal == nil {
		return
	}

	err := p.journal.RecordTransition(ctx, &Transition{
		Sender:   p.sender.Name,
		Receiver: p.receiver.Name,
		From:     from,
		To:       to,
		Detail:   detail,
		Time:     time.Now(),
	})
	if err != nil {
		p.log.Printf("RecordTransition(%v -> %v) error: %v", from, to, err)
	}
}

func (p *pair) probePayment(ctx context.Context) (State, string, error) {
	invoice, err := p.receiver.Client.CreateInvoice(ctx, &lightning.CreateInvoiceRequest{
		Amount: p.cfg.ProbeAmount,
		Expiry: p.cfg.InvoiceExpiry,
		Memo:   fmt.Sprintf("probe from %s", p.sender.Name),
	})
	if err != nil {
		return 0, "", fmt.Errorf("CreateInvoice: %w", err)
	}

	outcome, err := p.pay(ctx, invoice.Bolt11)
	if err != nil {
		return 0, "", err
	}

	switch outcome.Result {
	case lightning.PaymentOk:
		return StateDone, fmt.Sprintf("paid %v", invoice.PaymentHash), nil
	case lightning.PaymentCouldNotFindRoute:
		return StateEnsureChannel, fmt.Sprintf("payment %v: %s", outcome.Result, outcome.Message), nil
	default:
		return 0, "", &lightning.PaymentError{
			Code:    lightning.PaymentRejected,
			Message: fmt.Sprintf("%v: %s", outcome.Result, outcome.Message),
		}
	}
}

// pay retries payments that are not settled yet, with a fixed delay, until
// PaymentTimeout expires.
func (p *pair) pay(ctx context.Context, bolt11 string) (*lightning.PaymentOutcome, error) {
	payCtx, cancel := context.WithTimeout(ctx, p.cfg.PaymentTimeout)
	defer cancel()

	var outcome *lightning.PaymentOutcome
	attempt := 0
	op := func() error {
		attempt++
		o, err := p.sender.Client.Pay(payCtx, bolt11)
		if err != nil {
			if lightning.IsRetryablePayment(err) {
				p.log.Printf("Payment attempt %d: %v", attempt, err)
				return err
			}
			return backoff.Permanent(err)
		}

		outcome = o
		return nil
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(p.cfg.PaymentRetryDelay), payCtx)
	err := backoff.Retry(op, b)
	if err != nil {
		if ctx.Err() == nil && errors.Is(payCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %v and %d attempts: %v",
				ErrPaymentTimeout, p.cfg.PaymentTimeout, attempt, err)
		}
		return nil, fmt.Errorf("Pay: %w", err)
	}

	return outcome, nil
}

func (p *pair) ensureChannel(ctx context.Context) (State, string, error) {
	peer, err := p.receiverPeer(ctx)
	if err != nil {
		return 0, "", err
	}

	outcome, err := p.sender.Client.OpenChannel(ctx, &lightning.OpenChannelRequest{
		Peer:        peer,
		Amount:      p.cfg.ChannelCapacity,
		SatPerVByte: p.feeRate(ctx),
	})
	if err != nil {
		return 0, "", fmt.Errorf("OpenChannel: %w", err)
	}

	detail := fmt.Sprintf("open channel %v", outcome.Result)
	switch outcome.Result {
	case lightning.ChannelOpenOk:
		if outcome.ChannelPoint != nil {
			detail = fmt.Sprintf("%s: %v", detail, outcome.ChannelPoint)
		}
		err = p.confirm(ctx, p.cfg.ConfirmationBlocks)
	case lightning.ChannelOpenCannotAffordFunding:
		err = p.fund(ctx)
	case lightning.ChannelOpenPeerNotConnected:
		err = p.sender.Client.ConnectToPeer(ctx, peer)
		if err != nil {
			err = fmt.Errorf("ConnectToPeer(%s): %w", peer.URI(), err)
		}
	case lightning.ChannelOpenNeedMoreConf:
		err = p.confirm(ctx, p.cfg.ConfirmationBlocks)
	case lightning.ChannelOpenAlreadyExists:
		err = sleep(ctx, p.cfg.AlreadyExistsDelay)
	default:
		p.log.Printf("OpenChannel(%s) failed: %s", peer.NodeID, outcome.Message)
		detail = fmt.Sprintf("%s: %s", detail, outcome.Message)
	}
	if err != nil {
		return 0, "", err
	}

	return StateProbePayment, detail, nil
}

func (p *pair) receiverPeer(ctx context.Context) (*lightning.PeerInfo, error) {
	if p.peer != nil {
		return p.peer, nil
	}

	info, err := p.receiver.Client.GetInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetInfo(%s): %w", p.receiver.Name, err)
	}

	p.peer = &lightning.PeerInfo{
		NodeID: info.NodeID,
		Host:   p.receiver.Host,
		Port:   p.receiver.Port,
	}
	return p.peer, nil
}

func (p *pair) feeRate(ctx context.Context) uint64 {
	if p.fees == nil {
		return p.cfg.MinimumFeeRate
	}

	estimation, err := p.fees.EstimateFeeRate(ctx, p.cfg.FeeStrategy)
	if err != nil {
		p.log.Printf("EstimateFeeRate(%v) error, using minimum: %v", p.cfg.FeeStrategy, err)
		return p.cfg.MinimumFeeRate
	}

	return estimation.WholeSatPerVByte(p.cfg.MinimumFeeRate)
}

// fund sends FundingAmount to a fresh address of the sender. If the chain
// source wallet is short, one block is mined and the send retried once.
func (p *pair) fund(ctx context.Context) error {
	addr, err := p.sender.Client.GetDepositAddress(ctx)
	if err != nil {
		return fmt.Errorf("GetDepositAddress: %w", err)
	}

	err = p.chain.SendToAddress(ctx, addr, p.cfg.FundingAmount)
	if errors.Is(err, chain.ErrInsufficientFunds) {
		p.log.Printf("Chain source has insufficient funds, mining a block and retrying")
		if err := p.chain.GenerateBlocks(ctx, 1); err != nil {
			return fmt.Errorf("GenerateBlocks(1): %w", err)
		}
		err = p.chain.SendToAddress(ctx, addr, p.cfg.FundingAmount)
	}
	if err != nil {
		return fmt.Errorf("SendToAddress(%s, %v): %w", addr, p.cfg.FundingAmount, err)
	}

	p.log.Printf("Funded %s with %v", addr, p.cfg.FundingAmount)
	return p.confirm(ctx, p.cfg.FundingConfirmations)
}

func (p *pair) confirm(ctx context.Context, blocks uint32) error {
	if err := p.chain.GenerateBlocks(ctx, blocks); err != nil {
		return fmt.Errorf("GenerateBlocks(%d): %w", blocks, err)
	}

	return p.waitForSync(ctx)
}

// waitForSync polls until both nodes report the chain tip. It only gives up
// when ctx is done or SyncTimeout is set and expires.
func (p *pair) waitForSync(ctx context.Context) error {
	if p.cfg.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.SyncTimeout)
		defer cancel()
	}

	for {
		tip, err := p.chain.GetBlockHeight(ctx)
		if err != nil {
			return fmt.Errorf("GetBlockHeight: %w", err)
		}

		synced := true
		for _, n := range []*Node{p.sender, p.receiver} {
			info, err := n.Client.GetInfo(ctx)
			if err != nil {
				p.log.Printf("%s: GetInfo error while waiting to sync: %v", n.Name, err)
				synced = false
				continue
			}

			if info.BlockHeight < tip {
				p.log.Printf(
					"%s: Waiting to sync. Actual block height: %d, node block height: %d",
					n.Name,
					tip,
					info.BlockHeight,
				)
				synced = false
			}
		}

		if synced {
			p.log.Printf("Synced to blockheight %d", tip)
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for block height %d: %w", tip, ctx.Err())
		case <-time.After(p.cfg.SyncPollInterval):
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
