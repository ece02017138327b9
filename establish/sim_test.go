package establish

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/money"
)

// simNetwork is a regtest stand-in shared by a chain source and nodes.
type simNetwork struct {
	mtx      sync.Mutex
	height   uint32
	invoices map[string]*simNode
	deposits map[string]*simNode
	nonce    int

	// send attempts failing with chain.ErrInsufficientFunds before the
	// chain source wallet pays.
	insufficientFunds int
	sends             []simSend
	mined             []uint32
}

type simSend struct {
	addr   string
	amount money.Amount
	height uint32
}

type simChannel struct {
	fundingHeight uint32
}

func newSimNetwork(height uint32) *simNetwork {
	return &simNetwork{
		height:   height,
		invoices: make(map[string]*simNode),
		deposits: make(map[string]*simNode),
	}
}

func (s *simNetwork) GetBlockHeight(context.Context) (uint32, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.height, nil
}

func (s *simNetwork) GenerateBlocks(_ context.Context, n uint32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.height += n
	s.mined = append(s.mined, n)
	return nil
}

func (s *simNetwork) SendToAddress(_ context.Context, addr string, amount money.Amount) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.insufficientFunds > 0 {
		s.insufficientFunds--
		return chain.ErrInsufficientFunds
	}

	s.sends = append(s.sends, simSend{addr: addr, amount: amount, height: s.height})
	return nil
}

// fund credits n with a confirmed deposit.
func (s *simNetwork) fund(n *simNode, amount money.Amount) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	addr := fmt.Sprintf("bcrt1q%sgenesis", n.id)
	s.deposits[addr] = n
	s.sends = append(s.sends, simSend{addr: addr, amount: amount})
}

func (s *simNetwork) sendCount() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return len(s.sends)
}

// simNode behaves like a lightning node on the sim network. Its view of the
// chain lags one GetInfo call behind the tip.
type simNode struct {
	net       *simNetwork
	id        string
	seen      uint32
	connected map[string]bool
	channels  map[string]*simChannel
	spent     money.Amount

	// Pay calls answered with a not settled error before the payment is
	// attempted.
	notSettled int
	payErr     error
	// when set, every attempted payment ends with this result.
	payResult lightning.PaymentResult

	payCalls      int
	addrCalls     int
	openRequests  []*lightning.OpenChannelRequest
	openOutcomes  []lightning.ChannelOpenResult
	connectCalls  int
	getInfoErrors int
	frozenHeight  bool
}

func (s *simNetwork) newNode(id string) *simNode {
	return &simNode{
		net:       s,
		id:        id,
		connected: make(map[string]bool),
		channels:  make(map[string]*simChannel),
	}
}

// balance is the confirmed on-chain balance, less channel funding.
func (n *simNode) balance() money.Amount {
	var total money.Amount
	for _, s := range n.net.sends {
		if n.net.deposits[s.addr] == n && n.net.height > s.height {
			total, _ = total.Add(s.amount)
		}
	}

	b, err := total.Sub(n.spent)
	if err != nil {
		return money.Amount{}
	}
	return b
}

func (n *simNode) GetInfo(context.Context) (*lightning.NodeInfo, error) {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	if n.getInfoErrors > 0 {
		n.getInfoErrors--
		return nil, &lightning.ConnectionError{Op: "getinfo", Err: fmt.Errorf("unavailable")}
	}

	h := n.seen
	if !n.frozenHeight {
		n.seen = n.net.height
	}
	return &lightning.NodeInfo{
		NodeID:      n.id,
		Alias:       n.id,
		BlockHeight: h,
		Synced:      true,
	}, nil
}

func (n *simNode) GetBalance(context.Context) (*lightning.Balance, error) {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	return &lightning.Balance{Onchain: n.balance()}, nil
}

func (n *simNode) CreateInvoice(
	_ context.Context,
	req *lightning.CreateInvoiceRequest,
) (*lightning.Invoice, error) {
	if err := lightning.ValidateInvoiceRequest(req); err != nil {
		return nil, err
	}

	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	n.net.nonce++
	bolt11 := fmt.Sprintf("lnsim%d", n.net.nonce)
	n.net.invoices[bolt11] = n
	now := time.Now()
	return &lightning.Invoice{
		ID:              bolt11,
		Bolt11:          bolt11,
		PaymentHash:     fmt.Sprintf("%064d", n.net.nonce),
		AmountRequested: req.Amount,
		Status:          lightning.InvoiceUnpaid,
		CreatedAt:       now,
		ExpiresAt:       now.Add(req.Expiry),
	}, nil
}

func (n *simNode) Pay(ctx context.Context, bolt11 string) (*lightning.PaymentOutcome, error) {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	n.payCalls++
	if err := ctx.Err(); err != nil {
		return nil, &lightning.ConnectionError{Op: "pay", Err: err}
	}
	if n.payErr != nil {
		return nil, n.payErr
	}
	if n.notSettled > 0 {
		n.notSettled--
		return nil, &lightning.PaymentError{
			Code:    lightning.PaymentDetailsNotSettled,
			Message: "payment is in transition",
		}
	}

	if n.payResult != lightning.PaymentOk {
		return &lightning.PaymentOutcome{Result: n.payResult, Message: "incorrect payment details"}, nil
	}

	dest, ok := n.net.invoices[bolt11]
	if !ok {
		return &lightning.PaymentOutcome{Result: lightning.PaymentFailed, Message: "unknown invoice"}, nil
	}

	ch, ok := n.channels[dest.id]
	if !ok || n.net.height < ch.fundingHeight+2 {
		return &lightning.PaymentOutcome{
			Result:  lightning.PaymentCouldNotFindRoute,
			Message: "unable to find a path to destination",
		}, nil
	}

	return &lightning.PaymentOutcome{Result: lightning.PaymentOk}, nil
}

func (n *simNode) OpenChannel(
	_ context.Context,
	req *lightning.OpenChannelRequest,
) (*lightning.ChannelOpenOutcome, error) {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	n.openRequests = append(n.openRequests, req)

	result := n.open(req)
	n.openOutcomes = append(n.openOutcomes, result)
	return &lightning.ChannelOpenOutcome{Result: result, Message: result.String()}, nil
}

func (n *simNode) open(req *lightning.OpenChannelRequest) lightning.ChannelOpenResult {
	if n.balance().Cmp(req.Amount) < 0 {
		return lightning.ChannelOpenCannotAffordFunding
	}
	if !n.connected[req.Peer.NodeID] {
		return lightning.ChannelOpenPeerNotConnected
	}
	if _, ok := n.channels[req.Peer.NodeID]; ok {
		return lightning.ChannelOpenAlreadyExists
	}

	n.spent, _ = n.spent.Add(req.Amount)
	n.channels[req.Peer.NodeID] = &simChannel{fundingHeight: n.net.height + 1}
	return lightning.ChannelOpenOk
}

func (n *simNode) ConnectToPeer(_ context.Context, peer *lightning.PeerInfo) error {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	n.connectCalls++
	n.connected[peer.NodeID] = true
	return nil
}

func (n *simNode) GetDepositAddress(context.Context) (string, error) {
	n.net.mtx.Lock()
	defer n.net.mtx.Unlock()
	n.addrCalls++
	addr := fmt.Sprintf("bcrt1q%s%d", n.id, n.addrCalls)
	n.net.deposits[addr] = n
	return addr, nil
}

type memJournal struct {
	mtx         sync.Mutex
	transitions []*Transition
}

func (j *memJournal) RecordTransition(_ context.Context, t *Transition) error {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	j.transitions = append(j.transitions, t)
	return nil
}

func (j *memJournal) states(sender string, receiver string) []State {
	j.mtx.Lock()
	defer j.mtx.Unlock()
	var states []State
	for _, t := range j.transitions {
		if t.Sender == sender && t.Receiver == receiver {
			states = append(states, t.To)
		}
	}
	return states
}

type fixedFees struct {
	rate float64
	err  error
}

func (f *fixedFees) EstimateFeeRate(context.Context, chain.FeeStrategy) (*chain.FeeEstimation, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &chain.FeeEstimation{SatPerVByte: f.rate}, nil
}

func testConfig() *Config {
	c := DefaultConfig()
	c.PaymentTimeout = 2 * time.Second
	c.PaymentRetryDelay = time.Millisecond
	c.SyncPollInterval = time.Millisecond
	c.AlreadyExistsDelay = time.Millisecond
	return c
}

func cfgFunding() money.Amount {
	return DefaultConfig().FundingAmount
}

func node(name string, c lightning.Client) *Node {
	return &Node{Name: name, Client: c, Host: name, Port: 9735}
}
