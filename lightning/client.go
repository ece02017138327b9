package lightning

import (
	"context"
	"fmt"
	"time"

	"github.com/breez/lnunify/money"
	"github.com/btcsuite/btcd/wire"
)

type ChannelsSummary struct {
	Active   int
	Pending  int
	Inactive int
}

type NodeInfo struct {
	NodeID      string
	Alias       string
	BlockHeight uint32
	Peers       int
	Channels    ChannelsSummary
	Synced      bool
}

type Balance struct {
	Onchain  money.Amount
	Offchain money.Amount
}

type InvoiceStatus int

const (
	InvoiceUnpaid  InvoiceStatus = 0
	InvoicePaid    InvoiceStatus = 1
	InvoiceExpired InvoiceStatus = 2
)

func (s InvoiceStatus) String() string {
	switch s {
	case InvoicePaid:
		return "paid"
	case InvoiceExpired:
		return "expired"
	default:
		return "unpaid"
	}
}

type Invoice struct {
	ID              string
	Bolt11          string
	PaymentHash     string
	AmountRequested money.Amount
	AmountReceived  money.Amount
	Status          InvoiceStatus
	CreatedAt       time.Time
	ExpiresAt       time.Time
}

type CreateInvoiceRequest struct {
	Amount money.Amount
	Expiry time.Duration
	Memo   string
}

// ExpirySeconds is the expiry in whole seconds, rounded up.
func (r *CreateInvoiceRequest) ExpirySeconds() int64 {
	s := int64(r.Expiry / time.Second)
	if r.Expiry%time.Second != 0 {
		s++
	}
	return s
}

type PaymentResult int

const (
	PaymentOk                  PaymentResult = 0
	PaymentCouldNotFindRoute   PaymentResult = 1
	PaymentFailed              PaymentResult = 2
	PaymentUnknown             PaymentResult = 3
	PaymentInsufficientBalance PaymentResult = 4
)

func (r PaymentResult) String() string {
	switch r {
	case PaymentOk:
		return "Ok"
	case PaymentCouldNotFindRoute:
		return "CouldNotFindRoute"
	case PaymentFailed:
		return "Failed"
	case PaymentInsufficientBalance:
		return "InsufficientBalance"
	default:
		return "Unknown"
	}
}

type PaymentOutcome struct {
	Result      PaymentResult
	Total       money.Amount
	Fee         money.Amount
	PaymentHash string
	Preimage    string
	Message     string
	// Zero when the backend does not report it.
	SettledAt time.Time
}

type ChannelOpenResult int

const (
	ChannelOpenOk                  ChannelOpenResult = 0
	ChannelOpenCannotAffordFunding ChannelOpenResult = 1
	ChannelOpenPeerNotConnected    ChannelOpenResult = 2
	ChannelOpenNeedMoreConf        ChannelOpenResult = 3
	ChannelOpenAlreadyExists       ChannelOpenResult = 4
	ChannelOpenError               ChannelOpenResult = 5
)

func (r ChannelOpenResult) String() string {
	switch r {
	case ChannelOpenOk:
		return "Ok"
	case ChannelOpenCannotAffordFunding:
		return "CannotAffordFunding"
	case ChannelOpenPeerNotConnected:
		return "PeerNotConnected"
	case ChannelOpenNeedMoreConf:
		return "NeedMoreConf"
	case ChannelOpenAlreadyExists:
		return "AlreadyExists"
	default:
		return "Error"
	}
}

type ChannelOpenOutcome struct {
	Result ChannelOpenResult
	// Set when the funding transaction is known.
	ChannelPoint *wire.OutPoint
	Message      string
}

type PeerInfo struct {
	NodeID string
	Host   string
	Port   uint32
}

func (p *PeerInfo) Address() string {
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// URI renders the peer as nodeid@host:port.
func (p *PeerInfo) URI() string {
	return fmt.Sprintf("%s@%s", p.NodeID, p.Address())
}

type OpenChannelRequest struct {
	Peer        *PeerInfo
	Amount      money.Amount
	SatPerVByte uint64
}

// Client is the node protocol every backend implements. Expected refusals
// to open a channel are reported as outcomes, transport failures as
// *ConnectionError.
type Client interface {
	GetInfo(ctx context.Context) (*NodeInfo, error)
	GetBalance(ctx context.Context) (*Balance, error)
	CreateInvoice(ctx context.Context, req *CreateInvoiceRequest) (*Invoice, error)
	Pay(ctx context.Context, bolt11 string) (*PaymentOutcome, error)
	OpenChannel(ctx context.Context, req *OpenChannelRequest) (*ChannelOpenOutcome, error)
	ConnectToPeer(ctx context.Context, peer *PeerInfo) error
	GetDepositAddress(ctx context.Context) (string, error)
}
