package chain

import (
	"context"
	"errors"
	"sync"

	"github.com/breez/lnunify/money"
)

var ErrInsufficientFunds = errors.New("insufficient funds")

// Source is the bitcoin backend that mines blocks and funds node wallets.
type Source interface {
	GetBlockHeight(ctx context.Context) (uint32, error)
	GenerateBlocks(ctx context.Context, n uint32) error
	// SendToAddress returns ErrInsufficientFunds when the wallet cannot
	// cover the amount.
	SendToAddress(ctx context.Context, addr string, amount money.Amount) error
}

// Serialized guards a Source with a mutex, so concurrent callers never mine
// or fund at the same time.
type Serialized struct {
	inner Source
	mtx   sync.Mutex
}

func NewSerialized(inner Source) *Serialized {
	if s, ok := inner.(*Serialized); ok {
		return s
	}

	return &Serialized{inner: inner}
}

func (s *Serialized) GetBlockHeight(ctx context.Context) (uint32, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.inner.GetBlockHeight(ctx)
}

func (s *Serialized) GenerateBlocks(ctx context.Context, n uint32) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.inner.GenerateBlocks(ctx, n)
}

func (s *Serialized) SendToAddress(ctx context.Context, addr string, amount money.Amount) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.inner.SendToAddress(ctx, addr, amount)
}
