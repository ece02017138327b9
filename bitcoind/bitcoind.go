package bitcoind

import (
	"context"
	"fmt"
	"strings"

	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/codec"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/money"
	"github.com/niftynei/glightning/gbitcoin"
	log "github.com/sirupsen/logrus"
)

// bitcoinRPC is the subset of bitcoind rpc calls the chain source needs.
type bitcoinRPC interface {
	newAddress() (string, error)
	generate(addr string, n uint) error
	send(addr string, amountBtc string) (string, error)
	blocks() (uint32, error)
}

type gbitcoinRPC struct {
	rpc *gbitcoin.Bitcoin
}

func (g *gbitcoinRPC) newAddress() (string, error) {
	return g.rpc.GetNewAddress(gbitcoin.Bech32)
}

func (g *gbitcoinRPC) generate(addr string, n uint) error {
	_, err := g.rpc.GenerateToAddress(addr, n)
	return err
}

func (g *gbitcoinRPC) send(addr string, amountBtc string) (string, error) {
	return g.rpc.SendToAddress(addr, amountBtc)
}

func (g *gbitcoinRPC) blocks() (uint32, error) {
	info, err := g.rpc.GetChainInfo()
	if err != nil {
		return 0, err
	}

	return info.Blocks, nil
}

// Bitcoind is a chain.Source backed by the wallet of a bitcoind node.
type Bitcoind struct {
	rpc   bitcoinRPC
	codec *codec.Adapter
}

func NewBitcoind(conf *config.BitcoindConfig) *Bitcoind {
	rpc := gbitcoin.NewBitcoin(conf.RpcUser, conf.RpcPass)
	timeout := conf.TimeoutSeconds
	if timeout == 0 {
		timeout = 2
	}
	rpc.SetTimeout(uint(timeout))

	log.Printf("bitcoind: Starting up bitcoin client on %s:%d", conf.Host, conf.RpcPort)
	rpc.StartUp(conf.Host, conf.Dir, uint(conf.RpcPort))
	return newBitcoind(&gbitcoinRPC{rpc: rpc})
}

func newBitcoind(rpc bitcoinRPC) *Bitcoind {
	return &Bitcoind{
		rpc:   rpc,
		codec: codec.For(codec.Bitcoind),
	}
}

func (b *Bitcoind) GetBlockHeight(ctx context.Context) (uint32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	height, err := b.rpc.blocks()
	if err != nil {
		return 0, fmt.Errorf("bitcoind: getblockchaininfo: %w", err)
	}

	return height, nil
}

func (b *Bitcoind) GenerateBlocks(ctx context.Context, n uint32) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	addr, err := b.rpc.newAddress()
	if err != nil {
		return fmt.Errorf("bitcoind: getnewaddress: %w", err)
	}

	log.Printf("bitcoind: Mining %d blocks", n)
	if err := b.rpc.generate(addr, uint(n)); err != nil {
		return fmt.Errorf("bitcoind: generatetoaddress(%d): %w", n, err)
	}

	return nil
}

func (b *Bitcoind) SendToAddress(ctx context.Context, addr string, amount money.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	amountStr := string(b.codec.EncodeAmount(amount))
	log.Printf("bitcoind: Sending %s btc to address %s", amountStr, addr)
	txid, err := b.rpc.send(addr, amountStr)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "insufficient funds") {
			return fmt.Errorf("bitcoind: sendtoaddress(%s, %s): %w", addr, amountStr, chain.ErrInsufficientFunds)
		}
		return fmt.Errorf("bitcoind: sendtoaddress(%s, %s): %w", addr, amountStr, err)
	}

	log.Printf("bitcoind: Sent %s btc to %s in tx %s", amountStr, addr, txid)
	return nil
}
