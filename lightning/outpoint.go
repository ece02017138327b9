package lightning

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	log "github.com/sirupsen/logrus"
)

// NewOutPoint builds a channel point from a funding txid in internal byte
// order, as lnd returns it.
func NewOutPoint(fundingTxID []byte, index uint32) (*wire.OutPoint, error) {
	var h chainhash.Hash
	err := h.SetBytes(fundingTxID)
	if err != nil {
		log.Printf("h.SetBytes(%x) error: %v", fundingTxID, err)
		return nil, err
	}

	return wire.NewOutPoint(&h, index), nil
}

// NewOutPointFromTxid builds a channel point from a txid in display order.
func NewOutPointFromTxid(txid string, index uint32) (*wire.OutPoint, error) {
	h, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return nil, fmt.Errorf("invalid txid %q: %w", txid, err)
	}

	return wire.NewOutPoint(h, index), nil
}

// NewOutPointFromString parses txid:index.
func NewOutPointFromString(outpoint string) (*wire.OutPoint, error) {
	split := strings.Split(outpoint, ":")
	if len(split) != 2 {
		return nil, fmt.Errorf("invalid outpoint %q", outpoint)
	}

	outnum, err := strconv.ParseUint(split[1], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid outpoint %q", outpoint)
	}

	return NewOutPointFromTxid(split[0], uint32(outnum))
}
