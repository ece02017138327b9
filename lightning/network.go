package lightning

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcutil"
)

type Network string

const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
	Regtest Network = "regtest"
	Simnet  Network = "simnet"
)

func (n Network) Params() (*chaincfg.Params, error) {
	switch n {
	case Mainnet, "bitcoin", "":
		return &chaincfg.MainNetParams, nil
	case Testnet, "testnet3":
		return &chaincfg.TestNet3Params, nil
	case Regtest:
		return &chaincfg.RegressionNetParams, nil
	case Simnet:
		return &chaincfg.SimNetParams, nil
	default:
		return nil, fmt.Errorf("unknown network %q", string(n))
	}
}

// ValidateAddress checks that addr is an address of the given network.
func ValidateAddress(addr string, params *chaincfg.Params) error {
	a, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", addr, err)
	}
	if !a.IsForNet(params) {
		return fmt.Errorf("address %q is not for network %s", addr, params.Name)
	}

	return nil
}
