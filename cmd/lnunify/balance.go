package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/breez/lnunify"
	"github.com/breez/lnunify/money"
	"github.com/urfave/cli"
)

var balanceCommand = cli.Command{
	Name:  "balance",
	Usage: "Print the on-chain and channel balance of every configured node.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "unit",
			Usage: "Unit of the printed amounts: msat, sat, bit or btc.",
			Value: "sat",
		},
	},
	Action: balance,
}

type balanceOutput struct {
	Node     string `json:"node"`
	Unit     string `json:"unit"`
	Onchain  string `json:"onchain,omitempty"`
	Offchain string `json:"offchain,omitempty"`
	Error    string `json:"error,omitempty"`
}

func balance(ctx *cli.Context) error {
	unit, err := money.ParseUnit(ctx.String("unit"))
	if err != nil {
		return err
	}

	conf, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	c, cancel := signalContext()
	defer cancel()

	nodes, err := lnunify.InitializeNodes(c, conf)
	if err != nil {
		return fmt.Errorf("failed to initialize nodes: %w", err)
	}

	var result []*balanceOutput
	for _, b := range lnunify.Balances(c, nodes) {
		out := &balanceOutput{Node: b.Name, Unit: unit.String()}
		if b.Err != nil {
			out.Error = b.Err.Error()
		} else {
			out.Onchain = b.Balance.Onchain.ToUnit(unit).String()
			out.Offchain = b.Balance.Offchain.ToUnit(unit).String()
		}
		result = append(result, out)
	}

	j, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}

	_, err = os.Stdout.Write(append(j, '\n'))
	return err
}
