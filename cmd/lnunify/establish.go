package main

import (
	"fmt"

	"github.com/breez/lnunify"
	"github.com/breez/lnunify/postgresql"
	"github.com/urfave/cli"
)

var establishCommand = cli.Command{
	Name:  "establish",
	Usage: "Open and fund channels until every sender node can pay every receiver node.",
	Flags: []cli.Flag{
		cli.BoolFlag{
			Name:  "auto-migrate",
			Usage: "Migrate the journal database before establishing.",
		},
	},
	Action: establish,
}

func establish(ctx *cli.Context) error {
	conf, err := loadConfig(ctx)
	if err != nil {
		return err
	}

	if ctx.Bool("auto-migrate") && conf.DatabaseUrl != "" {
		if err := postgresql.Migrate(conf.DatabaseUrl); err != nil {
			return fmt.Errorf("failed to migrate postgres database: %w", err)
		}
	}

	c, cancel := signalContext()
	defer cancel()

	nodes, err := lnunify.InitializeNodes(c, conf)
	if err != nil {
		return fmt.Errorf("failed to initialize nodes: %w", err)
	}

	return lnunify.Establish(c, conf, nodes)
}
