package main

import (
	"os"

	"github.com/breez/lnunify/build"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "lnunify"
	app.Version = build.Version()
	app.Usage = "drive LND, CLN and Eclair nodes through one client"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:   "config",
			Usage:  "Path to the json config file, or the json itself.",
			EnvVar: "LNUNIFY_CONFIG",
		},
		cli.StringFlag{
			Name:  "log-level",
			Usage: "One of panic, fatal, error, warn, info, debug, trace.",
			Value: "info",
		},
	}
	app.Before = func(ctx *cli.Context) error {
		level, err := log.ParseLevel(ctx.GlobalString("log-level"))
		if err != nil {
			return err
		}
		log.SetLevel(level)
		return nil
	}
	app.Commands = []cli.Command{
		balanceCommand,
		establishCommand,
		historyCommand,
		migrateCommand,
	}
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
