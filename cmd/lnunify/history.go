package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/breez/lnunify/postgresql"
	"github.com/urfave/cli"
)

var historyCommand = cli.Command{
	Name:  "history",
	Usage: "Print the recorded establishment transitions, newest first.",
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "database-url",
			Usage: "Postgres database url. Defaults to the databaseUrl of the config.",
		},
		cli.StringFlag{
			Name:  "sender",
			Usage: "Only show transitions of this sender.",
		},
		cli.StringFlag{
			Name:  "receiver",
			Usage: "Only show transitions towards this receiver.",
		},
		cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of transitions.",
			Value: 100,
		},
	},
	Action: history,
}

type transitionOutput struct {
	Time     string `json:"time"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	From     string `json:"from"`
	To       string `json:"to"`
	Detail   string `json:"detail"`
}

func history(ctx *cli.Context) error {
	dbUrl, err := databaseUrl(ctx)
	if err != nil {
		return err
	}

	c, cancel := signalContext()
	defer cancel()

	pool, err := postgresql.PgConnect(c, dbUrl)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	store := postgresql.NewJournalStore(pool)
	transitions, err := store.ListTransitions(c, ctx.String("sender"), ctx.String("receiver"), ctx.Int("limit"))
	if err != nil {
		return err
	}

	result := make([]*transitionOutput, 0, len(transitions))
	for _, t := range transitions {
		result = append(result, &transitionOutput{
			Time:     t.Time.UTC().Format(time.RFC3339Nano),
			Sender:   t.Sender,
			Receiver: t.Receiver,
			From:     t.From.String(),
			To:       t.To.String(),
			Detail:   t.Detail,
		})
	}

	j, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal json: %w", err)
	}

	_, err = os.Stdout.Write(append(j, '\n'))
	return err
}
