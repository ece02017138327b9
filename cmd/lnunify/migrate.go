package main

import (
	"fmt"

	"github.com/breez/lnunify/postgresql"
	"github.com/urfave/cli"
)

var migrateCommand = cli.Command{
	Name:   "migrate",
	Usage:  "Migrate the journal database to the latest version.",
	Action: migrate,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:  "database-url",
			Usage: "Postgres database url. The configured user needs permissions to create/drop/modify tables. Defaults to the databaseUrl of the config.",
		},
	},
}

func migrate(ctx *cli.Context) error {
	dbUrl, err := databaseUrl(ctx)
	if err != nil {
		return err
	}

	return postgresql.Migrate(dbUrl)
}

func databaseUrl(ctx *cli.Context) (string, error) {
	if url := ctx.String("database-url"); url != "" {
		return url, nil
	}

	conf, err := loadConfig(ctx)
	if err != nil {
		return "", fmt.Errorf("database-url is required: %w", err)
	}
	if conf.DatabaseUrl == "" {
		return "", fmt.Errorf("database-url is required")
	}

	return conf.DatabaseUrl, nil
}
