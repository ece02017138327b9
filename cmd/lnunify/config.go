package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/breez/lnunify/config"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	c := ctx.GlobalString("config")
	if c == "" {
		return nil, fmt.Errorf("config is required, pass --config or set %s", config.EnvConfig)
	}

	return config.LoadConfig(c)
}

// signalContext is canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigs:
			log.Printf("Received stop signal %v. Stopping.", sig)
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigs)
	}()

	return ctx, cancel
}
