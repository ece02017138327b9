package lnunify

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/breez/lnunify/bitcoind"
	"github.com/breez/lnunify/build"
	"github.com/breez/lnunify/chain"
	"github.com/breez/lnunify/cln"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/eclair"
	"github.com/breez/lnunify/establish"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/lnd"
	"github.com/breez/lnunify/mempool"
	"github.com/breez/lnunify/postgresql"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
)

const defaultP2pPort = 9735

type Node struct {
	Config *config.NodeConfig
	Client lightning.Client
	Name   string
	Host   string
	Port   uint32
}

func (n *Node) establishNode() *establish.Node {
	return &establish.Node{
		Name:   n.Name,
		Client: n.Client,
		Host:   n.Host,
		Port:   n.Port,
	}
}

// InitializeNodes creates a client for every configured node. Nodes without
// a name are named after their alias.
func InitializeNodes(ctx context.Context, conf *config.Config) ([]*Node, error) {
	params, err := lightning.Network(conf.Network).Params()
	if err != nil {
		return nil, err
	}

	var nodes []*Node
	for i, nodeConfig := range conf.Nodes {
		client, err := newClient(nodeConfig, params)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}

		node := &Node{
			Config: nodeConfig,
			Client: client,
			Name:   nodeConfig.Name,
		}

		if nodeConfig.Host != "" {
			node.Host, node.Port, err = splitHostPort(nodeConfig.Host)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
		}

		if node.Name == "" {
			info, err := client.GetInfo(ctx)
			if err != nil {
				return nil, fmt.Errorf("node %d: failed to get alias: %w", i, err)
			}
			node.Name = info.Alias
		}

		nodes = append(nodes, node)
	}

	return nodes, nil
}

func newClient(conf *config.NodeConfig, params *chaincfg.Params) (lightning.Client, error) {
	switch {
	case conf.Lnd != nil:
		return lnd.NewLndClient(conf.Lnd, params)
	case conf.Cln != nil:
		return cln.NewClnClient(conf.Cln, params)
	case conf.Eclair != nil:
		return eclair.NewEclairClient(conf.Eclair, params)
	default:
		return nil, fmt.Errorf("node has to be either lnd, cln or eclair")
	}
}

func splitHostPort(hostport string) (string, uint32, error) {
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		// No port given.
		return hostport, defaultP2pPort, nil
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in host %q: %w", hostport, err)
	}

	return host, uint32(port), nil
}

type NodeBalance struct {
	Name    string
	Balance *lightning.Balance
	Err     error
}

// Balances queries the balance of every node. A failing node does not fail
// the others.
func Balances(ctx context.Context, nodes []*Node) []*NodeBalance {
	var result []*NodeBalance
	for _, n := range nodes {
		b, err := n.Client.GetBalance(ctx)
		if err != nil {
			log.Printf("%s: GetBalance error: %v", n.Name, err)
		}
		result = append(result, &NodeBalance{Name: n.Name, Balance: b, Err: err})
	}

	return result
}

// Establish opens and funds channels until every sender can pay every
// receiver.
func Establish(ctx context.Context, conf *config.Config, nodes []*Node) error {
	log.Printf(`Starting establishment, version='%s'`, build.Version())

	if conf.Bitcoind == nil {
		return fmt.Errorf("bitcoind is not configured")
	}

	cfg, err := establish.NewConfig(conf.Establish, conf.FeeStrategy)
	if err != nil {
		return fmt.Errorf("invalid establish config: %w", err)
	}

	var feeEstimator chain.FeeEstimator
	if conf.MempoolApiBaseUrl != nil {
		mempoolClient, err := mempool.NewMempoolClient(*conf.MempoolApiBaseUrl)
		if err != nil {
			return fmt.Errorf("failed to initialize mempool client: %w", err)
		}

		log.Printf("using mempool api for fee estimation: %v, fee strategy: %v", *conf.MempoolApiBaseUrl, cfg.FeeStrategy)
		feeEstimator = chain.NewCachedFeeEstimator(mempoolClient)
	} else {
		feeEstimator = chain.NewDefaultFeeEstimator(float64(cfg.MinimumFeeRate))
	}

	var journal establish.Journal
	if conf.DatabaseUrl != "" {
		pool, err := postgresql.PgConnect(ctx, conf.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("pgConnect() error: %w", err)
		}
		defer pool.Close()
		journal = postgresql.NewJournalStore(pool)
	}

	var senders, receivers []*establish.Node
	for _, n := range nodes {
		switch n.Config.Role {
		case config.RoleSender:
			senders = append(senders, n.establishNode())
		case config.RoleReceiver:
			if n.Host == "" {
				return fmt.Errorf("receiver %s has no host", n.Name)
			}
			receivers = append(receivers, n.establishNode())
		}
	}
	if len(senders) == 0 || len(receivers) == 0 {
		return fmt.Errorf("need at least one sender and one receiver, got %d and %d", len(senders), len(receivers))
	}

	source := bitcoind.NewBitcoind(conf.Bitcoind)
	establisher := establish.NewEstablisher(source, feeEstimator, journal, cfg)
	err = establisher.EstablishAll(ctx, senders, receivers)
	if err != nil {
		return err
	}

	log.Printf("Established %d senders to %d receivers", len(senders), len(receivers))
	return nil
}
