package config

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/breez/lnunify/chain"
)

const EnvConfig = "LNUNIFY_CONFIG"

type Config struct {
	// Bitcoin network of the nodes, one of mainnet, testnet, regtest,
	// simnet.
	Network string `json:"network"`

	Nodes []*NodeConfig `json:"nodes"`

	// The chain source used to mine blocks and fund senders.
	Bitcoind *BitcoindConfig `json:"bitcoind,omitempty"`

	Establish *EstablishConfig `json:"establish,omitempty"`

	// Postgres url of the establishment journal. If empty, transitions are
	// only logged.
	DatabaseUrl string `json:"databaseUrl,omitempty"`

	// Base url of a mempool.space api used to estimate channel open fee
	// rates. If nil, the minimum fee rate is used.
	MempoolApiBaseUrl *string `json:"mempoolApiBaseUrl,omitempty"`

	// Fee strategy for channel opens, 0 (fastest) to 4 (minimum). Defaults to
	// minimum.
	FeeStrategy *chain.FeeStrategy `json:"feeStrategy,string,omitempty"`
}

// LoadConfig parses the config from a file path or inline json.
func LoadConfig(pathOrJson string) (*Config, error) {
	data, err := readFileOrContents(pathOrJson)
	if err != nil {
		return nil, err
	}

	var c Config
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// LoadConfigFromEnv loads the config from the LNUNIFY_CONFIG environment
// variable.
func LoadConfigFromEnv() (*Config, error) {
	v := os.Getenv(EnvConfig)
	if v == "" {
		return nil, fmt.Errorf("%s not set", EnvConfig)
	}

	return LoadConfig(v)
}

func (c *Config) Validate() error {
	if len(c.Nodes) == 0 {
		return fmt.Errorf("no nodes configured")
	}

	names := make(map[string]bool)
	for i, n := range c.Nodes {
		backends := 0
		if n.Lnd != nil {
			backends++
		}
		if n.Cln != nil {
			backends++
		}
		if n.Eclair != nil {
			backends++
		}
		if backends != 1 {
			return fmt.Errorf("node %d: exactly one of lnd, cln, eclair must be set", i)
		}

		if n.Role != "" && n.Role != RoleSender && n.Role != RoleReceiver {
			return fmt.Errorf("node %d: invalid role '%s'", i, n.Role)
		}

		if n.Name != "" {
			if names[n.Name] {
				return fmt.Errorf("node %d: duplicate name '%s'", i, n.Name)
			}
			names[n.Name] = true
		}
	}

	return nil
}

// ReadFileOrContents returns the contents of the file at s, or s itself
// when it is not a path to an existing file.
func ReadFileOrContents(s string) (string, error) {
	return readFileOrContents(s)
}

func readFileOrContents(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "-----BEGIN") {
		return s, nil
	}

	data, err := os.ReadFile(trimmed)
	if err == nil {
		return string(data), nil
	}
	if os.IsNotExist(err) {
		return s, nil
	}

	return "", fmt.Errorf("failed to read '%s': %w", trimmed, err)
}

// ReadMacaroonHex returns the hex encoding of a macaroon given either as a
// path to the binary macaroon file or as hex.
func ReadMacaroonHex(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "", fmt.Errorf("macaroon is required")
	}
	if _, err := hex.DecodeString(trimmed); err == nil {
		return strings.ToLower(trimmed), nil
	}

	data, err := os.ReadFile(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to decode macaroon: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("macaroon file '%s' is empty", trimmed)
	}

	return hex.EncodeToString(data), nil
}
