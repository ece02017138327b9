package config

type NodeRole string

const (
	RoleSender   NodeRole = "sender"
	RoleReceiver NodeRole = "receiver"
)

type NodeConfig struct {
	// Name of the node. Used in logs and in the establishment journal. If
	// empty, the node's alias will be taken instead.
	Name string `json:"name,omitempty"`

	// Role of the node in channel establishment. Senders open channels to
	// receivers. A node without a role is only queried by the balance
	// command.
	Role NodeRole `json:"role,omitempty"`

	// The p2p network location of the lightning node, e.g. `12.34.56.78:9735`
	// or `localhost:9735`. Senders connect to receivers on this address.
	Host string `json:"host"`

	// Set this field to connect to an LND node.
	Lnd *LndConfig `json:"lnd,omitempty"`

	// Set this field to connect to a CLN node.
	Cln *ClnConfig `json:"cln,omitempty"`

	// Set this field to connect to an Eclair node.
	Eclair *EclairConfig `json:"eclair,omitempty"`
}

type LndConfig struct {
	// Address of the REST api, e.g. `https://localhost:8080`.
	RestAddress string `json:"restAddress"`

	// tls cert for the REST api. Can either be a file path or the cert
	// contents. Typically stored in `lnd-dir/tls.cert`.
	Cert string `json:"cert"`

	// Hex encoded macaroon to use. Can either be a file path to the binary
	// macaroon or the hex contents.
	Macaroon string `json:"macaroon"`
}

type ClnConfig struct {
	// Address of the REST api. For clnrest this is typically
	// `https://localhost:3010`.
	RestAddress string `json:"restAddress"`

	// Rune used to authenticate to clnrest.
	Rune string `json:"rune,omitempty"`

	// Set to true when the node exposes c-lightning-REST instead of
	// clnrest.
	Legacy bool `json:"legacy,omitempty"`

	// Hex encoded macaroon for c-lightning-REST. Can either be a file path
	// to the binary macaroon or the hex contents. Typically stored in
	// `c-lightning-REST/certs/access.macaroon`.
	Macaroon string `json:"macaroon,omitempty"`

	// CA cert for the REST api. Can either be a file path or the cert
	// contents.
	CaCert string `json:"caCert,omitempty"`
}

type EclairConfig struct {
	// Address of the REST api, e.g. `http://localhost:8080`.
	RestAddress string `json:"restAddress"`

	// The api password, `eclair.api.password` in eclair.conf.
	Password string `json:"password"`
}

type BitcoindConfig struct {
	// Rpc host including the scheme, e.g. `http://localhost`.
	Host string `json:"host"`

	// Rpc port, 18443 on regtest.
	RpcPort uint32 `json:"rpcPort,string"`

	// Data directory of bitcoind.
	Dir string `json:"dir"`

	RpcUser string `json:"rpcUser"`
	RpcPass string `json:"rpcPass"`

	// Rpc timeout in seconds. Defaults to 2.
	TimeoutSeconds uint32 `json:"timeoutSeconds,string,omitempty"`
}

type EstablishConfig struct {
	// The chain height below which the miner wallet is mined to coinbase
	// maturity first. Defaults to 101.
	CoinbaseMaturity uint32 `json:"coinbaseMaturity,string,omitempty"`

	// Capacity of the channels opened from senders to receivers. In
	// satoshi.
	ChannelCapacity int64 `json:"channelCapacity,string,omitempty"`

	// Amount sent to a sender that can not afford a channel. In satoshi.
	FundingAmount int64 `json:"fundingAmount,string,omitempty"`

	// Amount of the probe payment. In millisatoshi.
	ProbeAmountMsat int64 `json:"probeAmountMsat,string,omitempty"`

	// Expiry of the probe invoice, e.g. `1h`.
	InvoiceExpiry string `json:"invoiceExpiry,omitempty"`

	// Total time a probe payment may be retried for, e.g. `1m`.
	PaymentTimeout string `json:"paymentTimeout,omitempty"`

	// Delay between probe payment attempts, e.g. `1s`.
	PaymentRetryDelay string `json:"paymentRetryDelay,omitempty"`

	// Interval between block height polls while waiting for nodes to sync.
	SyncPollInterval string `json:"syncPollInterval,omitempty"`

	// Maximum time to wait for nodes to sync. Empty waits indefinitely.
	SyncTimeout string `json:"syncTimeout,omitempty"`

	// Time to wait when a channel to the receiver is already pending.
	AlreadyExistsDelay string `json:"alreadyExistsDelay,omitempty"`

	// Blocks mined when a channel needs more confirmations.
	ConfirmationBlocks uint32 `json:"confirmationBlocks,string,omitempty"`

	// Blocks mined after funding a sender.
	FundingConfirmations uint32 `json:"fundingConfirmations,string,omitempty"`

	// Number of pairs established concurrently.
	Parallelism int `json:"parallelism,string,omitempty"`
}
