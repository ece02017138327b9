package lnunify

import (
	"context"
	"errors"
	"testing"

	"github.com/breez/lnunify/cln"
	"github.com/breez/lnunify/config"
	"github.com/breez/lnunify/eclair"
	"github.com/breez/lnunify/lightning"
	"github.com/breez/lnunify/lnd"
	"github.com/breez/lnunify/money"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_SplitHostPort(t *testing.T) {
	tests := []struct {
		in   string
		host string
		port uint32
		err  bool
	}{
		{"alice:9736", "alice", 9736, false},
		{"10.0.0.1", "10.0.0.1", 9735, false},
		{"[::1]:9735", "::1", 9735, false},
		{"alice:port", "", 0, true},
	}

	for _, tst := range tests {
		host, port, err := splitHostPort(tst.in)
		if tst.err {
			assert.Error(t, err, tst.in)
			continue
		}
		require.NoError(t, err, tst.in)
		assert.Equal(t, tst.host, host)
		assert.Equal(t, tst.port, port)
	}
}

func Test_InitializeNodes(t *testing.T) {
	conf := &config.Config{
		Network: "regtest",
		Nodes: []*config.NodeConfig{
			{Name: "alice", Role: config.RoleSender, Host: "alice:9735", Lnd: &config.LndConfig{RestAddress: "https://alice:8080", Macaroon: "0201"}},
			{Name: "bob", Role: config.RoleReceiver, Host: "bob", Cln: &config.ClnConfig{RestAddress: "https://bob:3010", Rune: "r"}},
			{Name: "carol", Eclair: &config.EclairConfig{RestAddress: "http://carol:8080", Password: "pw"}},
		},
	}

	nodes, err := InitializeNodes(context.Background(), conf)
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	assert.IsType(t, &lnd.LndClient{}, nodes[0].Client)
	assert.IsType(t, &cln.ClnClient{}, nodes[1].Client)
	assert.IsType(t, &eclair.EclairClient{}, nodes[2].Client)
	assert.Equal(t, "bob", nodes[1].Host)
	assert.Equal(t, uint32(9735), nodes[1].Port)
	assert.Equal(t, "", nodes[2].Host)
}

func Test_InitializeNodes_UnknownNetwork(t *testing.T) {
	_, err := InitializeNodes(context.Background(), &config.Config{Network: "litecoin"})
	assert.Error(t, err)
}

type balanceClient struct {
	lightning.Client
	balance *lightning.Balance
	err     error
}

func (c *balanceClient) GetBalance(context.Context) (*lightning.Balance, error) {
	return c.balance, c.err
}

func Test_Balances(t *testing.T) {
	sat, _ := money.FromSatoshi(42)
	nodes := []*Node{
		{Name: "alice", Client: &balanceClient{balance: &lightning.Balance{Onchain: sat}}},
		{Name: "bob", Client: &balanceClient{err: errors.New("down")}},
	}

	balances := Balances(context.Background(), nodes)
	require.Len(t, balances, 2)
	assert.Equal(t, sat, balances[0].Balance.Onchain)
	assert.NoError(t, balances[0].Err)
	assert.Error(t, balances[1].Err)
}
