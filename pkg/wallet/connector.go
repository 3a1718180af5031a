package wallet

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	ErrNoAccounts = errors.New("wallet returned no accounts")
	ErrNoWallet   = errors.New("no wallet configured: set wallet_rpc_url or watch_address")
)

// methodNotFound is the JSON-RPC code for an unsupported method.
const methodNotFound = -32601

// RPCConnector talks to a JSON-RPC wallet provider (a node with unlocked
// accounts, or a signer such as Clef/Frame exposing eth_requestAccounts).
type RPCConnector struct {
	URL string

	mu     sync.Mutex
	client *rpc.Client
}

func NewRPCConnector(url string) *RPCConnector {
	return &RPCConnector{URL: url}
}

func (c *RPCConnector) dial(ctx context.Context) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}
	client, err := rpc.DialContext(ctx, c.URL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Connect requests account access, which may prompt the user in the wallet.
func (c *RPCConnector) Connect(ctx context.Context) (*Account, error) {
	return c.accounts(ctx, "eth_requestAccounts")
}

// Probe lists already-authorised accounts without prompting.
func (c *RPCConnector) Probe(ctx context.Context) (*Account, error) {
	return c.accounts(ctx, "eth_accounts")
}

func (c *RPCConnector) accounts(ctx context.Context, method string) (*Account, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	var addrs []common.Address
	if err := client.CallContext(ctx, &addrs, method); err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ErrNoAccounts
	}
	return &Account{Address: addrs[0].Hex(), Source: c.URL}, nil
}

// Disconnect revokes account permissions and closes the client. Providers
// that do not implement wallet_revokePermissions are simply closed.
func (c *RPCConnector) Disconnect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client == nil {
		return nil
	}
	err := c.client.CallContext(ctx, nil, "wallet_revokePermissions", map[string]any{"eth_accounts": map[string]any{}})
	var rpcErr rpc.Error
	if err != nil && !(errors.As(err, &rpcErr) && rpcErr.ErrorCode() == methodNotFound) {
		return err
	}
	c.client.Close()
	c.client = nil
	return nil
}

// StaticConnector connects a fixed, watch-only address.
type StaticConnector struct {
	Address string
}

func (c StaticConnector) Connect(context.Context) (*Account, error) {
	if c.Address == "" {
		return nil, ErrNoWallet
	}
	if !common.IsHexAddress(c.Address) {
		return nil, fmt.Errorf("invalid watch address %q", c.Address)
	}
	return &Account{Address: common.HexToAddress(c.Address).Hex(), Source: "watch"}, nil
}

func (c StaticConnector) Disconnect(context.Context) error { return nil }
