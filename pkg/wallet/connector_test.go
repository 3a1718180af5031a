package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rpcRequest struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
}

// walletServer fakes a JSON-RPC wallet provider. Handlers map a method to a
// result or, when the value is an error code, to a JSON-RPC error.
func walletServer(t *testing.T, handlers map[string]any) (*httptest.Server, *[]string) {
	t.Helper()
	var mu sync.Mutex
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		mu.Lock()
		seen = append(seen, req.Method)
		mu.Unlock()

		resp := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		switch h := handlers[req.Method].(type) {
		case nil:
			resp["error"] = map[string]any{"code": -32601, "message": "method not found"}
		case int:
			resp["error"] = map[string]any{"code": h, "message": "rejected"}
		default:
			resp["result"] = h
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

const testAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func TestRPCConnector_ConnectAndProbe(t *testing.T) {
	srv, seen := walletServer(t, map[string]any{
		"eth_requestAccounts": []string{"0xab5801a7d398351b8be11c439e05c5b3259aec9b"},
		"eth_accounts":        []string{testAddr},
	})
	c := NewRPCConnector(srv.URL)
	defer func() { _ = c.Disconnect(context.Background()) }()

	acc, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddr, acc.Address, "address is returned checksummed")
	assert.Equal(t, srv.URL, acc.Source)

	acc, err = c.Probe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddr, acc.Address)
	assert.Equal(t, []string{"eth_requestAccounts", "eth_accounts"}, *seen)
}

func TestRPCConnector_NoAccounts(t *testing.T) {
	srv, _ := walletServer(t, map[string]any{"eth_accounts": []string{}})
	c := NewRPCConnector(srv.URL)
	defer func() { _ = c.Disconnect(context.Background()) }()

	_, err := c.Probe(context.Background())
	assert.True(t, errors.Is(err, ErrNoAccounts))
}

func TestRPCConnector_UserRejected(t *testing.T) {
	srv, _ := walletServer(t, map[string]any{"eth_requestAccounts": 4001})
	c := NewRPCConnector(srv.URL)
	defer func() { _ = c.Disconnect(context.Background()) }()

	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestRPCConnector_DisconnectToleratesMissingRevoke(t *testing.T) {
	srv, seen := walletServer(t, map[string]any{"eth_requestAccounts": []string{testAddr}})
	c := NewRPCConnector(srv.URL)
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.NoError(t, c.Disconnect(context.Background()))
	assert.Contains(t, *seen, "wallet_revokePermissions")

	// Nothing left to disconnect.
	assert.NoError(t, c.Disconnect(context.Background()))
}

func TestRPCConnector_DisconnectFailureKeepsClient(t *testing.T) {
	srv, _ := walletServer(t, map[string]any{
		"eth_requestAccounts":      []string{testAddr},
		"wallet_revokePermissions": -32000,
	})
	c := NewRPCConnector(srv.URL)
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.Error(t, c.Disconnect(context.Background()))
	c.mu.Lock()
	assert.NotNil(t, c.client)
	c.client.Close()
	c.client = nil
	c.mu.Unlock()
}

func TestStaticConnector(t *testing.T) {
	_, err := StaticConnector{}.Connect(context.Background())
	assert.ErrorIs(t, err, ErrNoWallet)

	_, err = StaticConnector{Address: "0x123"}.Connect(context.Background())
	assert.Error(t, err)

	acc, err := StaticConnector{Address: "0xab5801a7d398351b8be11c439e05c5b3259aec9b"}.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, testAddr, acc.Address)
	assert.Equal(t, "watch", acc.Source)
	assert.NoError(t, StaticConnector{}.Disconnect(context.Background()))
}

func TestSessionWithStaticConnector(t *testing.T) {
	s := NewSession(StaticConnector{Address: testAddr}, newStore(), nil)
	s.Restore(context.Background())
	assert.True(t, s.State().IsConnected)

	st := s.Disconnect(context.Background())
	assert.False(t, st.IsConnected)
}
