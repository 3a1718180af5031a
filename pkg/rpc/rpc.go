package rpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"fundboard/pkg/config"
	"fundboard/pkg/models"
	"fundboard/pkg/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

var ChainDataTimeout = 30 * time.Second

// RecentBlocks is how far back FetchTransactions scans.
const RecentBlocks = 10

// GetProvider dials the RPC endpoint configured for network.
func GetProvider(ctx context.Context, cfg config.Config, network string) (*ethclient.Client, error) {
	url := cfg.Provider(network)
	if url == "" {
		return nil, fmt.Errorf("no RPC URL configured for %s", network)
	}
	return ethclient.DialContext(ctx, url)
}

// FetchBalances returns the native balance followed by every configured token
// balance of address. Prices are left at zero.
func FetchBalances(ctx context.Context, rpcURL string, cfg config.Config, address string) ([]models.TokenBalance, error) {
	ctx, cancel := context.WithTimeout(ctx, ChainDataTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()
	return fetchAccountBalances(ctx, client, cfg, address)
}

func fetchAccountBalances(ctx context.Context, client *ethclient.Client, cfg config.Config, address string) ([]models.TokenBalance, error) {
	account := common.HexToAddress(address)

	balance, err := client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}
	balances := []models.TokenBalance{{
		Symbol:      cfg.NativeSymbol,
		CoinGeckoID: cfg.NativeCoinGeckoID,
		Amount:      utils.ToTokenUnits(balance, 18),
	}}

	for _, token := range cfg.Tokens {
		if token.Address == "" || token.Address == config.PlaceholderAddress {
			continue
		}
		bal, err := fetchTokenBalanceInternal(ctx, client, token, account)
		if err != nil {
			return nil, fmt.Errorf("%s balance: %w", token.Symbol, err)
		}
		balances = append(balances, models.TokenBalance{
			Symbol:      token.Symbol,
			CoinGeckoID: token.CoinGeckoID,
			Amount:      bal,
		})
	}
	return balances, nil
}

func fetchTokenBalanceInternal(ctx context.Context, client *ethclient.Client, token config.TokenConfig, account common.Address) (*big.Float, error) {
	// balanceOf(address)
	data := make([]byte, 4+32)
	copy(data[0:4], []byte{0x70, 0xa0, 0x82, 0x31})
	copy(data[4+12:], account.Bytes())
	tokenAddr := common.HexToAddress(token.Address)
	msg := ethereum.CallMsg{To: &tokenAddr, Data: data}
	result, err := client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, err
	}
	return utils.ToTokenUnits(new(big.Int).SetBytes(result), token.Decimals), nil
}

// FetchTransactions scans the most recent blocks for up to limit transactions
// sent from or to address.
func FetchTransactions(ctx context.Context, rpcURL, addressHex, nativeSymbol string, limit int) ([]models.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, ChainDataTimeout)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	targetAddr := common.HexToAddress(addressHex)
	header, err := client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, err
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(chainID)

	txs := []models.Transaction{}
	var blockErr error
	for i := 0; i < RecentBlocks && len(txs) < limit; i++ {
		blockNum := new(big.Int).Sub(header.Number, big.NewInt(int64(i)))
		if blockNum.Sign() < 0 {
			break
		}
		block, err := client.BlockByNumber(ctx, blockNum)
		if err != nil {
			blockErr = err
			continue
		}

		for _, tx := range block.Transactions() {
			if len(txs) >= limit {
				break
			}
			from, err := types.Sender(signer, tx)
			if err != nil {
				continue
			}
			isTo := tx.To() != nil && *tx.To() == targetAddr
			isFrom := from == targetAddr
			if !isTo && !isFrom {
				continue
			}

			t := models.Transaction{
				Hash:        tx.Hash().Hex(),
				Type:        models.TxWithdrawal,
				From:        from.Hex(),
				To:          "Contract",
				Token:       nativeSymbol,
				Amount:      utils.ToTokenUnits(tx.Value(), 18),
				BlockNumber: block.NumberU64(),
				Timestamp:   int64(block.Time()),
				GasPrice:    formatGwei(tx.GasPrice()),
				Nonce:       tx.Nonce(),
			}
			if isTo {
				t.Type = models.TxDeposit
			}
			if tx.To() != nil {
				t.To = tx.To().Hex()
			}
			txs = append(txs, t)
		}
	}

	if blockErr != nil && len(txs) == 0 {
		return nil, blockErr
	}
	return txs, nil
}

func formatGwei(wei *big.Int) string {
	gp := new(big.Float).SetInt(wei)
	gp.Quo(gp, big.NewFloat(1e9))
	f, _ := gp.Float64()
	return fmt.Sprintf("%.2f Gwei", f)
}

// FetchTokenMetadata reads symbol() and decimals() of an ERC-20 token.
func FetchTokenMetadata(ctx context.Context, rpcURL, tokenAddress string) (config.TokenConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return config.TokenConfig{}, err
	}
	defer client.Close()

	targetAddr := common.HexToAddress(tokenAddress)
	// symbol() selector: 0x95d89b41
	symbolData := []byte{0x95, 0xd8, 0x9b, 0x41}
	// decimals() selector: 0x313ce567
	decimalsData := []byte{0x31, 0x3c, 0xe5, 0x67}

	meta := config.TokenConfig{Address: targetAddr.Hex()}
	resSymbol, err := client.CallContract(ctx, ethereum.CallMsg{To: &targetAddr, Data: symbolData}, nil)
	if err == nil {
		meta.Symbol = decodeSymbol(resSymbol)
	}

	resDecimals, err := client.CallContract(ctx, ethereum.CallMsg{To: &targetAddr, Data: decimalsData}, nil)
	if err != nil {
		return config.TokenConfig{}, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	if len(resDecimals) == 0 {
		return config.TokenConfig{}, errors.New("failed to fetch metadata: empty decimals")
	}
	meta.Decimals = int(new(big.Int).SetBytes(resDecimals).Int64())
	return meta, nil
}

func decodeSymbol(res []byte) string {
	switch {
	case len(res) == 32:
		// bytes32
		return string(bytes.TrimRight(res, "\x00"))
	case len(res) >= 64:
		// string
		length := new(big.Int).SetBytes(res[32:64]).Int64()
		if length > 0 && 64+int(length) <= len(res) {
			return string(res[64 : 64+length])
		}
	}
	return ""
}

// FetchChainID returns the chain id reported by the endpoint.
func FetchChainID(ctx context.Context, rpcURL string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	id, err := client.ChainID(ctx)
	if err != nil {
		return 0, err
	}
	return id.Int64(), nil
}

// FetchRPCLatency pings an RPC URL to measure latency.
func FetchRPCLatency(ctx context.Context, rpcURL string) (models.RPCLatencyData, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	defer client.Close()

	_, err = client.HeaderByNumber(ctx, nil)
	if err != nil {
		return models.RPCLatencyData{RPCURL: rpcURL, Err: err}, err
	}
	return models.RPCLatencyData{RPCURL: rpcURL, Latency: time.Since(start)}, nil
}
