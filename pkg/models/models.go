package models

import (
	"math/big"
	"time"
)

// Transaction holds the details shown in the transaction table.
type Transaction struct {
	Hash        string          `json:"hash"`
	Type        TransactionType `json:"type"`
	From        string          `json:"from"`
	To          string          `json:"to"`
	Token       string          `json:"token"`
	Amount      *big.Float      `json:"amount"`
	ValueUSD    float64         `json:"value_usd"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   int64           `json:"timestamp"` // unix seconds
	GasPrice    string          `json:"gas_price"`
	Nonce       uint64          `json:"nonce"`
}

// TokenBalance is one row of the token balances card.
type TokenBalance struct {
	Symbol      string     `json:"symbol"`
	CoinGeckoID string     `json:"coingecko_id,omitempty"`
	Amount      *big.Float `json:"amount"`
	Price       float64    `json:"price"`
	Value       float64    `json:"value"`
}

// Beneficiary is a payee of the fund.
type Beneficiary struct {
	Address         string            `json:"address"`
	Name            string            `json:"name,omitempty"`
	SharePercentage float64           `json:"share_percentage"`
	Status          BeneficiaryStatus `json:"status"`
}

// FundDetails describes the fund contract.
type FundDetails struct {
	Name        string             `json:"name"`
	Address     string             `json:"address,omitempty"`
	Manager     string             `json:"manager,omitempty"`
	Status      FundStatus         `json:"status,omitempty"`
	Strategy    InvestmentStrategy `json:"strategy,omitempty"`
	TotalValue  float64            `json:"total_value"`
	Performance float64            `json:"performance"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Err         string             `json:"error,omitempty"`
}

// FundData is everything both dashboards render. The zero value is the
// "nothing loaded" state.
type FundData struct {
	Address         string         `json:"address,omitempty"`
	Fund            FundDetails    `json:"fund"`
	TotalValue      float64        `json:"total_value"`
	Balances        []TokenBalance `json:"balances"`
	Beneficiaries   []Beneficiary  `json:"beneficiaries"`
	Transactions    []Transaction  `json:"transactions"`
	TotalDeposits   float64        `json:"total_deposits"`
	TotalPayouts    float64        `json:"total_payouts"`
	SharePercentage float64        `json:"share_percentage"`
	MonthlyPayouts  []float64      `json:"monthly_payouts"`
	ValueHistory    []float64      `json:"value_history"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// RPCLatencyData contains the result of a latency check.
type RPCLatencyData struct {
	RPCURL  string
	Latency time.Duration
	Err     error
}

// RPCResult holds check results for a specific RPC URL.
type RPCResult struct {
	Network   string `json:"network"`
	URL       string `json:"url"`
	Status    string `json:"status"` // "ok" or "error"
	ChainID   int64  `json:"chain_id,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ContractResult holds check results for a configured contract.
type ContractResult struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Usable  bool   `json:"usable"`
	Error   string `json:"error,omitempty"`
}

// TokenResult compares a configured token with what the chain reports.
type TokenResult struct {
	Symbol        string `json:"symbol"`
	Address       string `json:"address"`
	Status        string `json:"status"`
	OnChainSymbol string `json:"onchain_symbol,omitempty"`
	Decimals      int    `json:"decimals,omitempty"`
	Error         string `json:"error,omitempty"`
}

// TestReport holds the results of the configuration check.
type TestReport struct {
	ConfigPath      string           `json:"config_path"`
	ValidStructure  bool             `json:"valid_structure"`
	StructureErrors []string         `json:"structure_errors,omitempty"`
	Network         string           `json:"network"`
	RPCs            []RPCResult      `json:"rpcs,omitempty"`
	Contracts       []ContractResult `json:"contracts,omitempty"`
	Tokens          []TokenResult    `json:"tokens,omitempty"`
}
