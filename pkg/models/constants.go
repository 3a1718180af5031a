package models

import (
	"math/big"
	"time"
)

type FundStatus string

const (
	FundStatusActive   FundStatus = "active"
	FundStatusInactive FundStatus = "inactive"
	FundStatusPaused   FundStatus = "paused"
)

type InvestmentStrategy string

const (
	StrategyConservative InvestmentStrategy = "conservative"
	StrategyModerate     InvestmentStrategy = "moderate"
	StrategyAggressive   InvestmentStrategy = "aggressive"
	StrategyCustom       InvestmentStrategy = "custom"
)

type TokenType string

const (
	TokenETH  TokenType = "ETH"
	TokenBTC  TokenType = "BTC"
	TokenUSDC TokenType = "USDC"
	TokenUSDE TokenType = "USDE"
	TokenSTRK TokenType = "STRK"
)

type PayoutFrequency string

const (
	PayoutMonthly   PayoutFrequency = "monthly"
	PayoutQuarterly PayoutFrequency = "quarterly"
	PayoutAnnually  PayoutFrequency = "annually"
	PayoutCustom    PayoutFrequency = "custom"
)

type TransactionType string

const (
	TxDeposit    TransactionType = "deposit"
	TxWithdrawal TransactionType = "withdrawal"
	TxPayout     TransactionType = "payout"
	TxInvestment TransactionType = "investment"
	TxDividend   TransactionType = "dividend"
)

type BeneficiaryStatus string

const (
	BeneficiaryActive   BeneficiaryStatus = "active"
	BeneficiaryInactive BeneficiaryStatus = "inactive"
	BeneficiaryPending  BeneficiaryStatus = "pending"
)

// Role selects which dashboard is shown.
type Role string

const (
	RoleFundManager Role = "FUND_MANAGER"
	RoleBeneficiary Role = "BENEFICIARY"
)

// Title is the heading used for the role.
func (r Role) Title() string {
	if r == RoleBeneficiary {
		return "Beneficiary"
	}
	return "Fund Manager"
}

// MenuItem is an entry of the sidebar.
type MenuItem struct {
	ID    string
	Label string
	Icon  string
}

var SidebarMenuItems = map[Role][]MenuItem{
	RoleFundManager: {
		{ID: "dashboard", Label: "Dashboard", Icon: "📊"},
		{ID: "funds", Label: "Funds", Icon: "💰"},
		{ID: "beneficiaries", Label: "Beneficiaries", Icon: "👥"},
		{ID: "investments", Label: "Investments", Icon: "📈"},
		{ID: "payouts", Label: "Payouts", Icon: "💸"},
		{ID: "transactions", Label: "Transactions", Icon: "📋"},
	},
	RoleBeneficiary: {
		{ID: "dashboard", Label: "Dashboard", Icon: "📊"},
		{ID: "funds", Label: "My Funds", Icon: "💰"},
		{ID: "payouts", Label: "Payouts", Icon: "💸"},
		{ID: "transactions", Label: "History", Icon: "📋"},
	},
}

// MenuFor returns the sidebar for role, defaulting to the fund manager menu.
func MenuFor(r Role) []MenuItem {
	if items, ok := SidebarMenuItems[r]; ok {
		return items
	}
	return SidebarMenuItems[RoleFundManager]
}

// Contract names, used as keys of config.Config.Contracts.
const (
	ContractFund        = "FUND"
	ContractBeneficiary = "BENEFICIARY"
	ContractInvestment  = "INVESTMENT"
	ContractPayout      = "PAYOUT"
)

var ContractNames = []string{ContractFund, ContractBeneficiary, ContractInvestment, ContractPayout}

const (
	PingInterval     = 30 * 24 * time.Hour
	PayoutInterval   = 30 * 24 * time.Hour
	MaxBeneficiaries = 10
)

// MinDeposit returns 1 ETH in wei.
func MinDeposit() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
}
