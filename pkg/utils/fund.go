package utils

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CalculateFundValue sums balance*price over every symbol. Missing prices
// count as zero.
func CalculateFundValue(balances map[string]float64, prices map[string]float64) float64 {
	total := 0.0
	for symbol, amount := range balances {
		total += amount * prices[symbol]
	}
	return total
}

func CalculateBeneficiaryShare(totalValue, sharePercentage float64) float64 {
	return totalValue * sharePercentage / 100
}

var starknetAddress = regexp.MustCompile(`^0x[0-9a-fA-F]{63,64}$`)

// ValidateAddress accepts 20-byte EVM addresses and 251-bit Starknet felts.
func ValidateAddress(address string) bool {
	if !strings.HasPrefix(address, "0x") {
		return false
	}
	return common.IsHexAddress(address) || starknetAddress.MatchString(address)
}

// ValidateSharePercentage reports whether the shares fit within 100%.
func ValidateSharePercentage(shares []float64) bool {
	total := 0.0
	for _, s := range shares {
		total += s
	}
	return total <= 100+1e-9
}

const (
	MsgInsufficientBalance = "Insufficient balance for this transaction"
	MsgNotAuthorized       = "You are not authorized to perform this action"
	MsgNotWhitelisted      = "This token is not whitelisted"
	MsgTransactionFailed   = "Transaction failed. Please try again."
)

// HandleContractError maps a contract failure to a user-facing message.
func HandleContractError(err error) string {
	if err == nil {
		return MsgTransactionFailed
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "insufficient balance"):
		return MsgInsufficientBalance
	case strings.Contains(msg, "not owner"):
		return MsgNotAuthorized
	case strings.Contains(msg, "not whitelisted"):
		return MsgNotWhitelisted
	}
	return MsgTransactionFailed
}
