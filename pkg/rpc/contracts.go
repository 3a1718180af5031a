package rpc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"fundboard/pkg/config"
	"fundboard/pkg/logging"
)

var (
	ErrContractNotFound    = errors.New("contract address not found")
	ErrContractNotDeployed = errors.New("contract not deployed")
)

// ContractABIs holds the JSON ABI per contract name. Contracts without an
// entry are bound with an empty ABI.
var ContractABIs = map[string]string{}

// Contract is a named, addressed contract binding.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

// GetContract resolves name against the configured contract addresses.
func GetContract(cfg config.Config, name string, logger *zap.Logger) (*Contract, error) {
	logger = logging.OrNop(logger)
	key := strings.ToUpper(name)
	address, ok := cfg.Contracts[key]
	if !ok || address == "" {
		return nil, fmt.Errorf("%w for %s", ErrContractNotFound, name)
	}
	if address == config.PlaceholderAddress || !common.IsHexAddress(address) {
		return nil, fmt.Errorf("%w: %s has address %q", ErrContractNotDeployed, key, address)
	}

	c := &Contract{Name: key, Address: common.HexToAddress(address)}
	def, ok := ContractABIs[key]
	if !ok {
		logger.Warn("ABI not found, using empty ABI", zap.String("contract", key))
		return c, nil
	}
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", key, err)
	}
	c.ABI = parsed
	return c, nil
}
