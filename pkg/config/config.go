package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fundboard/pkg/utils"
)

const ConfigFileName = ".fundboard.json"

// PlaceholderAddress marks a contract that has not been deployed yet.
const PlaceholderAddress = "0x..."

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkLocal   = "local"
)

// TokenConfig holds configuration for an ERC-20 token held by the fund.
type TokenConfig struct {
	Symbol      string `json:"symbol"`
	Address     string `json:"address"`
	Decimals    int    `json:"decimals"`
	CoinGeckoID string `json:"coingecko_id"`
}

// Config is the full application configuration.
type Config struct {
	Network                string            `json:"network"`
	RPC                    map[string]string `json:"rpc"`
	WalletRPCURL           string            `json:"wallet_rpc_url,omitempty"`
	WatchAddress           string            `json:"watch_address,omitempty"`
	Contracts              map[string]string `json:"contracts"`
	NativeSymbol           string            `json:"native_symbol"`
	NativeCoinGeckoID      string            `json:"native_coingecko_id"`
	Tokens                 []TokenConfig     `json:"tokens"`
	PriceAPIURL            string            `json:"price_api_url"`
	CacheTTLSeconds        int               `json:"cache_ttl_seconds"`
	MaxRetries             int               `json:"max_retries"`
	DataDir                string            `json:"data_dir,omitempty"`
	FiatDecimals           int               `json:"fiat_decimals"`
	TokenDecimals          int               `json:"token_decimals"`
	RefreshIntervalSeconds int               `json:"refresh_interval_seconds"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Network: NetworkTestnet,
		RPC: map[string]string{
			NetworkMainnet: "https://mainnet.infura.io/v3/YOUR_PROJECT_ID",
			NetworkTestnet: "https://sepolia.infura.io/v3/YOUR_PROJECT_ID",
			NetworkLocal:   "http://localhost:8545",
		},
		Contracts: map[string]string{
			"FUND":        PlaceholderAddress,
			"BENEFICIARY": PlaceholderAddress,
			"INVESTMENT":  PlaceholderAddress,
			"PAYOUT":      PlaceholderAddress,
		},
		NativeSymbol:           "ETH",
		NativeCoinGeckoID:      "ethereum",
		PriceAPIURL:            "https://api.coingecko.com/api/v3",
		CacheTTLSeconds:        300,
		MaxRetries:             3,
		FiatDecimals:           2,
		TokenDecimals:          6,
		RefreshIntervalSeconds: 60,
	}
}

// Provider returns the RPC URL for the given network, falling back to testnet.
func (c Config) Provider(network string) string {
	if url, ok := c.RPC[strings.ToLower(network)]; ok && url != "" {
		return url
	}
	return c.RPC[NetworkTestnet]
}

// CacheTTL is the price cache lifetime.
func (c Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// RefreshInterval is the automatic dashboard refresh period. Zero disables it.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}

// ResolveDataDir returns the directory for the key-value database and log file.
func (c Config) ResolveDataDir() (string, error) {
	if c.DataDir != "" {
		return c.DataDir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".fundboard"), nil
}

// Validate returns a list of structural problems; empty means valid.
func (c Config) Validate() []string {
	var problems []string
	switch c.Network {
	case NetworkMainnet, NetworkTestnet, NetworkLocal:
	default:
		problems = append(problems, fmt.Sprintf("unknown network %q", c.Network))
	}
	if c.Provider(c.Network) == "" {
		problems = append(problems, fmt.Sprintf("no RPC URL for network %q", c.Network))
	}
	for i, t := range c.Tokens {
		if strings.TrimSpace(t.Symbol) == "" {
			problems = append(problems, fmt.Sprintf("token at index %d has no symbol", i))
		}
		if t.Decimals < 0 || t.Decimals > 36 {
			problems = append(problems, fmt.Sprintf("token %s has invalid decimals %d", t.Symbol, t.Decimals))
		}
		if t.Address != "" && t.Address != PlaceholderAddress && !utils.ValidateAddress(t.Address) {
			problems = append(problems, fmt.Sprintf("token %s has invalid address %q", t.Symbol, t.Address))
		}
	}
	if c.WatchAddress != "" && !utils.ValidateAddress(c.WatchAddress) {
		problems = append(problems, fmt.Sprintf("invalid watch_address %q", c.WatchAddress))
	}
	names := make([]string, 0, len(c.Contracts))
	for name := range c.Contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		addr := c.Contracts[name]
		if addr != PlaceholderAddress && !utils.ValidateAddress(addr) {
			problems = append(problems, fmt.Sprintf("contract %s has invalid address %q", name, addr))
		}
	}
	if c.MaxRetries < 1 {
		problems = append(problems, "max_retries must be at least 1")
	}
	if c.CacheTTLSeconds < 0 {
		problems = append(problems, "cache_ttl_seconds must not be negative")
	}
	return problems
}

func GetConfigPath(customPath string) (string, error) {
	if customPath != "" {
		return customPath, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigFileName), nil
}

func LoadConfigFromFile(path string) (Config, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return Config{}, err
	}
	defer func() { _ = f.Close() }()
	return LoadConfig(f)
}

// LoadConfig decodes a configuration, filling unset fields with defaults.
func LoadConfig(r io.Reader) (Config, error) {
	var raw struct {
		Network                string            `json:"network"`
		RPC                    map[string]string `json:"rpc"`
		WalletRPCURL           string            `json:"wallet_rpc_url"`
		WatchAddress           string            `json:"watch_address"`
		Contracts              map[string]string `json:"contracts"`
		NativeSymbol           string            `json:"native_symbol"`
		NativeCoinGeckoID      *string           `json:"native_coingecko_id"`
		Tokens                 []TokenConfig     `json:"tokens"`
		PriceAPIURL            string            `json:"price_api_url"`
		CacheTTLSeconds        *int              `json:"cache_ttl_seconds"`
		MaxRetries             *int              `json:"max_retries"`
		DataDir                string            `json:"data_dir"`
		FiatDecimals           *int              `json:"fiat_decimals"`
		TokenDecimals          *int              `json:"token_decimals"`
		RefreshIntervalSeconds *int              `json:"refresh_interval_seconds"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if raw.Network != "" {
		cfg.Network = strings.ToLower(raw.Network)
	}
	for k, v := range raw.RPC {
		cfg.RPC[strings.ToLower(k)] = v
	}
	for k, v := range raw.Contracts {
		cfg.Contracts[strings.ToUpper(k)] = v
	}
	cfg.WalletRPCURL = raw.WalletRPCURL
	cfg.WatchAddress = raw.WatchAddress
	if raw.NativeSymbol != "" {
		cfg.NativeSymbol = raw.NativeSymbol
	}
	if raw.NativeCoinGeckoID != nil {
		cfg.NativeCoinGeckoID = *raw.NativeCoinGeckoID
	}
	cfg.Tokens = raw.Tokens
	if raw.PriceAPIURL != "" {
		cfg.PriceAPIURL = strings.TrimRight(raw.PriceAPIURL, "/")
	}
	if raw.CacheTTLSeconds != nil {
		cfg.CacheTTLSeconds = *raw.CacheTTLSeconds
	}
	if raw.MaxRetries != nil {
		cfg.MaxRetries = *raw.MaxRetries
	}
	cfg.DataDir = raw.DataDir
	if raw.FiatDecimals != nil {
		cfg.FiatDecimals = *raw.FiatDecimals
	}
	if raw.TokenDecimals != nil {
		cfg.TokenDecimals = *raw.TokenDecimals
	}
	if raw.RefreshIntervalSeconds != nil {
		cfg.RefreshIntervalSeconds = *raw.RefreshIntervalSeconds
	}
	return cfg, nil
}

func SaveConfig(cfg Config, path string) error {
	if problems := cfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("validation failed: %s", strings.Join(problems, "; "))
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if len(data) == 0 {
		return fmt.Errorf("validation failed: encoded configuration is empty")
	}

	// Create a backup of the existing file
	if _, err := os.Stat(path); err == nil {
		backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102-150405"))
		input, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read existing config for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, input, 0644); err != nil {
			return fmt.Errorf("failed to write backup config: %w", err)
		}
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func RestoreLastBackup(configPath string) error {
	matches, err := filepath.Glob(configPath + ".*.bak")
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		return fmt.Errorf("no backup files found")
	}
	sort.Strings(matches)
	lastBackup := matches[len(matches)-1]

	data, err := os.ReadFile(lastBackup)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}
