package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"fundboard/pkg/config"
	"fundboard/pkg/fetch"
	"fundboard/pkg/logging"
	"fundboard/pkg/models"
	"fundboard/pkg/rpc"
	"fundboard/pkg/server"
	"fundboard/pkg/storage"
	"fundboard/pkg/tui"
	"fundboard/pkg/wallet"
	"fundboard/pkg/watcher"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Version should be set during build
var Version = "dev"

// probeTimeout bounds each RPC probe of the check command.
const probeTimeout = 10 * time.Second

// restoreTimeout bounds the silent wallet probe at startup.
var restoreTimeout = 10 * time.Second

type rootOptions struct {
	configPath string
	debug      bool
	ephemeral  bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "fundboard",
		Short: "Fund manager and beneficiary dashboards",
		Long: `fundboard shows a fund's balances, beneficiaries, payouts and
transactions for the connected wallet.

Run "fundboard manager" or "fundboard beneficiary" to open a dashboard,
or "fundboard serve" for the headless API.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to configuration file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().BoolVar(&opts.ephemeral, "ephemeral", false, "Keep state in memory instead of the database")

	root.AddCommand(
		newDashboardCmd(opts, models.RoleFundManager, "manager", "Open the fund manager dashboard"),
		newDashboardCmd(opts, models.RoleBeneficiary, "beneficiary", "Open the beneficiary dashboard"),
		newServeCmd(opts),
		newCheckCmd(opts),
		newInitCmd(opts),
		newRestoreCmd(opts),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and exit",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "fundboard version %s\n", Version)
		},
	}
}

func newDashboardCmd(opts *rootOptions, role models.Role, use, short string) *cobra.Command {
	var apiPort int
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			a.start(ctx)
			defer a.watcher.Stop()

			if apiPort > 0 {
				srv := server.NewServer(a.watcher, a.logger)
				go func() {
					if err := srv.Start(ctx, fmt.Sprintf(":%d", apiPort)); err != nil {
						a.logger.Error("API server stopped", zap.Error(err))
					}
				}()
			}

			a.logger.Info("Starting dashboard", zap.String("role", string(role)))
			return tui.Start(a.watcher, a.cfg, role, Version)
		},
	}
	cmd.Flags().IntVar(&apiPort, "api-port", 0, "Also serve the API on this port (0 disables)")
	return cmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the headless API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.setup(true)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			a.start(ctx)
			defer a.watcher.Stop()

			fmt.Fprintf(cmd.OutOrStdout(), "Running in server mode on port %d...\n", port)
			return server.NewServer(a.watcher, a.logger).Start(ctx, fmt.Sprintf(":%d", port))
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "Port for API server")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Test configuration, RPC endpoints and contract addresses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(opts.configPath)
			if err != nil {
				return fmt.Errorf("determining config path: %w", err)
			}
			cfg, err := config.LoadConfigFromFile(path)
			if err != nil {
				return fmt.Errorf("loading config from %s: %w", path, err)
			}

			out := cmd.OutOrStdout()
			if !asJSON {
				fmt.Fprintf(out, "Testing configuration at: %s\n", path)
			}
			report := runCheck(cmd.Context(), cfg, path, logging.NewNop())
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else {
				printReport(out, report)
			}
			if !report.ValidStructure {
				return errors.New("configuration is invalid")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output test results as JSON")
	return cmd
}

func newInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(opts.configPath)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.SaveConfig(config.Default(), path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore",
		Short: "Restore the most recent configuration backup",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.GetConfigPath(opts.configPath)
			if err != nil {
				return err
			}
			if err := config.RestoreLastBackup(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored last backup of %s\n", path)
			return nil
		},
	}
}

// app holds everything a dashboard or the server needs.
type app struct {
	cfg     config.Config
	logger  *zap.Logger
	fetcher *fetch.Client
	watcher *watcher.Watcher
	closers []func() error
}

func (o *rootOptions) setup(headless bool) (*app, error) {
	path, err := config.GetConfigPath(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("determining config path: %w", err)
	}
	cfg, err := config.LoadConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config from %s: %w", path, err)
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return nil, fmt.Errorf("invalid configuration %s: %v", path, problems)
	}
	dir, err := cfg.ResolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolving data directory: %w", err)
	}

	logger, err := logging.New(logging.Options{Dir: dir, Debug: o.debug, Stderr: headless})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	a.closers = append(a.closers, func() error { _ = logger.Sync(); return nil })

	var backend storage.Backend
	if o.ephemeral {
		backend = storage.NewMemoryBackend()
	} else {
		db, err := storage.OpenSQLite(filepath.Join(dir, storage.DBFileName))
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		backend = db
	}
	store := storage.New(backend, logger.Named("storage"))

	a.fetcher = fetch.New(
		fetch.WithStore(store),
		fetch.WithLogger(logger.Named("fetch")),
		fetch.WithMaxRetries(cfg.MaxRetries),
	)
	prices := rpc.NewPriceClient(a.fetcher, cfg.PriceAPIURL, cfg.CacheTTL())

	var connector wallet.Connector = wallet.StaticConnector{Address: cfg.WatchAddress}
	if cfg.WalletRPCURL != "" {
		connector = wallet.NewRPCConnector(cfg.WalletRPCURL)
	}
	session := wallet.NewSession(connector, store, logger.Named("wallet"))

	ds := &watcher.RealDataSource{Prices: prices, Logger: logger.Named("contracts")}
	a.watcher = watcher.NewWatcher(cfg, session, ds, logger.Named("watcher"))

	logger.Info("fundboard starting",
		zap.String("version", Version),
		zap.String("config", path),
		zap.String("network", cfg.Network),
		zap.Bool("ephemeral", o.ephemeral))
	return a, nil
}

// start restores a previous wallet connection and begins refreshing.
func (a *app) start(ctx context.Context) {
	rctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	a.watcher.Session().Restore(rctx)
	cancel()
	a.watcher.Start(ctx)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func runCheck(ctx context.Context, cfg config.Config, path string, logger *zap.Logger) models.TestReport {
	report := models.TestReport{
		ConfigPath:      path,
		Network:         cfg.Network,
		StructureErrors: cfg.Validate(),
	}
	report.ValidStructure = len(report.StructureErrors) == 0

	networks := make([]string, 0, len(cfg.RPC))
	for n := range cfg.RPC {
		networks = append(networks, n)
	}
	sort.Strings(networks)

	for _, n := range networks {
		url := cfg.RPC[n]
		res := models.RPCResult{Network: n, URL: url, Status: "ok"}

		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		id, err := rpc.FetchChainID(pctx, url)
		if err == nil {
			var lat models.RPCLatencyData
			lat, err = rpc.FetchRPCLatency(pctx, url)
			res.LatencyMS = lat.Latency.Milliseconds()
		}
		cancel()

		res.ChainID = id
		if err != nil {
			res.Status = "error"
			res.Error = err.Error()
		}
		report.RPCs = append(report.RPCs, res)
	}

	for _, name := range models.ContractNames {
		res := models.ContractResult{Name: name, Address: cfg.Contracts[name], Usable: true}
		if _, err := rpc.GetContract(cfg, name, logger); err != nil {
			res.Usable = false
			res.Error = err.Error()
		}
		report.Contracts = append(report.Contracts, res)
	}

	url := cfg.Provider(cfg.Network)
	for _, t := range cfg.Tokens {
		res := models.TokenResult{Symbol: t.Symbol, Address: t.Address, Status: "ok"}
		if t.Address == "" || t.Address == config.PlaceholderAddress {
			res.Status = "skipped"
			report.Tokens = append(report.Tokens, res)
			continue
		}
		meta, err := rpc.FetchTokenMetadata(ctx, url, t.Address)
		switch {
		case err != nil:
			res.Status = "error"
			res.Error = err.Error()
		case meta.Decimals != t.Decimals:
			res.Status = "mismatch"
			res.Error = fmt.Sprintf("configured %d decimals, contract reports %d", t.Decimals, meta.Decimals)
		case meta.Symbol != "" && !strings.EqualFold(meta.Symbol, t.Symbol):
			res.Status = "mismatch"
			res.Error = fmt.Sprintf("configured symbol %s, contract reports %s", t.Symbol, meta.Symbol)
		}
		res.OnChainSymbol = meta.Symbol
		res.Decimals = meta.Decimals
		report.Tokens = append(report.Tokens, res)
	}
	return report
}

func printReport(w io.Writer, r models.TestReport) {
	if !r.ValidStructure {
		for _, p := range r.StructureErrors {
			fmt.Fprintf(w, "Error: %s\n", p)
		}
	}
	fmt.Fprintf(w, "Active network: %s\n", r.Network)
	for _, res := range r.RPCs {
		if res.Status == "ok" {
			fmt.Fprintf(w, "  RPC %-8s %s ... OK (ChainID: %d, %dms)\n", res.Network, res.URL, res.ChainID, res.LatencyMS)
		} else {
			fmt.Fprintf(w, "  RPC %-8s %s ... Failed: %s\n", res.Network, res.URL, res.Error)
		}
	}
	for _, c := range r.Contracts {
		if c.Usable {
			fmt.Fprintf(w, "  Contract %-12s %s ... OK\n", c.Name, c.Address)
		} else {
			fmt.Fprintf(w, "  Contract %-12s %s ... %s\n", c.Name, c.Address, c.Error)
		}
	}
	for _, t := range r.Tokens {
		switch t.Status {
		case "ok":
			fmt.Fprintf(w, "  Token %-8s %s ... OK (%s, %d decimals)\n", t.Symbol, t.Address, t.OnChainSymbol, t.Decimals)
		case "skipped":
			fmt.Fprintf(w, "  Token %-8s %s ... skipped\n", t.Symbol, t.Address)
		default:
			fmt.Fprintf(w, "  Token %-8s %s ... %s\n", t.Symbol, t.Address, t.Error)
		}
	}
}
