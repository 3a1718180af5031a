// Package watcher loads the dashboard data for the connected wallet and keeps
// it fresh, broadcasting changes to subscribers.
package watcher

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fundboard/pkg/config"
	"fundboard/pkg/logging"
	"fundboard/pkg/models"
	"fundboard/pkg/rpc"
	"fundboard/pkg/utils"
	"fundboard/pkg/wallet"
)

// MinRefreshDuration is the shortest time a refresh is shown as loading.
const MinRefreshDuration = time.Second

const (
	MaxTransactions = 5
	MaxHistory      = 60
)

var ErrNotConnected = errors.New("wallet not connected")

// DataSource defines the interface for fetching data.
type DataSource interface {
	FetchBalances(ctx context.Context, rpcURL string, cfg config.Config, address string) ([]models.TokenBalance, error)
	FetchTransactions(ctx context.Context, rpcURL, address, nativeSymbol string, limit int) ([]models.Transaction, error)
	FetchPrices(ctx context.Context, coinIDs []string) (map[string]float64, error)
	GetContract(cfg config.Config, name string) (*rpc.Contract, error)
}

// RealDataSource implements DataSource using the rpc package.
type RealDataSource struct {
	Prices *rpc.PriceClient
	Logger *zap.Logger

	contracts sync.Map // "NAME@address" -> *rpc.Contract
}

func (d *RealDataSource) FetchBalances(ctx context.Context, rpcURL string, cfg config.Config, address string) ([]models.TokenBalance, error) {
	return rpc.FetchBalances(ctx, rpcURL, cfg, address)
}

func (d *RealDataSource) FetchTransactions(ctx context.Context, rpcURL, address, nativeSymbol string, limit int) ([]models.Transaction, error) {
	return rpc.FetchTransactions(ctx, rpcURL, address, nativeSymbol, limit)
}

func (d *RealDataSource) FetchPrices(ctx context.Context, coinIDs []string) (map[string]float64, error) {
	return d.Prices.FetchPrices(ctx, coinIDs)
}

// GetContract resolves a contract once per configured address, so binding
// warnings are not repeated on every refresh.
func (d *RealDataSource) GetContract(cfg config.Config, name string) (*rpc.Contract, error) {
	key := strings.ToUpper(name) + "@" + cfg.Contracts[strings.ToUpper(name)]
	if c, ok := d.contracts.Load(key); ok {
		return c.(*rpc.Contract), nil
	}
	c, err := rpc.GetContract(cfg, name, d.Logger)
	if err != nil {
		return nil, err
	}
	d.contracts.Store(key, c)
	return c, nil
}

// Status describes the refresh state.
type Status struct {
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
	LastRefresh time.Time `json:"last_refresh"`
}

// Snapshot is the complete dashboard state.
type Snapshot struct {
	Wallet wallet.State    `json:"wallet"`
	Status Status          `json:"status"`
	Data   models.FundData `json:"data"`
}

// Watcher manages background refreshes and state.
type Watcher struct {
	config  config.Config
	session *wallet.Session
	logger  *zap.Logger

	data    models.FundData
	status  Status
	history []float64

	subscribers []Subscriber
	mu          sync.RWMutex
	dataSource  DataSource
	minRefresh  time.Duration

	refreshChan chan struct{}
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

// NewWatcher creates a new Watcher instance.
func NewWatcher(cfg config.Config, session *wallet.Session, ds DataSource, logger *zap.Logger) *Watcher {
	return &Watcher{
		config:      cfg,
		session:     session,
		logger:      logging.OrNop(logger),
		dataSource:  ds,
		minRefresh:  MinRefreshDuration,
		refreshChan: make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
	}
}

// SetDataSource allows overriding the data source (useful for testing).
func (w *Watcher) SetDataSource(ds DataSource) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataSource = ds
}

func (w *Watcher) SetMinRefreshDuration(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.minRefresh = d
}

// Data returns the last loaded dashboard data.
func (w *Watcher) Data() models.FundData {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.data
}

func (w *Watcher) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.status
}

func (w *Watcher) Session() *wallet.Session {
	return w.session
}

// Snapshot returns wallet, status and data in one value.
func (w *Watcher) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Snapshot{Wallet: w.session.State(), Status: w.status, Data: w.data}
}

// Subscribe adds a new subscriber and returns a channel to receive events.
func (w *Watcher) Subscribe() Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	ch := make(Subscriber, 100)
	w.subscribers = append(w.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscriber.
func (w *Watcher) Unsubscribe(ch Subscriber) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, sub := range w.subscribers {
		if sub == ch {
			w.subscribers = append(w.subscribers[:i], w.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

func (w *Watcher) notify(event Event) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, sub := range w.subscribers {
		select {
		case sub <- event:
		default:
			// Slow subscribers miss events; the next snapshot supersedes them.
		}
	}
}

// Start begins the refresh loop.
func (w *Watcher) Start(ctx context.Context) {
	sessionCh := w.session.Subscribe()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer w.session.Unsubscribe(sessionCh)
		w.pollingLoop(ctx, sessionCh)
	}()
}

// Stop stops the refresh loop and waits for it to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
}

// Refresh requests a refresh from the loop without waiting for it.
func (w *Watcher) Refresh() {
	select {
	case w.refreshChan <- struct{}{}:
	default:
	}
}

func (w *Watcher) pollingLoop(ctx context.Context, sessionCh chan wallet.State) {
	if w.session.State().IsConnected {
		w.refreshLogged(ctx)
	}

	var tick <-chan time.Time
	if interval := w.config.RefreshInterval(); interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			if w.session.State().IsConnected {
				w.refreshLogged(ctx)
			}
		case <-w.refreshChan:
			w.refreshLogged(ctx)
		case st := <-sessionCh:
			w.notify(Event{Type: EventWalletChanged, Data: st})
			w.onWalletChange(ctx, st)
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) onWalletChange(ctx context.Context, st wallet.State) {
	if st.IsConnecting {
		return
	}
	current := w.Data().Address
	switch {
	case st.IsConnected && st.Address != current:
		w.refreshLogged(ctx)
	case !st.IsConnected && current != "":
		w.reset()
	}
}

func (w *Watcher) refreshLogged(ctx context.Context) {
	if err := w.RefreshNow(ctx); err != nil && !errors.Is(err, ErrNotConnected) {
		w.logger.Warn("Dashboard refresh failed", zap.Error(err))
	}
}

// reset returns the dashboard to the empty state.
func (w *Watcher) reset() {
	w.mu.Lock()
	w.data = models.FundData{}
	w.history = nil
	w.status = Status{}
	w.mu.Unlock()
	w.notify(Event{Type: EventDataUpdated, Data: models.FundData{}})
	w.notify(Event{Type: EventStatusUpdated, Data: Status{}})
}

// RefreshNow loads fresh data for the connected address. Without a
// connected wallet the data is reset and ErrNotConnected is returned.
func (w *Watcher) RefreshNow(ctx context.Context) error {
	st := w.session.State()
	if !st.IsConnected || st.Address == "" {
		w.reset()
		return ErrNotConnected
	}

	w.mu.Lock()
	w.status.Loading = true
	w.status.Error = ""
	status := w.status
	ds := w.dataSource
	minRefresh := w.minRefresh
	w.mu.Unlock()
	w.notify(Event{Type: EventStatusUpdated, Data: status})

	start := time.Now()
	data, err := w.load(ctx, ds, st.Address)
	if remaining := minRefresh - time.Since(start); remaining > 0 {
		t := time.NewTimer(remaining)
		select {
		case <-t.C:
		case <-ctx.Done():
		}
		t.Stop()
	}

	w.mu.Lock()
	w.status.Loading = false
	if err != nil {
		w.status.Error = err.Error()
	} else {
		w.history = append(w.history, data.TotalValue)
		if len(w.history) > MaxHistory {
			w.history = w.history[len(w.history)-MaxHistory:]
		}
		data.ValueHistory = append([]float64(nil), w.history...)
		w.data = data
		w.status.LastRefresh = data.UpdatedAt
	}
	status = w.status
	w.mu.Unlock()

	if err == nil {
		w.logger.Debug("Dashboard refreshed",
			zap.String("address", st.Address),
			zap.Float64("total_value", data.TotalValue),
			zap.Duration("took", time.Since(start)))
		w.notify(Event{Type: EventDataUpdated, Data: data})
	}
	w.notify(Event{Type: EventStatusUpdated, Data: status})
	return err
}

func (w *Watcher) coinIDs() []string {
	ids := []string{w.config.NativeCoinGeckoID}
	for _, t := range w.config.Tokens {
		ids = append(ids, t.CoinGeckoID)
	}
	return ids
}

// load fetches balances, prices, transactions and the fund contract in
// parallel. Only a balance failure fails the refresh.
func (w *Watcher) load(ctx context.Context, ds DataSource, address string) (models.FundData, error) {
	rpcURL := w.config.Provider(w.config.Network)

	var (
		balances []models.TokenBalance
		prices   map[string]float64
		txs      []models.Transaction
		fund     models.FundDetails
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		balances, err = ds.FetchBalances(gctx, rpcURL, w.config, address)
		return err
	})
	g.Go(func() error {
		p, err := ds.FetchPrices(gctx, w.coinIDs())
		if err != nil {
			w.logger.Warn("Price fetch failed", zap.Error(err))
			p = map[string]float64{}
		}
		prices = p
		return nil
	})
	g.Go(func() error {
		t, err := ds.FetchTransactions(gctx, rpcURL, address, w.config.NativeSymbol, MaxTransactions)
		if err != nil {
			w.logger.Warn("Transaction fetch failed", zap.Error(err))
		}
		txs = t
		return nil
	})
	g.Go(func() error {
		fund = w.fundDetails(ds)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.FundData{}, err
	}

	amounts := make(map[string]float64, len(balances))
	symbolPrices := make(map[string]float64, len(balances))
	for i := range balances {
		b := &balances[i]
		b.Price = prices[b.CoinGeckoID]
		amount := utils.BigFloatToFloat64(b.Amount)
		b.Value = amount * b.Price
		amounts[b.Symbol] += amount
		symbolPrices[b.Symbol] = b.Price
	}

	data := models.FundData{
		Address:       address,
		Balances:      balances,
		Beneficiaries: []models.Beneficiary{},
		Transactions:  txs,
		TotalValue:    utils.CalculateFundValue(amounts, symbolPrices),
		UpdatedAt:     time.Now(),
	}
	if data.Transactions == nil {
		data.Transactions = []models.Transaction{}
	}

	nativePrice := prices[w.config.NativeCoinGeckoID]
	for i := range data.Transactions {
		tx := &data.Transactions[i]
		tx.ValueUSD = utils.BigFloatToFloat64(tx.Amount) * nativePrice
		switch tx.Type {
		case models.TxDeposit:
			data.TotalDeposits += tx.ValueUSD
		case models.TxPayout:
			data.TotalPayouts += tx.ValueUSD
		}
	}

	fund.TotalValue = data.TotalValue
	fund.UpdatedAt = data.UpdatedAt
	data.Fund = fund
	return data, nil
}

func (w *Watcher) fundDetails(ds DataSource) models.FundDetails {
	fund := models.FundDetails{Name: "Fund", Status: models.FundStatusInactive}
	c, err := ds.GetContract(w.config, models.ContractFund)
	if err != nil {
		fund.Err = err.Error()
		return fund
	}
	fund.Address = c.Address.Hex()
	fund.Status = models.FundStatusActive
	return fund
}
