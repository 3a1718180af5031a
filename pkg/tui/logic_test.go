package tui

import (
	"context"
	"math/big"
	"testing"

	"fundboard/pkg/config"
	"fundboard/pkg/models"
	"fundboard/pkg/storage"
	"fundboard/pkg/wallet"
	"fundboard/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddr = "0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B"

func newTestModel(t *testing.T, role models.Role, address string) model {
	t.Helper()
	session := wallet.NewSession(wallet.StaticConnector{Address: address}, storage.New(storage.NewMemoryBackend(), nil), nil)
	w := watcher.NewWatcher(config.Default(), session, nil, nil)
	m := initialModel(w, config.Default(), role)
	t.Cleanup(func() { w.Unsubscribe(m.sub) })
	m.width, m.height = 140, 50
	return m
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m model, msg tea.Msg) (model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(model)
	require.True(t, ok)
	return nm, cmd
}

func TestFilterTransactions(t *testing.T) {
	txs := []models.Transaction{
		{Hash: "0x1", Type: models.TxDeposit},
		{Hash: "0x2", Type: models.TxPayout},
		{Hash: "0x3", Type: models.TxPayout},
	}

	assert.Len(t, filterTransactions(txs, ""), 3)
	payouts := filterTransactions(txs, models.TxPayout)
	require.Len(t, payouts, 2)
	assert.Equal(t, "0x2", payouts[0].Hash)
	assert.Empty(t, filterTransactions(txs, models.TxDividend))
}

func TestNextTxFilter(t *testing.T) {
	f := models.TransactionType("")
	seen := []models.TransactionType{}
	for i := 0; i < len(txFilters); i++ {
		f = nextTxFilter(f)
		seen = append(seen, f)
	}
	assert.Equal(t, models.TxDeposit, seen[0])
	assert.Equal(t, models.TransactionType(""), seen[len(seen)-1])
	assert.Equal(t, models.TransactionType(""), nextTxFilter("unknown"))
}

func TestPayoutsByToken(t *testing.T) {
	txs := []models.Transaction{
		{Type: models.TxPayout, Token: "USDC", Amount: big.NewFloat(10)},
		{Type: models.TxPayout, Token: "USDC", Amount: big.NewFloat(5)},
		{Type: models.TxDeposit, Token: "ETH", Amount: big.NewFloat(1)},
	}
	assert.Equal(t, map[string]float64{"USDC": 15}, payoutsByToken(txs))
}

func TestPageNavigation(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	assert.Equal(t, "dashboard", m.pageID())

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, "funds", m.pageID())

	m, _ = update(t, m, key("k"))
	m, _ = update(t, m, key("k"))
	assert.Equal(t, "transactions", m.pageID(), "navigation wraps around")

	m, _ = update(t, m, key("3"))
	assert.Equal(t, "beneficiaries", m.pageID())

	m, _ = update(t, m, key("9"))
	assert.Equal(t, "beneficiaries", m.pageID(), "out of range page is ignored")
}

func TestAddFundKey(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	m, cmd := update(t, m, key("a"))
	assert.Equal(t, "funds", m.pageID())
	assert.NotEmpty(t, m.statusMessage)
	assert.NotNil(t, cmd)

	b := newTestModel(t, models.RoleBeneficiary, testAddr)
	b, _ = update(t, b, key("a"))
	assert.Equal(t, "dashboard", b.pageID())
	assert.Empty(t, b.statusMessage)
}

func TestConnectAndDisconnectKeys(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)

	m, cmd := update(t, m, key("c"))
	require.NotNil(t, cmd)
	assert.True(t, m.wallet.IsConnecting)

	msg := cmd()
	wm, ok := msg.(walletMsg)
	require.True(t, ok)
	assert.True(t, wm.state.IsConnected)

	m, _ = update(t, m, wm)
	assert.True(t, m.wallet.IsConnected)
	assert.Equal(t, testAddr, m.wallet.Address)
	assert.Equal(t, "Wallet connected", m.statusMessage)

	// Connecting again is a no-op.
	_, cmd = update(t, m, key("c"))
	assert.Nil(t, cmd)

	m, cmd = update(t, m, key("x"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.False(t, m.wallet.IsConnected)
	assert.Equal(t, "Wallet disconnected", m.statusMessage)
	assert.False(t, m.watcher.Session().State().IsConnected)
}

func TestConnectFailureShowsError(t *testing.T) {
	m := newTestModel(t, models.RoleBeneficiary, "")

	m, cmd := update(t, m, key("c"))
	require.NotNil(t, cmd)
	m, _ = update(t, m, cmd())
	assert.False(t, m.wallet.IsConnected)
	assert.Contains(t, m.statusMessage, wallet.ErrNoWallet.Error())
}

func TestRefreshRequiresWallet(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	m, _ = update(t, m, key("r"))
	assert.False(t, m.status.Loading)
	assert.Equal(t, "Connect a wallet to load fund data", m.statusMessage)

	m.watcher.Session().Connect(context.Background())
	m.wallet = m.watcher.Session().State()
	m, _ = update(t, m, key("r"))
	assert.True(t, m.status.Loading)
}

func TestWatcherEventsUpdateModel(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)

	data := models.FundData{Address: testAddr, TotalValue: 1234.5}
	m, cmd := update(t, m, watcher.Event{Type: watcher.EventDataUpdated, Data: data})
	assert.NotNil(t, cmd, "keeps listening for the next event")
	assert.Equal(t, data, m.data)

	m, _ = update(t, m, watcher.Event{Type: watcher.EventStatusUpdated, Data: watcher.Status{Loading: true}})
	assert.True(t, m.status.Loading)

	st := wallet.State{Address: testAddr, IsConnected: true}
	m, _ = update(t, m, watcher.Event{Type: watcher.EventWalletChanged, Data: st})
	assert.Equal(t, st, m.wallet)
}

func TestHelpToggle(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	m, _ = update(t, m, key("?"))
	assert.True(t, m.showHelp)
	assert.Contains(t, m.View(), "Help: Fund Manager")

	// Keys other than close are swallowed while help is open.
	m, _ = update(t, m, key("j"))
	assert.Equal(t, 0, m.page)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, m.showHelp)
}

func TestTransactionFilterKey(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	m, _ = update(t, m, key("f"))
	assert.Equal(t, models.TransactionType(""), m.txFilter, "filter only applies on the transactions page")

	m.page = m.pageIndex("transactions")
	m, _ = update(t, m, key("f"))
	assert.Equal(t, models.TxDeposit, m.txFilter)
}

func TestManagerViewEmptyStates(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)

	view := m.View()
	assert.Contains(t, view, "Fund Manager Dashboard")
	assert.Contains(t, view, "Not Connected")
	assert.Contains(t, view, "Fund Information")
	assert.Contains(t, view, "Account Statistics")
	assert.Contains(t, view, "No token balances available")
	assert.Contains(t, view, "No transactions found")
	assert.Contains(t, view, "Connect Wallet")
	assert.Contains(t, view, ProductName)

	cases := map[string]string{
		"funds":         "No funds created yet",
		"beneficiaries": "No beneficiaries added yet",
		"investments":   "No investments made yet",
		"payouts":       "No payouts scheduled yet",
		"transactions":  "No transactions found",
	}
	for page, empty := range cases {
		m.page = m.pageIndex(page)
		assert.Contains(t, m.View(), empty, page)
	}
}

func TestBeneficiaryViewWithData(t *testing.T) {
	m := newTestModel(t, models.RoleBeneficiary, testAddr)
	m.wallet = wallet.State{Address: testAddr, IsConnected: true}
	m.data = models.FundData{
		Address:         testAddr,
		TotalValue:      2000,
		SharePercentage: 25,
		TotalPayouts:    0,
		Balances: []models.TokenBalance{
			{Symbol: "ETH", Amount: big.NewFloat(1), Price: 2000, Value: 2000},
		},
		Transactions: []models.Transaction{
			{Hash: "0x1", Type: models.TxPayout, Token: "ETH", Amount: big.NewFloat(0.25), ValueUSD: 500, Timestamp: 1700000000},
		},
		ValueHistory: []float64{1800, 1900, 2000},
	}

	view := m.View()
	assert.Contains(t, view, "Beneficiary Dashboard")
	assert.Contains(t, view, "Connected as 0xAb58...eC9B")
	assert.Contains(t, view, "No payouts yet")
	assert.Contains(t, view, "$500.00", "25% of the fund value")
	assert.Contains(t, view, "Your Token Balances")
	assert.Contains(t, view, "@ $2,000.00")
	assert.NotContains(t, view, "Add Fund")

	m.page = m.pageIndex("funds")
	view = m.View()
	assert.Contains(t, view, "Fund Details")
	assert.Contains(t, view, "Performance Over Time (USD)")

	m.page = m.pageIndex("payouts")
	view = m.View()
	assert.Contains(t, view, "Payout Summary")
	assert.Contains(t, view, "ETH:")

	m.privacyMode = true
	m.page = m.pageIndex("dashboard")
	view = m.View()
	assert.NotContains(t, view, "0xAb58...eC9B")
	assert.Contains(t, view, "0x**...**")
}

func TestManagerFundAndBeneficiaryPages(t *testing.T) {
	m := newTestModel(t, models.RoleFundManager, testAddr)
	m.data = models.FundData{
		Fund: models.FundDetails{Name: "Family Fund", Address: testAddr, Status: models.FundStatusActive},
		Beneficiaries: []models.Beneficiary{
			{Address: testAddr, Name: "Alice", SharePercentage: 60, Status: models.BeneficiaryActive},
			{Address: testAddr, Name: "Bob", SharePercentage: 30, Status: models.BeneficiaryActive},
		},
	}

	m.page = m.pageIndex("funds")
	view := m.View()
	assert.Contains(t, view, "Family Fund")
	assert.Contains(t, view, "1.000000 ETH")
	assert.Contains(t, view, "30 days")

	m.page = m.pageIndex("beneficiaries")
	view = m.View()
	assert.Contains(t, view, "Alice")
	assert.Contains(t, view, "Allocated: 90.00%")
	assert.NotContains(t, view, "exceeds 100%")

	m.data.Beneficiaries[1].SharePercentage = 50
	assert.Contains(t, m.View(), "Allocated: 110.00% (exceeds 100%)")
}
