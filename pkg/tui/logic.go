package tui

import (
	"context"
	"strings"
	"time"

	"fundboard/pkg/models"
	"fundboard/pkg/utils"
	"fundboard/pkg/wallet"
	"fundboard/pkg/watcher"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
)

// txFilters is the cycle order of the transaction type filter.
var txFilters = []models.TransactionType{
	"",
	models.TxDeposit,
	models.TxWithdrawal,
	models.TxPayout,
	models.TxInvestment,
	models.TxDividend,
}

func nextTxFilter(current models.TransactionType) models.TransactionType {
	for i, f := range txFilters {
		if f == current {
			return txFilters[(i+1)%len(txFilters)]
		}
	}
	return ""
}

func filterTransactions(txs []models.Transaction, filter models.TransactionType) []models.Transaction {
	if filter == "" {
		return txs
	}
	var filtered []models.Transaction
	for _, tx := range txs {
		if tx.Type == filter {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

func (m model) pageID() string {
	if m.page < 0 || m.page >= len(m.menu) {
		return "dashboard"
	}
	return m.menu[m.page].ID
}

func (m model) pageIndex(id string) int {
	for i, item := range m.menu {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (m *model) movePage(delta int) {
	if len(m.menu) == 0 {
		return
	}
	m.page = (m.page + delta + len(m.menu)) % len(m.menu)
}

// payoutsByToken sums payout amounts per token symbol.
func payoutsByToken(txs []models.Transaction) map[string]float64 {
	totals := make(map[string]float64)
	for _, tx := range txs {
		if tx.Type != models.TxPayout {
			continue
		}
		totals[tx.Token] += utils.BigFloatToFloat64(tx.Amount)
	}
	return totals
}

// beneficiaryValue is the connected beneficiary's share of the fund.
func (m model) beneficiaryValue() float64 {
	return utils.CalculateBeneficiaryShare(m.data.TotalValue, m.data.SharePercentage)
}

func (m model) walletLabel() string {
	switch {
	case m.wallet.IsConnecting:
		return "Connecting..."
	case m.wallet.IsConnected:
		return "Connected as " + m.maskAddress(m.wallet.Address)
	default:
		return "Not Connected"
	}
}

var transactionColumns = []table.Column{
	{Title: "Date", Width: 22},
	{Title: "Type", Width: 11},
	{Title: "Token", Width: 6},
	{Title: "Amount", Width: 14},
	{Title: "Value (USD)", Width: 14},
	{Title: "Status", Width: 10},
}

func (m model) transactionRows(txs []models.Transaction) []table.Row {
	rows := make([]table.Row, 0, len(txs))
	for _, tx := range txs {
		date := "-"
		if tx.Timestamp > 0 {
			date = utils.FormatDate(tx.Timestamp)
		}
		rows = append(rows, table.Row{
			date,
			titleCase(string(tx.Type)),
			tx.Token,
			m.displayValue(tx.Amount, m.tokenDecimals),
			m.displayCurrency(tx.ValueUSD),
			"Completed",
		})
	}
	return rows
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func listenForWatcher(sub watcher.Subscriber) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-sub
		if !ok {
			return nil
		}
		return ev
	}
}

func connectWallet(s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), walletTimeout)
		defer cancel()
		return walletMsg{action: "connect", state: s.Connect(ctx)}
	}
}

func disconnectWallet(s *wallet.Session) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), walletTimeout)
		defer cancel()
		return walletMsg{action: "disconnect", state: s.Disconnect(ctx)}
	}
}

func clearStatusAfter(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg { return clearStatusMsg{} })
}
