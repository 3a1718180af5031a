package tui

import (
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"fundboard/pkg/models"
	"fundboard/pkg/utils"
)

const (
	sidebarWidth       = 24
	recentTransactions = 5
)

func (m model) View() string {
	if m.showHelp {
		return m.viewHelp()
	}

	sidebar := m.viewSidebar()
	contentWidth := m.width - lipgloss.Width(sidebar) - 2
	if contentWidth < 40 {
		contentWidth = 40
	}

	var page string
	if m.role == models.RoleBeneficiary {
		page = m.beneficiaryPage(contentWidth)
	} else {
		page = m.managerPage(contentWidth)
	}
	if m.status.Error != "" {
		page = lipgloss.JoinVertical(lipgloss.Left, errStyle.Render("Error: "+m.status.Error), page)
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, sidebar, "  ", page)
	return lipgloss.JoinVertical(lipgloss.Left, m.viewTopBar(), body, m.viewFooter())
}

func (m model) viewTopBar() string {
	left := titleStyle.Render(m.role.Title() + " Dashboard")

	spinnerView := ""
	if m.status.Loading {
		spinnerView = m.spinner.View() + " "
	}
	updated := "never"
	if !m.lastUpdate.IsZero() {
		updated = m.lastUpdate.Format("15:04:05")
	}
	right := subtleStyle.Render(fmt.Sprintf("%s%s • Last updated: %s ", spinnerView, m.walletLabel(), updated))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, left, strings.Repeat(" ", gap), right)
}

func (m model) viewSidebar() string {
	lines := []string{cardTitleStyle.Render(m.role.Title()), ""}
	for i, item := range m.menu {
		label := fmt.Sprintf("%s %s", item.Icon, item.Label)
		if i == m.page {
			lines = append(lines, menuActiveStyle.Render("> "+label))
		} else {
			lines = append(lines, "  "+label)
		}
	}

	lines = append(lines, "")
	if m.wallet.IsConnected {
		lines = append(lines, subtleStyle.Render("[x] Disconnect"), subtleStyle.Render("[r] Refresh"))
		if m.role == models.RoleFundManager {
			lines = append(lines, subtleStyle.Render("[a] Add Fund"))
		}
	} else if m.wallet.IsConnecting {
		lines = append(lines, m.spinner.View()+" Connecting...")
	} else {
		lines = append(lines, infoStyle.Render("[c] Connect Wallet"))
	}

	return sidebarStyle.Width(sidebarWidth).Render(strings.Join(lines, "\n"))
}

func (m model) viewFooter() string {
	line1 := "↑/↓:nav • c:connect • x:disconnect • r:refresh • y:copy • P:privacy • ?:help • q:quit"
	line2 := fmt.Sprintf("%s • v%s", ProductName, Version)

	var footer string
	if m.width > 0 {
		l1 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line1)
		l2 := subtleStyle.Width(m.width).Align(lipgloss.Center).Render(line2)
		footer = lipgloss.JoinVertical(lipgloss.Center, l1, l2)
	} else {
		footer = subtleStyle.Render(line1 + "\n" + line2)
	}
	if m.statusMessage != "" {
		footer = lipgloss.JoinVertical(lipgloss.Center, infoStyle.Render(m.statusMessage), footer)
	}
	return footer
}

// --- Fund manager pages ---

func (m model) managerPage(width int) string {
	switch m.pageID() {
	case "funds":
		return m.pageWithTitle("My Funds", m.fundList(width, "No funds created yet"))
	case "beneficiaries":
		return m.pageWithTitle("Beneficiaries", m.beneficiaryList(width, "No beneficiaries added yet"))
	case "investments":
		return m.pageWithTitle("Investments", m.investments(width))
	case "payouts":
		payouts := filterTransactions(m.data.Transactions, models.TxPayout)
		return m.pageWithTitle("Payouts", m.transactionsOrEmpty(payouts, 0, width, "No payouts scheduled yet"))
	case "transactions":
		return m.pageWithTitle("Transactions", m.filteredTransactions(width))
	default:
		return m.managerDashboard(width)
	}
}

func (m model) managerDashboard(width int) string {
	half := width/2 - 1

	fundInfo := card("Fund Information", half,
		kv("Fund Name", orDefault(m.data.Fund.Name, "Not created")),
		kv("Total Value", m.fundValue("No fund created")),
		kv("Status", m.fundStatus()),
		kv("Strategy", orDefault(string(m.data.Fund.Strategy), "Not set")),
	)
	stats := card("Account Statistics", half,
		kv("Total Deposits", m.displayCurrency(m.data.TotalDeposits)),
		kv("Total Payouts", m.displayCurrency(m.data.TotalPayouts)),
		kv("Beneficiaries", fmt.Sprintf("%d / %d", len(m.data.Beneficiaries), models.MaxBeneficiaries)),
		kv("Balance", m.displayCurrency(m.data.TotalValue)),
	)
	walletInfo := m.walletCard(half)

	balances := card("Token Balances", half, m.balanceLines("No token balances available")...)
	beneficiaries := card("Beneficiaries", half, m.beneficiaryList(half, "No beneficiaries added"))

	left := lipgloss.JoinVertical(lipgloss.Left, fundInfo, stats, walletInfo)
	right := lipgloss.JoinVertical(lipgloss.Left, balances, beneficiaries)
	recent := card("Recent Transactions", width,
		m.transactionsOrEmpty(m.data.Transactions, recentTransactions, width, "No transactions found"))

	return lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right),
		recent,
	)
}

func (m model) investments(width int) string {
	if len(m.data.Balances) == 0 {
		return subtleStyle.Render("No investments made yet")
	}
	holdings := card("Holdings", width, m.balanceLines("No investments made yet")...)
	return lipgloss.JoinVertical(lipgloss.Left, holdings, card("Fund Value", width, m.valueGraph(width, "Fund Value History (USD)")))
}

// --- Beneficiary pages ---

func (m model) beneficiaryPage(width int) string {
	switch m.pageID() {
	case "funds":
		return m.pageWithTitle("Fund Details", m.fundDetails(width))
	case "payouts":
		return m.pageWithTitle("Payout History", m.payoutHistory(width))
	case "transactions":
		return m.pageWithTitle("Transaction History", m.filteredTransactions(width))
	default:
		return m.beneficiaryDashboard(width)
	}
}

func (m model) beneficiaryDashboard(width int) string {
	half := width/2 - 1

	totalPayouts := "No payouts yet"
	if m.data.TotalPayouts > 0 {
		totalPayouts = m.displayCurrency(m.data.TotalPayouts)
	}

	fundInfo := card("Fund Information", half,
		kv("Fund Name", orDefault(m.data.Fund.Name, "Not available")),
		kv("Total Value", m.fundValue("Not available")),
		kv("Manager", m.fundManager()),
		kv("Strategy", orDefault(string(m.data.Fund.Strategy), "Not available")),
	)
	stats := card("Account Statistics", half,
		kv("Total Payouts", totalPayouts),
		kv("Your Share", fmt.Sprintf("%.2f%%", m.data.SharePercentage)),
		kv("Your Value", m.displayCurrency(m.beneficiaryValue())),
	)
	walletInfo := m.walletCard(half)

	balances := card("Your Token Balances", half, m.balanceLines("No token balances available")...)
	monthly := card("Monthly Payouts", half, m.monthlyPayoutLines()...)

	left := lipgloss.JoinVertical(lipgloss.Left, fundInfo, stats, walletInfo)
	right := lipgloss.JoinVertical(lipgloss.Left, balances, monthly)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right)
}

func (m model) fundDetails(width int) string {
	overview := card("Fund Overview", width,
		kv("Fund Name", orDefault(m.data.Fund.Name, "Not available")),
		kv("Address", m.fundAddress()),
		kv("Manager", m.fundManager()),
		kv("Status", m.fundStatus()),
		kv("Total Value", m.fundValue("Not available")),
	)
	analytics := card("Performance Analytics", width,
		kv("Total Return", fmt.Sprintf("%.2f%%", m.data.Fund.Performance)),
		kv("Total Payouts", m.displayCurrency(m.data.TotalPayouts)),
		kv("Your Share", fmt.Sprintf("%.2f%%", m.data.SharePercentage)),
		kv("Your Value", m.displayCurrency(m.beneficiaryValue())),
	)
	holdings := card("Underlying Investments", width, m.balanceLines("No token balances available")...)
	chart := card("Performance Chart", width, m.valueGraph(width, "Performance Over Time (USD)"))
	return lipgloss.JoinVertical(lipgloss.Left, overview, analytics, holdings, chart)
}

func (m model) payoutHistory(width int) string {
	totals := payoutsByToken(m.data.Transactions)
	var summary []string
	if len(totals) == 0 {
		summary = []string{subtleStyle.Render("No payout history available")}
	} else {
		tokens := make([]string, 0, len(totals))
		for t := range totals {
			tokens = append(tokens, t)
		}
		sort.Strings(tokens)
		for _, t := range tokens {
			summary = append(summary, kv(t, m.displayValue(big.NewFloat(totals[t]), m.tokenDecimals)))
		}
	}
	payouts := filterTransactions(m.data.Transactions, models.TxPayout)
	return lipgloss.JoinVertical(lipgloss.Left,
		card("Payout Summary", width, summary...),
		m.transactionsOrEmpty(payouts, 0, width, "No payout history available"),
	)
}

// --- Shared pieces ---

func (m model) pageWithTitle(title, body string) string {
	return lipgloss.JoinVertical(lipgloss.Left, titleStyle.Render(title), "", body)
}

func (m model) walletCard(width int) string {
	addr := "Not connected"
	if m.wallet.IsConnected {
		addr = m.maskAddress(m.wallet.Address)
	}
	return card("Wallet Information", width,
		kv("Address", addr),
		kv("Role", m.role.Title()),
		kv("Network", m.network),
	)
}

func (m model) fundList(width int, empty string) string {
	if m.data.Fund.Address == "" {
		return subtleStyle.Render(empty)
	}
	return card(orDefault(m.data.Fund.Name, "Fund"), width,
		kv("Address", m.fundAddress()),
		kv("Status", m.fundStatus()),
		kv("Total Value", m.displayCurrency(m.data.TotalValue)),
		kv("Beneficiaries", fmt.Sprintf("%d", len(m.data.Beneficiaries))),
		kv("Min Deposit", utils.FormatTokenAmount(models.MinDeposit(), 18)+" ETH"),
		kv("Payout Every", fmt.Sprintf("%d days", int(models.PayoutInterval.Hours()/24))),
	)
}

func (m model) beneficiaryList(width int, empty string) string {
	if len(m.data.Beneficiaries) == 0 {
		return subtleStyle.Render(empty)
	}
	var rows []string
	shares := make([]float64, 0, len(m.data.Beneficiaries))
	total := 0.0
	for _, b := range m.data.Beneficiaries {
		name := orDefault(b.Name, m.maskAddress(b.Address))
		rows = append(rows, fmt.Sprintf("%-20s %6.2f%%  %s",
			utils.TruncateString(name, 20), b.SharePercentage, titleCase(string(b.Status))))
		shares = append(shares, b.SharePercentage)
		total += b.SharePercentage
	}
	if utils.ValidateSharePercentage(shares) {
		rows = append(rows, subtleStyle.Render(fmt.Sprintf("Allocated: %.2f%%", total)))
	} else {
		rows = append(rows, warnStyle.Render(fmt.Sprintf("Allocated: %.2f%% (exceeds 100%%)", total)))
	}
	return strings.Join(rows, "\n")
}

func (m model) balanceLines(empty string) []string {
	if len(m.data.Balances) == 0 {
		return []string{subtleStyle.Render(empty)}
	}
	lines := make([]string, 0, len(m.data.Balances))
	for _, b := range m.data.Balances {
		line := fmt.Sprintf("%-6s %14s", b.Symbol, m.displayValue(b.Amount, m.tokenDecimals))
		if b.Price > 0 {
			line += fmt.Sprintf(" @ $%s (%s)", m.maskFiat(b.Price), m.displayCurrency(b.Value))
		}
		lines = append(lines, line)
	}
	return lines
}

func (m model) monthlyPayoutLines() []string {
	if len(m.data.MonthlyPayouts) == 0 {
		return []string{subtleStyle.Render("No payout history available")}
	}
	lines := make([]string, 0, len(m.data.MonthlyPayouts))
	for i, v := range m.data.MonthlyPayouts {
		lines = append(lines, kv(fmt.Sprintf("Month %d", i+1), m.displayCurrency(v)))
	}
	return lines
}

func (m model) filteredTransactions(width int) string {
	label := "All"
	if m.txFilter != "" {
		label = titleCase(string(m.txFilter))
	}
	filter := subtleStyle.Render(fmt.Sprintf("Filter Transactions: %s (f to change)", label))
	txs := filterTransactions(m.data.Transactions, m.txFilter)
	return lipgloss.JoinVertical(lipgloss.Left, filter, "", m.transactionsOrEmpty(txs, 0, width, "No transactions found"))
}

func (m model) transactionsOrEmpty(txs []models.Transaction, limit, width int, empty string) string {
	if len(txs) == 0 {
		return subtleStyle.Render(empty)
	}
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}

	t := table.New(
		table.WithColumns(transactionColumns),
		table.WithRows(m.transactionRows(txs)),
		table.WithHeight(len(txs)+2),
		table.WithWidth(width-4),
	)
	s := table.DefaultStyles()
	s.Header = tableHeaderStyle
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t.View()
}

func (m model) valueGraph(width int, caption string) string {
	if len(m.data.ValueHistory) == 0 {
		return "Not enough data to draw graph."
	}
	graphWidth := width - 24
	if graphWidth < 10 {
		graphWidth = 10
	}
	graphHeight := m.height / 4
	if graphHeight < 4 {
		graphHeight = 4
	}
	return asciigraph.Plot(m.data.ValueHistory,
		asciigraph.Height(graphHeight),
		asciigraph.Width(graphWidth),
		asciigraph.Caption(caption),
	)
}

func (m model) fundValue(empty string) string {
	if m.data.Fund.Address == "" && m.data.TotalValue == 0 {
		return empty
	}
	return m.displayCurrency(m.data.TotalValue)
}

func (m model) fundStatus() string {
	switch m.data.Fund.Status {
	case "":
		return "Not created"
	case models.FundStatusActive:
		return infoStyle.Render("Active")
	default:
		return warnStyle.Render(titleCase(string(m.data.Fund.Status)))
	}
}

func (m model) fundAddress() string {
	if m.data.Fund.Address == "" {
		return "Not deployed"
	}
	return m.maskAddress(m.data.Fund.Address)
}

func (m model) fundManager() string {
	if m.data.Fund.Manager == "" {
		return "Not available"
	}
	return m.maskAddress(m.data.Fund.Manager)
}

func (m model) viewHelp() string {
	title := m.role.Title()
	shortcuts := []string{
		"↑/k, ↓/j: Previous / Next Page",
		"1-9: Jump To Page",
		"c: Connect Wallet",
		"x: Disconnect Wallet",
		"r: Refresh Data",
	}
	if m.role == models.RoleFundManager {
		shortcuts = append(shortcuts, "a: Add Fund")
	}
	shortcuts = append(shortcuts,
		"f: Cycle Transaction Filter",
		"y: Copy Address",
		"P: Toggle Privacy",
		"q: Quit",
		"?: Toggle Help",
	)

	header := titleStyle.Render(fmt.Sprintf("Help: %s", title))
	content := boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, header, "\n", strings.Join(shortcuts, "\n")))
	footer := subtleStyle.Render("Press '?' or 'esc' to close")

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		lipgloss.JoinVertical(lipgloss.Center, content, "\n", footer),
	)
}

func card(title string, width int, lines ...string) string {
	body := append([]string{cardTitleStyle.Render(title)}, lines...)
	style := boxStyle
	if width > 4 {
		style = style.Width(width - 2)
	}
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, body...))
}

func kv(label, value string) string {
	return fmt.Sprintf("%-15s %s", label+":", value)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
