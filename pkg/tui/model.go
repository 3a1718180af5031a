package tui

import (
	"time"

	"fundboard/pkg/config"
	"fundboard/pkg/models"
	"fundboard/pkg/wallet"
	"fundboard/pkg/watcher"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version is set by Start()
var Version = "dev"

// ProductName is shown in the footer of both dashboards.
const ProductName = "Fund Management System v1.0"

// walletTimeout bounds a connect or disconnect started from a key press.
const walletTimeout = 30 * time.Second

// --- Messages ---

type clearStatusMsg struct{}

// walletMsg carries the session state after a connect or disconnect.
type walletMsg struct {
	action string
	state  wallet.State
}

// --- Model ---

type model struct {
	role          models.Role
	menu          []models.MenuItem
	page          int
	network       string
	fiatDecimals  int
	tokenDecimals int

	watcher *watcher.Watcher
	sub     watcher.Subscriber
	wallet  wallet.State
	data    models.FundData
	status  watcher.Status

	width         int
	height        int
	spinner       spinner.Model
	statusMessage string
	showHelp      bool
	privacyMode   bool
	txFilter      models.TransactionType // empty means all
	lastUpdate    time.Time
}

func initialModel(w *watcher.Watcher, cfg config.Config, role models.Role) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	snap := w.Snapshot()
	return model{
		role:          role,
		menu:          models.MenuFor(role),
		network:       cfg.Network,
		fiatDecimals:  cfg.FiatDecimals,
		tokenDecimals: cfg.TokenDecimals,
		watcher:       w,
		sub:           w.Subscribe(),
		wallet:        snap.Wallet,
		data:          snap.Data,
		status:        snap.Status,
		spinner:       s,
		lastUpdate:    snap.Data.UpdatedAt,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(listenForWatcher(m.sub), m.spinner.Tick)
}
