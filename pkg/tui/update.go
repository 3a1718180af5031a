package tui

import (
	"fmt"
	"strconv"
	"time"

	"fundboard/pkg/models"
	"fundboard/pkg/wallet"
	"fundboard/pkg/watcher"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case watcher.Event:
		cmds = append(cmds, listenForWatcher(m.sub))

		switch msg.Type {
		case watcher.EventDataUpdated:
			if data, ok := msg.Data.(models.FundData); ok {
				m.data = data
				m.lastUpdate = data.UpdatedAt
			}
		case watcher.EventStatusUpdated:
			if st, ok := msg.Data.(watcher.Status); ok {
				m.status = st
			}
		case watcher.EventWalletChanged:
			if st, ok := msg.Data.(wallet.State); ok {
				m.wallet = st
			}
		}

	case walletMsg:
		m.wallet = msg.state
		switch {
		case msg.state.Error != "":
			m.statusMessage = fmt.Sprintf("Wallet error: %s", msg.state.Error)
		case msg.action == "connect":
			m.statusMessage = "Wallet connected"
		default:
			m.statusMessage = "Wallet disconnected"
		}
		cmds = append(cmds, clearStatusAfter(3*time.Second))

	case tea.KeyMsg:
		if msg.String() == "?" {
			m.showHelp = !m.showHelp
			return m, nil
		}
		if m.showHelp {
			if msg.String() == "q" || msg.String() == "esc" {
				m.showHelp = false
			}
			return m, nil
		}

		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "down", "j", "tab":
			m.movePage(1)
		case "up", "k", "shift+tab":
			m.movePage(-1)
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			if n, _ := strconv.Atoi(msg.String()); n <= len(m.menu) {
				m.page = n - 1
			}

		case "c":
			if m.wallet.IsConnected || m.wallet.IsConnecting {
				break
			}
			m.wallet.IsConnecting = true
			m.statusMessage = "Connecting wallet..."
			cmds = append(cmds, connectWallet(m.watcher.Session()))

		case "x":
			if !m.wallet.IsConnected {
				break
			}
			m.statusMessage = "Disconnecting wallet..."
			cmds = append(cmds, disconnectWallet(m.watcher.Session()))

		case "r":
			if !m.wallet.IsConnected {
				m.statusMessage = "Connect a wallet to load fund data"
				cmds = append(cmds, clearStatusAfter(2*time.Second))
				break
			}
			m.status.Loading = true
			m.watcher.Refresh()
			m.statusMessage = "Refreshing data..."
			cmds = append(cmds, clearStatusAfter(2*time.Second))

		case "a":
			if m.role != models.RoleFundManager {
				break
			}
			if idx := m.pageIndex("funds"); idx >= 0 {
				m.page = idx
			}
			m.statusMessage = "Fund creation needs a deployed fund contract"
			cmds = append(cmds, clearStatusAfter(3*time.Second))

		case "f":
			if m.pageID() == "transactions" {
				m.txFilter = nextTxFilter(m.txFilter)
			}

		case "P":
			m.privacyMode = !m.privacyMode

		case "y":
			if !m.wallet.IsConnected {
				break
			}
			if err := clipboard.WriteAll(m.wallet.Address); err != nil {
				m.statusMessage = "Failed to copy to clipboard"
			} else {
				m.statusMessage = "Full address copied to clipboard!"
			}
			cmds = append(cmds, clearStatusAfter(2*time.Second))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case clearStatusMsg:
		m.statusMessage = ""
	}

	return m, tea.Batch(cmds...)
}
