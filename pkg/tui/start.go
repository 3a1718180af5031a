package tui

import (
	"fundboard/pkg/config"
	"fundboard/pkg/models"
	"fundboard/pkg/watcher"

	tea "github.com/charmbracelet/bubbletea"
)

// Start runs the dashboard for role until the user quits.
func Start(w *watcher.Watcher, cfg config.Config, role models.Role, version string) error {
	Version = version
	m := initialModel(w, cfg, role)
	defer w.Unsubscribe(m.sub)

	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
	return err
}
