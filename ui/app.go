// Package ui renders the live view spec.md §4.14 calls for: a small
// bubbletea program listing the top local hosts by connection count and
// byte volume, refreshed every poll interval passed to NewModel. It is a thin
// presentation layer — the caller supplies a Provider closure and this
// package never reaches into a shard's flow table directly.
package ui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// HostRow is one local host's summarized activity for the live view.
type HostRow struct {
	IP          string
	Connections int
	BytesOut    uint64
	BytesIn     uint64
	PacketsOut  uint64
	PacketsIn   uint64
}

// Provider returns the current top-hosts snapshot, sorted by the
// caller's preferred ranking (e.g. descending byte volume).
type Provider func() []HostRow

type tickMsg time.Time

type rowsMsg []HostRow

// Model is the bubbletea model for the live host table.
type Model struct {
	provider Provider
	interval time.Duration
	tbl      table.Model
}

// NewModel builds a Model polling provider every interval.
func NewModel(provider Provider, interval time.Duration) Model {
	columns := []table.Column{
		{Title: "Host", Width: 18},
		{Title: "Conns", Width: 8},
		{Title: "Bytes Out", Width: 12},
		{Title: "Bytes In", Width: 12},
		{Title: "Pkts Out", Width: 10},
		{Title: "Pkts In", Width: 10},
	}
	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.Foreground(colorMagenta).Bold(true).BorderForeground(colorGray)
	styles.Selected = selectedStyle
	tbl.SetStyles(styles)

	return Model{provider: provider, interval: interval, tbl: tbl}
}

// Init kicks off the first poll and the recurring tick.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tick(m.interval))
}

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) refresh() tea.Cmd {
	provider := m.provider
	return func() tea.Msg { return rowsMsg(provider()) }
}

// Update handles key input, the poll tick, and refreshed rows.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), tick(m.interval))
	case rowsMsg:
		rows := make([]table.Row, len(msg))
		for i, r := range msg {
			rows[i] = table.Row{
				r.IP,
				fmt.Sprintf("%d", r.Connections),
				humanize.Bytes(r.BytesOut),
				humanize.Bytes(r.BytesIn),
				humanize.Comma(int64(r.PacketsOut)),
				humanize.Comma(int64(r.PacketsIn)),
			}
		}
		m.tbl.SetRows(rows)
		return m, nil
	}

	var cmd tea.Cmd
	m.tbl, cmd = m.tbl.Update(msg)
	return m, cmd
}

// View renders the host table plus a help line.
func (m Model) View() string {
	return panelStyle.Render(m.tbl.View()) + "\n" + helpStyle.Render("q: quit")
}
