package main

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/prxssh/rabbitdm/internal/dmstats"
)

// snapshotMsg wraps one periodic() tick for bubbletea's Update loop.
type snapshotMsg dmstats.Snapshot

// waitForSnapshot blocks on ch and re-issues itself from Update, the
// standard bubbletea pattern for draining an external channel without
// polling.
func waitForSnapshot(ch <-chan dmstats.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(<-ch)
	}
}

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	table    lipgloss.Style
	help     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			MarginBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")),
		table: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
		help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1),
	}
}

// model is the dashboard for a single torrent's DownloadManager,
// fed periodic() snapshots over a channel rather than owning the DM
// itself. Grounded on mindsgn-intunja's tui.Model, trimmed to one
// torrent and one table since this core drives a single torrent per
// DM instance.
type model struct {
	snapshots <-chan dmstats.Snapshot
	snap      dmstats.Snapshot

	peerTable table.Model
	bar       progress.Model
	styles    styles
}

func newModel(snapshots <-chan dmstats.Snapshot) model {
	columns := []table.Column{
		{Title: "Peer", Width: 22},
		{Title: "Flags", Width: 6},
		{Title: "Down", Width: 12},
		{Title: "Up", Width: 12},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#7D56F4")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(lipgloss.Color("#7D56F4")).
		Bold(false)
	t.SetStyles(s)

	return model{
		snapshots: snapshots,
		peerTable: t,
		bar:       progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		styles:    defaultStyles(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForSnapshot(m.snapshots), tea.EnterAltScreen)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case snapshotMsg:
		m.snap = dmstats.Snapshot(msg)
		m.peerTable.SetRows(peerRows(m.snap.Peers))
		return m, waitForSnapshot(m.snapshots)
	}

	var cmd tea.Cmd
	m.peerTable, cmd = m.peerTable.Update(msg)
	return m, cmd
}

func (m model) View() string {
	title := m.styles.title.Render("rabbitdm")
	subtitle := m.styles.subtitle.Render(m.snap.Summary())
	bar := m.bar.ViewAs(m.snap.CompletionFraction())
	tableView := m.styles.table.Render(m.peerTable.View())
	help := m.styles.help.Render("[q] quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		subtitle,
		"",
		bar,
		"",
		tableView,
		help,
	)
}

func peerRows(peers []dmstats.PeerStats) []table.Row {
	rows := make([]table.Row, len(peers))
	for i, p := range peers {
		rows[i] = table.Row{
			p.Addr,
			flagString(p),
			humanize.Bytes(uint64(p.DownloadRate)) + "/s",
			humanize.Bytes(uint64(p.UploadRate)) + "/s",
		}
	}
	return rows
}

// flagString renders the choke/interest state as four characters:
// our choking of them, their choking of us, our interest in them,
// their interest in us. Upper-case means true, matching
// internal/dmstats.PeerLine's own convention.
func flagString(p dmstats.PeerStats) string {
	b := make([]byte, 4)
	b[0] = flagByte(p.AmChoking, 'C', 'u')
	b[1] = flagByte(p.PeerChoking, 'C', 'u')
	b[2] = flagByte(p.AmInterested, 'I', '.')
	b[3] = flagByte(p.PeerInterest, 'I', '.')
	return string(b)
}

func flagByte(v bool, yes, no byte) byte {
	if v {
		return yes
	}
	return no
}
