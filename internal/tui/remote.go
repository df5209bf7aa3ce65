package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

// Requests from the remote screen, carried out by the app.
type (
	sendRequestMsg      struct{ name string }
	powerRequestMsg     struct{ state openwebif.PowerState }
	previewRequestMsg   struct{ on, highRes bool }
	reconnectRequestMsg struct{}
	clearLogRequestMsg  struct{}
)

// minLogLines is the log pane height when the window size is unknown.
const minLogLines = 8

// RemoteModel is the screen shown while a receiver is selected.
type RemoteModel struct {
	Conn    session.State
	Preview openwebif.PreviewState
	Entries []reqlog.Entry

	HidePreview bool
	HighRes     bool

	// PreviewEpoch is the running preview session. PreviewLive is set once
	// that session has shown an image.
	PreviewEpoch uint64
	PreviewLive  bool

	// Outcome of the most recent key press
	LastAction string
	LastErr    error
	Pending    int

	ShowFullHelp bool

	Width  int
	Height int
	Help   help.Model
	Keys   remoteKeyMap
}

// NewRemoteModel creates the remote screen with the log filter and
// resolution preferences applied.
func NewRemoteModel(hidePreview, highRes bool) RemoteModel {
	return RemoteModel{
		HidePreview: hidePreview,
		HighRes:     highRes,
		Help:        help.New(),
		Keys:        newRemoteKeyMap(),
	}
}

// Filter returns the log filter currently selected.
func (m RemoteModel) Filter() reqlog.Filter {
	return reqlog.Filter{HidePreview: m.HidePreview}
}

// Update handles messages and updates the model
func (m RemoteModel) Update(msg tea.Msg) (RemoteModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Help.Width = msg.Width

	case sendDoneMsg:
		if m.Pending > 0 {
			m.Pending--
		}
		m.LastAction = msg.label
		m.LastErr = msg.err

	case previewDoneMsg:
		if msg.err != nil {
			m.LastAction = "preview"
			m.LastErr = msg.err
		} else if msg.epoch != 0 {
			m.PreviewEpoch = msg.epoch
			m.PreviewLive = false
		}

	case firstImageMsg:
		if msg.epoch == m.PreviewEpoch {
			m.PreviewLive = true
		}

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m RemoteModel) updateKeys(msg tea.KeyMsg) (RemoteModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Help):
		m.ShowFullHelp = !m.ShowFullHelp
		m.Help.ShowAll = m.ShowFullHelp
		return m, nil

	case key.Matches(msg, m.Keys.Power):
		m.Pending++
		return m, request(powerRequestMsg{state: openwebif.PowerStandby})

	case key.Matches(msg, m.Keys.Preview):
		return m, request(previewRequestMsg{on: !m.Preview.Polling, highRes: m.HighRes})

	case key.Matches(msg, m.Keys.HighRes):
		m.HighRes = !m.HighRes
		if m.Preview.Polling {
			// Resolution only changes through a restart
			return m, request(previewRequestMsg{on: true, highRes: m.HighRes})
		}
		return m, nil

	case key.Matches(msg, m.Keys.Filter):
		m.HidePreview = !m.HidePreview
		return m, nil

	case key.Matches(msg, m.Keys.ClearLog):
		return m, request(clearLogRequestMsg{})

	case key.Matches(msg, m.Keys.Reconnect):
		return m, request(reconnectRequestMsg{})

	case key.Matches(msg, m.Keys.Disconnect):
		return m, request(goBackMsg{})
	}

	if name, ok := m.Keys.buttonFor(msg.String()); ok {
		m.Pending++
		return m, request(sendRequestMsg{name: name})
	}
	return m, nil
}

// View renders the remote screen
func (m RemoteModel) View() string {
	width := contentWidth(m.Width)
	var b strings.Builder

	b.WriteString(TitleStyle.Render(AppName) + " " + MutedTextStyle.Render(AppVersion()))
	b.WriteString("\n\n")

	status := lipgloss.JoinVertical(lipgloss.Left,
		m.connectionLine(),
		m.previewLine(),
		m.actionLine(),
	)
	b.WriteString(PanelStyle.Width(width - 2).Render(status))
	b.WriteString("\n")

	b.WriteString(PanelStyle.Width(width - 2).Render(m.logPane(width - 6)))
	b.WriteString("\n")

	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

func (m RemoteModel) connectionLine() string {
	switch m.Conn.Status() {
	case "connected":
		return OKTextStyle.Render("● Connected") + " " + m.Conn.Address
	case "connecting":
		return PendingTextStyle.Render("● Connecting") + " " + m.Conn.Address
	case "failed":
		return ErrorTextStyle.Render("● Not connected") + " " + m.Conn.Address + MutedTextStyle.Render(" - "+m.Conn.Reason()+" (R to reconnect)")
	default:
		return MutedTextStyle.Render("● Idle") + " " + m.Conn.Address
	}
}

func (m RemoteModel) previewLine() string {
	p := m.Preview
	if !p.Polling {
		line := "Preview: off"
		if len(p.Image) > 0 {
			line += fmt.Sprintf(" (last %dx%d at %s)", p.Width, p.Height, p.LastUpdated.Format("15:04:05"))
		}
		return MutedTextStyle.Render(line)
	}

	parts := []string{fmt.Sprintf("Preview: %s every %s", p.Resolution, p.Interval)}
	if m.PreviewLive && len(p.Image) > 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", p.Width, p.Height), "updated "+p.LastUpdated.Format("15:04:05"))
	} else {
		parts = append(parts, "waiting for first image")
	}
	line := strings.Join(parts, " · ")
	if p.Loading {
		line += PendingTextStyle.Render(" ⟳")
	}
	if p.Err != nil {
		line += " " + ErrorTextStyle.Render(p.ErrorMessage())
	}
	return line
}

func (m RemoteModel) actionLine() string {
	switch {
	case m.LastAction == "":
		return MutedTextStyle.Render("Press a key to control the receiver")
	case m.LastErr != nil:
		return ErrorTextStyle.Render("✗ "+m.LastAction+": ") + openwebif.ShortMessage(m.LastErr)
	default:
		return OKTextStyle.Render("✓ ") + "Sent " + m.LastAction
	}
}

// logLines is how many log entries fit below the status panel.
func (m RemoteModel) logLines() int {
	n := m.Height - 14
	if m.ShowFullHelp {
		n -= 10
	}
	if n < minLogLines {
		return minLogLines
	}
	return n
}

func (m RemoteModel) logPane(width int) string {
	title := "Requests"
	if m.HidePreview {
		title += MutedTextStyle.Render(" (screen grabs hidden)")
	}

	entries := m.Entries
	if n := m.logLines(); len(entries) > n {
		entries = entries[len(entries)-n:]
	}

	lines := []string{PanelTitleStyle.Render(title)}
	if len(entries) == 0 {
		lines = append(lines, MutedTextStyle.Render("No requests yet"))
	}
	for _, e := range entries {
		text := e.String()
		if width > 1 && lipgloss.Width(text) > width {
			text = truncate(text, width)
		}
		switch {
		case e.Pending():
			lines = append(lines, PendingTextStyle.Render(text))
		case e.StatusCode == 200:
			lines = append(lines, text)
		default:
			lines = append(lines, ErrorTextStyle.Render(text))
		}
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	return string(runes[:width-1]) + "…"
}

