package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/e2remote/e2remote/internal/config"
	"github.com/e2remote/e2remote/internal/discovery"
	"github.com/e2remote/e2remote/internal/openwebif"
)

// connectRequestMsg asks the app to connect to an address.
type connectRequestMsg struct {
	address string
}

// scanRequestMsg asks the app to start a network scan.
type scanRequestMsg struct{}

// connectItem is one receiver the user can pick.
type connectItem struct {
	Address string
	Name    string
	Detail  string // "remembered", "OpenWebif" or "unconfirmed"
}

// ConnectModel is the receiver picker shown until a probe succeeds.
type ConnectModel struct {
	Items  []connectItem
	Cursor int

	Scanning   bool
	ScanErr    error
	Connecting bool
	Target     string
	Err        error

	// Manual IP entry state
	ManualMode bool
	IPInput    textinput.Model

	Width   int
	Height  int
	Spinner spinner.Model
	Help    help.Model
	Keys    connectKeyMap
}

// NewConnectModel lists the remembered addresses of reg, most recently
// connected first. reg may be nil.
func NewConnectModel(reg *config.Registry) ConnectModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ipInput := textinput.New()
	ipInput.Placeholder = "192.168.1.20"
	ipInput.CharLimit = 64 // room for host:port and IPv6
	ipInput.Width = 30

	m := ConnectModel{
		IPInput: ipInput,
		Spinner: s,
		Help:    help.New(),
		Keys:    newConnectKeyMap(),
	}

	if reg != nil {
		recent := reg.MostRecentAddress()
		if recent != "" {
			m.add(connectItem{Address: recent, Name: reg.DisplayName(recent), Detail: "remembered"})
		}
		for i := len(reg.Addresses) - 1; i >= 0; i-- {
			a := reg.Addresses[i]
			m.add(connectItem{Address: a, Name: reg.DisplayName(a), Detail: "remembered"})
		}
	}
	return m
}

// add appends item unless its address is already listed.
func (m *ConnectModel) add(item connectItem) {
	for _, existing := range m.Items {
		if existing.Address == item.Address {
			return
		}
	}
	m.Items = append(m.Items, item)
}

// Selected returns the highlighted item, if any.
func (m ConnectModel) Selected() (connectItem, bool) {
	if m.Cursor < 0 || m.Cursor >= len(m.Items) {
		return connectItem{}, false
	}
	return m.Items[m.Cursor], true
}

// Busy reports whether a scan or connect is running.
func (m ConnectModel) Busy() bool {
	return m.Scanning || m.Connecting
}

// StartConnecting marks address as the connect target.
func (m ConnectModel) StartConnecting(address string) (ConnectModel, tea.Cmd) {
	wasBusy := m.Busy()
	m.Connecting = true
	m.Target = address
	m.Err = nil
	if wasBusy {
		return m, nil
	}
	return m, m.Spinner.Tick
}

// StartScanning marks a scan as running.
func (m ConnectModel) StartScanning() (ConnectModel, tea.Cmd) {
	wasBusy := m.Busy()
	m.Scanning = true
	m.ScanErr = nil
	if wasBusy {
		return m, nil
	}
	return m, m.Spinner.Tick
}

// Update handles messages and updates the model
func (m ConnectModel) Update(msg tea.Msg) (ConnectModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.ManualMode {
			return m.updateManualMode(msg)
		}
		return m.updateNormalMode(msg)

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height

	case connectDoneMsg:
		if msg.address == m.Target {
			m.Connecting = false
			m.Err = msg.err
		}

	case scanCompleteMsg:
		m.Scanning = false
		m.ScanErr = msg.err
		for _, item := range itemsFromDevices(msg.devices) {
			m.add(item)
		}

	case spinner.TickMsg:
		if !m.Busy() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m ConnectModel) updateNormalMode(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch {
	case key.Matches(msg, m.Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.Keys.Up):
		if m.Cursor > 0 {
			m.Cursor--
		}

	case key.Matches(msg, m.Keys.Down):
		if m.Cursor < len(m.Items)-1 {
			m.Cursor++
		}

	case key.Matches(msg, m.Keys.Enter):
		if item, ok := m.Selected(); ok && !m.Connecting {
			return m, request(connectRequestMsg{address: item.Address})
		}

	case key.Matches(msg, m.Keys.Scan):
		if !m.Scanning {
			return m, request(scanRequestMsg{})
		}

	case key.Matches(msg, m.Keys.Manual):
		m.ManualMode = true
		m.IPInput.SetValue("")
		return m, m.IPInput.Focus()
	}
	return m, nil
}

func (m ConnectModel) updateManualMode(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		m.ManualMode = false
		m.IPInput.Blur()
		return m, nil

	case "enter":
		address := strings.TrimSpace(m.IPInput.Value())
		if address == "" {
			return m, nil
		}
		m.ManualMode = false
		m.IPInput.Blur()
		return m, request(connectRequestMsg{address: address})
	}

	var cmd tea.Cmd
	m.IPInput, cmd = m.IPInput.Update(msg)
	return m, cmd
}

func request(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// View renders the picker
func (m ConnectModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(AppName) + " " + MutedTextStyle.Render(AppVersion()))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("Choose a receiver"))
	b.WriteString("\n\n")

	if len(m.Items) == 0 && !m.Scanning {
		b.WriteString(MutedTextStyle.Render("  No receivers yet. Press s to scan or m to enter an IP address."))
		b.WriteString("\n")
	}
	for i, item := range m.Items {
		line := fmt.Sprintf("%s  %s", item.Name, MutedTextStyle.Render(item.Detail))
		if item.Name != item.Address {
			line = fmt.Sprintf("%s (%s)  %s", item.Name, item.Address, MutedTextStyle.Render(item.Detail))
		}
		if i == m.Cursor {
			b.WriteString(SelectedListItemStyle.Render("→ " + line))
		} else {
			b.WriteString(ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if m.ManualMode {
		b.WriteString("\n  Receiver IP: ")
		b.WriteString(m.IPInput.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	switch {
	case m.Connecting:
		b.WriteString(m.Spinner.View() + " Connecting to " + m.Target + "…")
	case m.Scanning:
		b.WriteString(m.Spinner.View() + " Scanning the network…")
	case m.Err != nil:
		b.WriteString(ErrorTextStyle.Render("✗ " + openwebif.ShortMessage(m.Err)))
	case m.ScanErr != nil:
		b.WriteString(ErrorTextStyle.Render("✗ Scan failed: " + m.ScanErr.Error()))
	}
	b.WriteString("\n")

	b.WriteString(HelpStyle.Render(m.Help.View(m.Keys)))
	return b.String()
}

func itemsFromDevices(devices []*discovery.Device) []connectItem {
	items := make([]connectItem, 0, len(devices))
	for _, d := range devices {
		detail := "unconfirmed"
		if d.Confirmed {
			detail = "OpenWebif"
		}
		items = append(items, connectItem{Address: d.Address(), Name: d.Name(), Detail: detail})
	}
	return items
}
