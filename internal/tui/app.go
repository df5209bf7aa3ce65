package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/config"
	"github.com/e2remote/e2remote/internal/discovery"
	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

// Screen represents the current active screen in the application
type Screen string

const (
	ScreenConnect Screen = "connect"
	ScreenRemote  Screen = "remote"
)

// Scanner finds receivers on the local network.
type Scanner interface {
	Scan(ctx context.Context) ([]*discovery.Device, error)
}

// Deps are the components the remote drives. Session and Poller are
// required; the rest may be nil.
type Deps struct {
	Session     *session.Session
	Poller      *openwebif.Poller
	Log         *reqlog.Log
	Registry    *config.Registry
	Preferences *config.Preferences
	Scanner     Scanner

	// Address, when set, is connected to at startup.
	Address string
}

// subscriptions holds the change feeds shared by every copy of the model.
type subscriptions struct {
	states   <-chan session.State
	previews <-chan openwebif.PreviewState
	entries  <-chan reqlog.Entry
	cancels  []func()
}

func (s *subscriptions) close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}

// AppModel is the top-level coordinator model that manages screen transitions
type AppModel struct {
	CurrentScreen Screen

	Connect ConnectModel
	Remote  RemoteModel

	Width  int
	Height int

	deps Deps
	subs *subscriptions
}

// NewAppModel subscribes to deps and starts on the connect screen. Call
// Close when the program has exited.
func NewAppModel(deps Deps) AppModel {
	subs := &subscriptions{}

	ch, cancel := deps.Session.Subscribe(16)
	subs.states, subs.cancels = ch, append(subs.cancels, cancel)
	pch, pcancel := deps.Poller.Subscribe(16)
	subs.previews, subs.cancels = pch, append(subs.cancels, pcancel)
	if deps.Log != nil {
		lch, lcancel := deps.Log.Subscribe(64)
		subs.entries, subs.cancels = lch, append(subs.cancels, lcancel)
	}

	prefs := deps.Preferences
	if prefs == nil {
		prefs = config.DefaultPreferences()
	}

	m := AppModel{
		CurrentScreen: ScreenConnect,
		Connect:       NewConnectModel(deps.Registry),
		Remote:        NewRemoteModel(prefs.FilterPreviewLogs, prefs.HighResPreview),
		deps:          deps,
		subs:          subs,
	}
	m.deps.Preferences = prefs
	m.Remote.Conn = deps.Session.State()
	m.Remote.Preview = deps.Poller.State()
	m.refreshLog()
	return m
}

// Close releases the subscriptions.
func (m AppModel) Close() {
	m.subs.close()
}

// Init initializes the application
func (m AppModel) Init() tea.Cmd {
	cmds := []tea.Cmd{
		listenSession(m.subs.states),
		listenPreview(m.subs.previews),
	}
	if m.subs.entries != nil {
		cmds = append(cmds, listenLog(m.subs.entries))
	}
	if m.deps.Address != "" {
		cmds = append(cmds, request(connectRequestMsg{address: m.deps.Address}))
	}
	return tea.Batch(cmds...)
}

// Update handles all messages and routes them to the appropriate screen
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Connect, _ = m.Connect.Update(msg)
		m.Remote, _ = m.Remote.Update(msg)
		return m, nil

	case sessionStateMsg:
		state := session.State(msg)
		m.Remote.Conn = state
		if state.Connected && m.CurrentScreen == ScreenConnect {
			m.CurrentScreen = ScreenRemote
		}
		return m, listenSession(m.subs.states)

	case previewStateMsg:
		m.Remote.Preview = openwebif.PreviewState(msg)
		return m, listenPreview(m.subs.previews)

	case logEntryMsg:
		m.refreshLog()
		return m, listenLog(m.subs.entries)

	case connectRequestMsg:
		m.Connect, cmd = m.Connect.StartConnecting(msg.address)
		return m, tea.Batch(cmd, connectCmd(m.deps.Session, msg.address))

	case scanRequestMsg:
		if m.deps.Scanner == nil {
			return m, nil
		}
		m.Connect, cmd = m.Connect.StartScanning()
		return m, tea.Batch(cmd, scanCmd(m.deps.Scanner))

	case connectDoneMsg, scanCompleteMsg:
		m.Connect, cmd = m.Connect.Update(msg)
		return m, cmd

	case sendRequestMsg:
		return m, sendKeyCmd(m.deps.Session, msg.name)

	case powerRequestMsg:
		return m, powerCmd(m.deps.Session, msg.state)

	case previewRequestMsg:
		return m, m.togglePreview(msg)

	case reconnectRequestMsg:
		return m, reconnectCmd(m.deps.Session)

	case clearLogRequestMsg:
		if m.deps.Log != nil {
			m.deps.Log.Clear()
		}
		m.refreshLog()
		return m, nil

	case goBackMsg:
		m.deps.Poller.Stop()
		m.deps.Session.Disconnect()
		m.CurrentScreen = ScreenConnect
		m.Connect.Err = nil
		return m, nil
	}

	switch m.CurrentScreen {
	case ScreenRemote:
		m.Remote, cmd = m.Remote.Update(msg)
		m.refreshLog()
	default:
		m.Connect, cmd = m.Connect.Update(msg)
	}
	return m, cmd
}

// togglePreview starts or stops polling. Start and Stop return at once, so
// they run inline and the outcome is reported as a message.
func (m AppModel) togglePreview(req previewRequestMsg) tea.Cmd {
	if !req.on {
		m.deps.Poller.Stop()
		return nil
	}
	conn := m.deps.Session.State()
	if !conn.Connected {
		err := openwebif.NewNotConnectedError(conn.Address)
		logging.Debug("Preview not started", zap.Error(err))
		return request(previewDoneMsg{err: err})
	}
	sess, err := m.deps.Poller.Start(conn.Address, m.deps.Preferences.PreviewInterval(), req.highRes)
	if err != nil {
		logging.Debug("Preview not started", zap.Error(err))
		return request(previewDoneMsg{err: err})
	}
	return tea.Batch(request(previewDoneMsg{epoch: sess.Epoch()}), waitFirstImage(sess))
}

func (m *AppModel) refreshLog() {
	if m.deps.Log == nil {
		return
	}
	m.Remote.Entries = m.deps.Log.Entries(m.Remote.Filter())
}

// View renders the current screen
func (m AppModel) View() string {
	if m.CurrentScreen == ScreenRemote {
		return m.Remote.View()
	}
	return m.Connect.View()
}

// Run starts the interactive remote and blocks until the user quits.
func Run(deps Deps) error {
	model := NewAppModel(deps)
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	deps.Poller.Stop()
	return err
}
