package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/e2remote/e2remote/internal/discovery"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

// Messages delivered from subscriptions. Each handler re-arms its listener.
type sessionStateMsg session.State
type previewStateMsg openwebif.PreviewState
type logEntryMsg reqlog.Entry

// Results of commands started from Update.
type connectDoneMsg struct {
	address string
	err     error
}

type sendDoneMsg struct {
	label string
	err   error
}

// previewDoneMsg reports a preview start or stop. epoch is the started
// session's, or zero.
type previewDoneMsg struct {
	epoch uint64
	err   error
}

// firstImageMsg is sent once a preview session shows its first grab.
type firstImageMsg struct {
	epoch uint64
}

type scanCompleteMsg struct {
	devices []*discovery.Device
	err     error
}

// goBackMsg returns to the connect screen.
type goBackMsg struct{}

// commandTimeout bounds a key press or power change started from the UI.
const commandTimeout = 15 * time.Second

func listenSession(ch <-chan session.State) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return sessionStateMsg(s)
	}
}

func listenPreview(ch <-chan openwebif.PreviewState) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-ch
		if !ok {
			return nil
		}
		return previewStateMsg(p)
	}
}

func listenLog(ch <-chan reqlog.Entry) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return logEntryMsg(e)
	}
}

// waitFirstImage reports the session's first image. It returns nothing if
// the session ends first.
func waitFirstImage(sess *openwebif.PreviewSession) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-sess.FirstImage():
			return firstImageMsg{epoch: sess.Epoch()}
		case <-sess.Done():
			return nil
		}
	}
}

func connectCmd(s *session.Session, address string) tea.Cmd {
	return func() tea.Msg {
		err := s.Connect(context.Background(), address)
		return connectDoneMsg{address: address, err: err}
	}
}

func reconnectCmd(s *session.Session) tea.Cmd {
	return func() tea.Msg {
		err := s.Reconnect(context.Background(), openwebif.DefaultReconnectAttempts, openwebif.DefaultReconnectDelay)
		return connectDoneMsg{address: s.State().Address, err: err}
	}
}

func sendKeyCmd(s *session.Session, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return sendDoneMsg{label: name, err: s.SendKey(ctx, name)}
	}
}

func powerCmd(s *session.Session, state openwebif.PowerState) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()
		return sendDoneMsg{label: "power " + state.String(), err: s.SendPowerState(ctx, state)}
	}
}

func scanCmd(sc Scanner) tea.Cmd {
	return func() tea.Msg {
		devices, err := sc.Scan(context.Background())
		return scanCompleteMsg{devices: devices, err: err}
	}
}
