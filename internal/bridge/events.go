package bridge

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Clients only ever send control frames and the occasional keepalive
	maxMessageSize = 512

	eventBuffer = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

// Event types sent on the stream.
const (
	EventConnection = "connection"
	EventPreview    = "preview"
	EventFirstImage = "first_image"
	EventLog        = "log"
)

type event struct {
	Type       string          `json:"type"`
	Connection *connectionView `json:"connection,omitempty"`
	Preview    *previewView    `json:"preview,omitempty"`
	Log        *entryView      `json:"log,omitempty"`
}

func connectionEvent(s session.State) event {
	v := newConnectionView(s)
	return event{Type: EventConnection, Connection: &v}
}

func previewEvent(p openwebif.PreviewState) event {
	v := newPreviewView(p)
	return event{Type: EventPreview, Preview: &v}
}

func firstImageEvent(p openwebif.PreviewState) event {
	v := newPreviewView(p)
	return event{Type: EventFirstImage, Preview: &v}
}

func logEvent(e reqlog.Entry) event {
	v := newEntryView(e)
	return event{Type: EventLog, Log: &v}
}

// Close ends every open event stream. It is safe to call more than once
// and is meant to be registered with http.Server.RegisterOnShutdown, since
// Shutdown does not wait for hijacked connections.
func (a *API) Close() {
	a.closeOnce.Do(func() { close(a.closed) })
}

func (a *API) events(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		logging.Warn("Event stream upgrade failed", zap.String("remote_addr", r.RemoteAddr), zap.Error(err))
		return
	}
	remoteAddr := r.RemoteAddr
	logging.Info("Event stream opened", zap.String("remote_addr", remoteAddr))
	defer func() {
		_ = conn.Close()
		logging.Info("Event stream closed", zap.String("remote_addr", remoteAddr))
	}()

	// Subscribe before sending the snapshot so no change falls in between.
	states, cancelStates := a.session.Subscribe(eventBuffer)
	defer cancelStates()
	previews, cancelPreviews := a.poller.Subscribe(eventBuffer)
	defer cancelPreviews()
	firsts, cancelFirsts := a.firstImages.Subscribe(eventBuffer)
	defer cancelFirsts()
	var entries <-chan reqlog.Entry
	if a.log != nil {
		ch, cancel := a.log.Subscribe(eventBuffer)
		defer cancel()
		entries = ch
	}

	readerDone := make(chan struct{})
	go readPump(conn, readerDone)

	send := func(ev event) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return false
		}
		if err := conn.WriteJSON(ev); err != nil {
			logging.Debug("Event stream write failed", zap.String("remote_addr", remoteAddr), zap.Error(err))
			return false
		}
		return true
	}

	if !send(connectionEvent(a.session.State())) || !send(previewEvent(a.poller.State())) {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		var ok bool
		select {
		case <-readerDone:
			return
		case <-a.closed:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "bridge shutting down"),
				time.Now().Add(writeWait))
			return
		case s := <-states:
			ok = send(connectionEvent(s))
		case p := <-previews:
			ok = send(previewEvent(p))
		case p := <-firsts:
			ok = send(firstImageEvent(p))
		case e := <-entries:
			ok = send(logEvent(e))
		case <-ticker.C:
			ok = conn.SetWriteDeadline(time.Now().Add(writeWait)) == nil &&
				conn.WriteMessage(websocket.PingMessage, nil) == nil
		}
		if !ok {
			return
		}
	}
}

// readPump discards client messages and keeps the read deadline alive on
// pongs. It closes done when the peer goes away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Debug("Event stream read error", zap.Error(err))
			}
			return
		}
	}
}
