package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
)

const maxBodyBytes = 4096

func (a *API) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) snapshot() stateView {
	return stateView{
		Connection: newConnectionView(a.session.State()),
		Preview:    newPreviewView(a.poller.State()),
	}
}

func (a *API) getState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.snapshot())
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

type connectRequest struct {
	Address string `json:"address"`
}

func (a *API) connect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Address == "" && a.store != nil {
		if reg, err := a.store.Load(); err == nil {
			req.Address = reg.MostRecentAddress()
		}
	}

	if err := a.session.Connect(r.Context(), req.Address); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.snapshot())
}

type reconnectRequest struct {
	Attempts int   `json:"attempts"`
	DelayMS  int64 `json:"delay_ms"`
}

func (a *API) reconnect(w http.ResponseWriter, r *http.Request) {
	req := reconnectRequest{
		Attempts: openwebif.DefaultReconnectAttempts,
		DelayMS:  openwebif.DefaultReconnectDelay.Milliseconds(),
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}
	if req.Attempts <= 0 || req.Attempts > maxReconnectAttempts || req.DelayMS < 0 {
		writeError(w, http.StatusBadRequest, "invalid_body",
			fmt.Sprintf("attempts must be between 1 and %d and delay_ms non-negative", maxReconnectAttempts))
		return
	}
	delay := time.Duration(req.DelayMS) * time.Millisecond
	if delay > time.Minute {
		writeError(w, http.StatusBadRequest, "invalid_body", "delay_ms must not exceed 60000")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), a.reconnectDeadline(req.Attempts, delay))
	defer cancel()
	if err := a.session.Reconnect(ctx, req.Attempts, delay); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a.snapshot())
}

// disconnect also stops the preview, which would otherwise keep grabbing
// from a receiver the user has walked away from.
func (a *API) disconnect(w http.ResponseWriter, _ *http.Request) {
	a.poller.Stop()
	a.session.Disconnect()
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *API) listKeys(w http.ResponseWriter, _ *http.Request) {
	keys := make([]keyView, 0, len(openwebif.Keys))
	for _, k := range openwebif.Keys {
		keys = append(keys, keyView{Name: k.Name, Label: k.Label, Command: int(k.Command)})
	}
	writeJSON(w, http.StatusOK, keys)
}

func (a *API) sendKey(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "key")
	cmd, err := openwebif.LookupKey(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_key", err.Error())
		return
	}
	if err := a.session.Send(r.Context(), cmd); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": name, "command": int(cmd)})
}

func (a *API) sendPower(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "state")
	state, err := openwebif.LookupPowerState(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown_power_state", err.Error())
		return
	}
	if err := a.session.SendPowerState(r.Context(), state); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state.String(), "newstate": int(state)})
}

type previewRequest struct {
	HighRes         *bool `json:"high_res"`
	IntervalSeconds int   `json:"interval_seconds"`
}

func (a *API) startPreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	conn := a.session.State()
	if !conn.Connected {
		writeDeviceError(w, openwebif.NewNotConnectedError(conn.Address))
		return
	}

	highRes := a.prefs != nil && a.prefs.HighResPreview
	if req.HighRes != nil {
		highRes = *req.HighRes
	}
	interval := a.prefs.PreviewInterval()
	if req.IntervalSeconds > 0 {
		interval = time.Duration(req.IntervalSeconds) * time.Second
	}

	sess, err := a.poller.Start(conn.Address, interval, highRes)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	go a.watchFirstImage(sess)
	logging.Info("Preview started via bridge",
		zap.String("address", conn.Address),
		zap.Bool("high_res", highRes),
		zap.Duration("interval", interval),
	)
	writeJSON(w, http.StatusOK, newPreviewView(a.poller.State()))
}

// watchFirstImage announces sess's first grab on the event stream. It
// returns when the session ends or the API is closed.
func (a *API) watchFirstImage(sess *openwebif.PreviewSession) {
	select {
	case <-sess.FirstImage():
		a.firstImages.Publish(a.poller.State())
	case <-sess.Done():
	case <-a.closed:
	}
}

func (a *API) stopPreview(w http.ResponseWriter, _ *http.Request) {
	a.poller.Stop()
	writeJSON(w, http.StatusOK, newPreviewView(a.poller.State()))
}

func (a *API) previewImage(w http.ResponseWriter, _ *http.Request) {
	state := a.poller.State()
	if len(state.Image) == 0 {
		writeError(w, http.StatusNotFound, "no_image", "No screen grab received yet")
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(state.Image))
	w.Header().Set("Cache-Control", "no-store")
	if !state.LastUpdated.IsZero() {
		w.Header().Set("Last-Modified", state.LastUpdated.UTC().Format(http.TimeFormat))
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(state.Image)
}

func (a *API) listLog(w http.ResponseWriter, r *http.Request) {
	if a.log == nil {
		writeJSON(w, http.StatusOK, []entryView{})
		return
	}

	var filter reqlog.Filter
	if raw := r.URL.Query().Get("hide_preview"); raw != "" {
		hide, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_filter", "hide_preview must be true or false")
			return
		}
		filter.HidePreview = hide
	} else if a.prefs != nil {
		filter.HidePreview = a.prefs.FilterPreviewLogs
	}

	entries := a.log.Entries(filter)
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, newEntryView(e))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) clearLog(w http.ResponseWriter, _ *http.Request) {
	if a.log != nil {
		a.log.Clear()
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) listDevices(w http.ResponseWriter, _ *http.Request) {
	if a.store == nil {
		writeJSON(w, http.StatusOK, []deviceView{})
		return
	}
	reg, err := a.store.Load()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "config_error", err.Error())
		return
	}

	devices := make([]deviceView, 0, len(reg.Addresses))
	for _, addr := range reg.Addresses {
		v := deviceView{Address: addr, Name: reg.DisplayName(addr)}
		if d := reg.GetDevice(addr); d != nil {
			v.Model = d.Model
			if !d.LastConnected.IsZero() {
				t := d.LastConnected
				v.LastConnected = &t
			}
		}
		devices = append(devices, v)
	}
	writeJSON(w, http.StatusOK, devices)
}
