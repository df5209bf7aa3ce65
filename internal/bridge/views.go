package bridge

import (
	"time"

	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

type connectionView struct {
	Status     string `json:"status"`
	Connected  bool   `json:"connected"`
	Connecting bool   `json:"connecting"`
	Address    string `json:"address,omitempty"`
	Error      string `json:"error,omitempty"`
}

func newConnectionView(s session.State) connectionView {
	return connectionView{
		Status:     s.Status(),
		Connected:  s.Connected,
		Connecting: s.Connecting,
		Address:    s.Address,
		Error:      s.Reason(),
	}
}

type previewView struct {
	Polling         bool       `json:"polling"`
	Loading         bool       `json:"loading"`
	Address         string     `json:"address,omitempty"`
	Resolution      string     `json:"resolution"`
	IntervalSeconds float64    `json:"interval_seconds"`
	HasImage        bool       `json:"has_image"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
	Error           string     `json:"error,omitempty"`
}

func newPreviewView(p openwebif.PreviewState) previewView {
	v := previewView{
		Polling:         p.Polling,
		Loading:         p.Loading,
		Address:         p.Address,
		Resolution:      p.Resolution.String(),
		IntervalSeconds: p.Interval.Seconds(),
		HasImage:        len(p.Image) > 0,
		Width:           p.Width,
		Height:          p.Height,
		Error:           p.ErrorMessage(),
	}
	if !p.LastUpdated.IsZero() {
		t := p.LastUpdated
		v.LastUpdated = &t
	}
	return v
}

type entryView struct {
	ID         uint64    `json:"id"`
	Kind       string    `json:"kind"`
	Timestamp  time.Time `json:"timestamp"`
	URL        string    `json:"url"`
	StatusCode int       `json:"status_code,omitempty"`
	Summary    string    `json:"summary,omitempty"`
	Completed  bool      `json:"completed"`
	DurationMS int64     `json:"duration_ms"`
}

func newEntryView(e reqlog.Entry) entryView {
	return entryView{
		ID:         e.ID,
		Kind:       string(e.Kind),
		Timestamp:  e.Timestamp,
		URL:        e.URL,
		StatusCode: e.StatusCode,
		Summary:    e.Summary,
		Completed:  e.Completed,
		DurationMS: e.Duration.Milliseconds(),
	}
}

type stateView struct {
	Connection connectionView `json:"connection"`
	Preview    previewView    `json:"preview"`
}

type keyView struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Command int    `json:"command"`
}

type deviceView struct {
	Address       string     `json:"address"`
	Name          string     `json:"name"`
	Model         string     `json:"model,omitempty"`
	LastConnected *time.Time `json:"last_connected,omitempty"`
}
