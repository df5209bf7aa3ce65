// Package metrics exposes request and connection statistics in Prometheus
// format.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

const (
	namespace = "e2remote"

	// statusError labels requests that failed before a response arrived.
	statusError = "error"
)

type requestKey struct {
	kind   reqlog.Kind
	status string
}

type durationStats struct {
	count uint64
	sum   float64
}

// Collector accumulates statistics from the request log, the session and
// the preview poller and reports them on scrape.
type Collector struct {
	mu        sync.RWMutex
	requests  map[requestKey]float64
	durations map[reqlog.Kind]*durationStats

	address        string
	connected      float64
	previewPolling float64
	lastPreview    time.Time

	requestsTotalDesc    *prometheus.Desc
	requestDurationDesc  *prometheus.Desc
	connectedDesc        *prometheus.Desc
	previewPollingDesc   *prometheus.Desc
	previewLastImageDesc *prometheus.Desc
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		requests:  make(map[requestKey]float64),
		durations: make(map[reqlog.Kind]*durationStats),

		requestsTotalDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "requests_total"),
			"Total number of OpenWebif requests by kind and HTTP status",
			[]string{"kind", "status"}, nil,
		),
		requestDurationDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "request_duration_seconds"),
			"Duration of completed OpenWebif requests",
			[]string{"kind"}, nil,
		),
		connectedDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "connected"),
			"Whether the last probe succeeded (1) or not (0)",
			[]string{"address"}, nil,
		),
		previewPollingDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "preview", "polling"),
			"Whether the screen-grab poller is running",
			nil, nil,
		),
		previewLastImageDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "preview", "last_image_timestamp_seconds"),
			"Unix time of the last successful screen grab",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.requestsTotalDesc
	ch <- c.requestDurationDesc
	ch <- c.connectedDesc
	ch <- c.previewPollingDesc
	ch <- c.previewLastImageDesc
}

// Collect implements prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for key, count := range c.requests {
		ch <- prometheus.MustNewConstMetric(
			c.requestsTotalDesc,
			prometheus.CounterValue,
			count,
			string(key.kind),
			key.status,
		)
	}

	for kind, d := range c.durations {
		ch <- prometheus.MustNewConstSummary(
			c.requestDurationDesc,
			d.count,
			d.sum,
			nil,
			string(kind),
		)
	}

	if c.address != "" {
		ch <- prometheus.MustNewConstMetric(c.connectedDesc, prometheus.GaugeValue, c.connected, c.address)
	}

	ch <- prometheus.MustNewConstMetric(c.previewPollingDesc, prometheus.GaugeValue, c.previewPolling)

	if !c.lastPreview.IsZero() {
		ch <- prometheus.MustNewConstMetric(
			c.previewLastImageDesc,
			prometheus.GaugeValue,
			float64(c.lastPreview.UnixNano())/1e9,
		)
	}
}

// ObserveEntry counts a completed request. Pending entries are ignored.
func (c *Collector) ObserveEntry(e reqlog.Entry) {
	if !e.Completed {
		return
	}

	status := statusError
	if e.StatusCode != 0 {
		status = strconv.Itoa(e.StatusCode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests[requestKey{kind: e.Kind, status: status}]++
	d, ok := c.durations[e.Kind]
	if !ok {
		d = &durationStats{}
		c.durations[e.Kind] = d
	}
	d.count++
	d.sum += e.Duration.Seconds()
}

// ObserveConnection records the connection state.
func (c *Collector) ObserveConnection(s session.State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s.Connecting {
		return
	}
	c.address = s.Address
	c.connected = 0
	if s.Connected {
		c.connected = 1
	}
}

// ObservePreview records the poller state.
func (c *Collector) ObservePreview(p openwebif.PreviewState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.previewPolling = 0
	if p.Polling {
		c.previewPolling = 1
	}
	if p.LastUpdated.After(c.lastPreview) {
		c.lastPreview = p.LastUpdated
	}
}

// Sources are the components a Collector can follow. Any may be nil.
type Sources struct {
	Log     *reqlog.Log
	Session *session.Session
	Poller  *openwebif.Poller
}

// Run feeds the collector from src until ctx is done.
func (c *Collector) Run(ctx context.Context, src Sources) {
	var (
		entries  <-chan reqlog.Entry
		states   <-chan session.State
		previews <-chan openwebif.PreviewState
	)
	if src.Log != nil {
		ch, cancel := src.Log.Subscribe(64)
		defer cancel()
		entries = ch
	}
	if src.Session != nil {
		c.ObserveConnection(src.Session.State())
		ch, cancel := src.Session.Subscribe(16)
		defer cancel()
		states = ch
	}
	if src.Poller != nil {
		c.ObservePreview(src.Poller.State())
		ch, cancel := src.Poller.Subscribe(16)
		defer cancel()
		previews = ch
	}

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-entries:
			c.ObserveEntry(e)
		case s := <-states:
			c.ObserveConnection(s)
		case p := <-previews:
			c.ObservePreview(p)
		}
	}
}

// Handler returns an HTTP handler serving reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
