package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	registry := prometheus.NewRegistry()
	registry.MustRegister(c)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(registry).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	return w.Body.String()
}

func TestMetricsEndpoint(t *testing.T) {
	c := NewCollector()

	c.ObserveEntry(reqlog.Entry{Kind: reqlog.KindCommand, StatusCode: 200, Completed: true, Duration: 20 * time.Millisecond})
	c.ObserveEntry(reqlog.Entry{Kind: reqlog.KindCommand, StatusCode: 200, Completed: true, Duration: 30 * time.Millisecond})
	c.ObserveEntry(reqlog.Entry{Kind: reqlog.KindProbe, Completed: true})
	c.ObserveEntry(reqlog.Entry{Kind: reqlog.KindPreview}) // pending, ignored
	c.ObserveConnection(session.State{Connected: true, Address: "192.168.1.20"})
	c.ObservePreview(openwebif.PreviewState{Polling: true, LastUpdated: time.Unix(1700000000, 0)})

	body := scrape(t, c)

	expected := []string{
		`e2remote_requests_total{kind="command",status="200"} 2`,
		`e2remote_requests_total{kind="probe",status="error"} 1`,
		`e2remote_request_duration_seconds_count{kind="command"} 2`,
		`e2remote_connected{address="192.168.1.20"} 1`,
		`e2remote_preview_polling 1`,
		`e2remote_preview_last_image_timestamp_seconds 1.7e+09`,
	}
	for _, line := range expected {
		if !strings.Contains(body, line) {
			t.Errorf("Expected %q in output", line)
		}
	}
	if strings.Contains(body, `kind="preview"`) {
		t.Error("pending entries should not be counted")
	}

	t.Logf("Metrics output:\n%s", body)
}

func TestObserveConnectionIgnoresConnecting(t *testing.T) {
	c := NewCollector()
	c.ObserveConnection(session.State{Connected: true, Address: "10.0.0.1"})
	c.ObserveConnection(session.State{Connecting: true, Address: "10.0.0.2"})

	body := scrape(t, c)
	if !strings.Contains(body, `e2remote_connected{address="10.0.0.1"} 1`) {
		t.Errorf("connecting state should not overwrite the last outcome:\n%s", body)
	}
}

func TestRunFollowsRequestLog(t *testing.T) {
	log := reqlog.New(10)
	c := NewCollector()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx, Sources{Log: log})
		close(done)
	}()

	// Run subscribes asynchronously; keep issuing until one is counted.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		id := log.Begin(reqlog.KindPower, "http://10.0.0.1/web/powerstate?newstate=0")
		log.Complete(id, reqlog.Outcome{StatusCode: 200})
		time.Sleep(10 * time.Millisecond)
		if strings.Contains(scrape(t, c), `kind="power"`) {
			cancel()
			<-done
			return
		}
	}
	cancel()
	<-done
	t.Fatal("request log entries never reached the collector")
}
