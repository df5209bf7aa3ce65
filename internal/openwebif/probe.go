package openwebif

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/e2remote/e2remote/internal/reqlog"
)

const (
	// DefaultProbeTimeout bounds a connectivity probe.
	DefaultProbeTimeout = 15 * time.Second

	// DefaultReconnectAttempts is the attempt cap used by Reconnect callers
	// that have no preference.
	DefaultReconnectAttempts = 3

	// DefaultReconnectDelay is the fixed pause between reconnect attempts.
	DefaultReconnectDelay = 2 * time.Second
)

// Prober checks that an address hosts a reachable OpenWebif receiver.
//
// Only one probe is outstanding per Prober: starting a probe cancels the
// previous one, whose caller then gets a cancelled transport error (see
// IsCancelled).
type Prober struct {
	// HTTPClient is the underlying HTTP client. Its own Timeout should be
	// zero or larger than Timeout; the probe timer is authoritative.
	HTTPClient *http.Client

	// Log receives one entry per probe (optional)
	Log *reqlog.Log

	// Timeout is how long to wait for /web/about before giving up
	Timeout time.Duration

	mu       sync.Mutex
	seq      uint64
	inflight context.CancelCauseFunc
}

// NewProber creates a prober with the default 15s timeout.
func NewProber(log *reqlog.Log) *Prober {
	return &Prober{
		HTTPClient: &http.Client{},
		Log:        log,
		Timeout:    DefaultProbeTimeout,
	}
}

// Probe requests /web/about once. It returns nil on HTTP 200,
// ErrTypeServer on any other status, ErrTypeHostUnreachable when the host
// cannot be reached or the timeout elapses first, and ErrTypeTransport for
// other failures. An empty address fails immediately with
// ErrTypeInvalidAddress and no request is made.
func (p *Prober) Probe(ctx context.Context, address string) error {
	rawURL, err := AboutURL(address)
	if err != nil {
		return rejected(reqlog.KindProbe, address, err)
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	seq := p.begin(cancel)
	defer p.end(seq, cancel)

	// Buffered so the request goroutine can finish after we stop listening.
	result := make(chan error, 1)
	go func() {
		result <- p.probeOnce(reqCtx, address, rawURL)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-result:
		return err
	case <-timer.C:
		timeoutErr := NewTimeoutError(address)
		cancel(timeoutErr)
		return timeoutErr
	case <-ctx.Done():
		return classifyRequestError(ctx, ctx.Err(), address)
	}
}

func (p *Prober) probeOnce(ctx context.Context, address, rawURL string) error {
	resp, err := getRequest(ctx, p.client(), p.Log, reqlog.KindProbe, address, rawURL, summaryLimit+1)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return NewServerError(address, resp.StatusCode)
	}
	return nil
}

func (p *Prober) client() *http.Client {
	if p.HTTPClient == nil {
		return http.DefaultClient
	}
	return p.HTTPClient
}

// begin registers a new in-flight probe, cancelling the previous one.
func (p *Prober) begin(cancel context.CancelCauseFunc) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inflight != nil {
		p.inflight(context.Canceled)
	}
	p.seq++
	p.inflight = cancel
	return p.seq
}

func (p *Prober) end(seq uint64, cancel context.CancelCauseFunc) {
	p.mu.Lock()
	if p.seq == seq {
		p.inflight = nil
	}
	p.mu.Unlock()
	cancel(context.Canceled)
}

// Reconnect probes address up to attempts times, pausing delay between
// failures. It returns nil on the first success and
// ErrTypeReconnectExhausted wrapping the last failure otherwise. Invalid
// addresses are not retried.
//
// Nothing calls Reconnect automatically; it exists for front ends that
// offer an explicit "reconnect" action.
func (p *Prober) Reconnect(ctx context.Context, address string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = DefaultReconnectAttempts
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		last = p.Probe(ctx, address)
		if last == nil {
			return nil
		}
		if IsInvalidAddress(last) {
			return last
		}
		if attempt == attempts {
			break
		}

		select {
		case <-ctx.Done():
			return NewReconnectExhaustedError(address, attempt, last)
		case <-time.After(delay):
		}
	}
	return NewReconnectExhaustedError(address, attempts, last)
}
