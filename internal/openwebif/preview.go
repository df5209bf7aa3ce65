package openwebif

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"  // grab plugins on some images answer with gif/png
	_ "image/jpeg" // default grab format
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/notify"
	"github.com/e2remote/e2remote/internal/reqlog"
)

// DefaultPreviewInterval is the polling interval used when Start is given a
// non-positive one.
const DefaultPreviewInterval = 5 * time.Second

// Resolution selects the screen-grab size.
type Resolution int

const (
	// ResolutionSD grabs at 720 lines (r=720).
	ResolutionSD Resolution = iota
	// ResolutionHD grabs the full frame including OSD (mode=all).
	ResolutionHD
)

// ResolutionFor maps the high-resolution flag to a Resolution.
func ResolutionFor(highRes bool) Resolution {
	if highRes {
		return ResolutionHD
	}
	return ResolutionSD
}

// String returns "SD" or "HD".
func (r Resolution) String() string {
	if r == ResolutionHD {
		return "HD"
	}
	return "SD"
}

// Frame is one decoded screen grab.
type Frame struct {
	Data   []byte // encoded bytes as received
	Format string // "jpeg", "png", ...
	Width  int
	Height int
}

// PreviewState is a snapshot of the poller. Image is shared between
// snapshots and must not be modified.
type PreviewState struct {
	Address     string
	Polling     bool
	Loading     bool
	Image       []byte
	Width       int
	Height      int
	Err         error
	LastUpdated time.Time
	Resolution  Resolution
	Interval    time.Duration
}

// ErrorMessage returns a user-facing description of Err, or "".
func (s PreviewState) ErrorMessage() string {
	return ShortMessage(s.Err)
}

// PreviewSession identifies one Start..Stop cycle.
type PreviewSession struct {
	epoch     uint64
	first     chan struct{}
	firstOnce sync.Once
	done      chan struct{}
}

// Epoch returns the session's generation number.
func (s *PreviewSession) Epoch() uint64 {
	return s.epoch
}

// FirstImage is closed when the session's first image has been applied.
// It is never closed for a session that is stopped before any success.
func (s *PreviewSession) FirstImage() <-chan struct{} {
	return s.first
}

// Done is closed when the session is stopped or replaced by a newer Start.
func (s *PreviewSession) Done() <-chan struct{} {
	return s.done
}

func (s *PreviewSession) markFirst() bool {
	fired := false
	s.firstOnce.Do(func() {
		close(s.first)
		fired = true
	})
	return fired
}

// Poller periodically fetches screen grabs from one device.
//
// Each Start begins a new session with a fresh epoch. Results are applied
// only if their epoch is still current, so a fetch that completes after
// Stop or a newer Start never touches the state. Within a session fetches
// run one at a time.
type Poller struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Log receives one entry per fetch (optional)
	Log *reqlog.Log

	// mu is held across Publish so snapshots arrive in commit order.
	mu      sync.Mutex
	state   PreviewState
	epoch   uint64
	session *PreviewSession
	cancel  context.CancelFunc

	now     func() time.Time
	updates *notify.Hub[PreviewState]
}

// NewPoller creates an idle poller.
func NewPoller(log *reqlog.Log) *Poller {
	return &Poller{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Log:        log,
		now:        time.Now,
		updates:    notify.NewHub[PreviewState](),
	}
}

// FetchOnce downloads and decodes a single grab. It does not touch the
// poller's state.
func (p *Poller) FetchOnce(ctx context.Context, address string, highRes bool) (*Frame, error) {
	rawURL, err := GrabURL(address, highRes)
	if err != nil {
		return nil, rejected(reqlog.KindPreview, address, err)
	}

	resp, err := getRequest(ctx, p.HTTPClient, p.Log, reqlog.KindPreview, address, rawURL, maxGrabSize)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, NewServerError(address, resp.StatusCode)
	}

	img, format, err := image.Decode(bytes.NewReader(resp.Body))
	if err != nil {
		return nil, NewDecodeError(address, err)
	}
	b := img.Bounds()
	return &Frame{
		Data:   resp.Body,
		Format: format,
		Width:  b.Dx(),
		Height: b.Dy(),
	}, nil
}

// Start stops any running session and begins polling address every
// interval, fetching once immediately. Resolution and interval are fixed
// for the session; change them by calling Start again.
func (p *Poller) Start(address string, interval time.Duration, highRes bool) (*PreviewSession, error) {
	if _, err := GrabURL(address, highRes); err != nil {
		return nil, rejected(reqlog.KindPreview, address, err)
	}
	if interval <= 0 {
		interval = DefaultPreviewInterval
	}

	ctx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.stopLocked()
	p.epoch++
	sess := &PreviewSession{epoch: p.epoch, first: make(chan struct{}), done: make(chan struct{})}
	p.session = sess
	p.cancel = cancel
	p.state.Address = address
	p.state.Polling = true
	p.state.Loading = false
	p.state.Err = nil
	p.state.Resolution = ResolutionFor(highRes)
	p.state.Interval = interval
	snapshot := p.state
	p.updates.Publish(snapshot)
	p.mu.Unlock()

	logging.Info("Preview started",
		zap.String("address", address),
		zap.String("resolution", snapshot.Resolution.String()),
		zap.Duration("interval", interval),
		zap.Uint64("epoch", sess.epoch),
	)

	go p.run(ctx, sess, address, interval, highRes)
	return sess, nil
}

// Stop cancels the timer and any in-flight fetch. It is safe to call when
// already stopped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopLocked() {
		p.mu.Unlock()
		return
	}
	snapshot := p.state
	p.updates.Publish(snapshot)
	p.mu.Unlock()

	logging.Info("Preview stopped", zap.String("address", snapshot.Address))
}

// stopLocked ends the current session. It reports whether one was running.
func (p *Poller) stopLocked() bool {
	if p.cancel == nil {
		return false
	}
	p.cancel()
	p.cancel = nil
	close(p.session.done)
	p.session = nil
	// Invalidate results still in flight.
	p.epoch++
	p.state.Polling = false
	p.state.Loading = false
	return true
}

// State returns the current snapshot.
func (p *Poller) State() PreviewState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Polling reports whether a session is running.
func (p *Poller) Polling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Subscribe returns a channel receiving a snapshot after every change.
func (p *Poller) Subscribe(buffer int) (<-chan PreviewState, func()) {
	return p.updates.Subscribe(buffer)
}

func (p *Poller) run(ctx context.Context, sess *PreviewSession, address string, interval time.Duration, highRes bool) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p.tick(ctx, sess, address, highRes)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) tick(ctx context.Context, sess *PreviewSession, address string, highRes bool) {
	if !p.setLoading(sess.epoch) {
		return
	}
	frame, err := p.FetchOnce(ctx, address, highRes)
	p.apply(sess, frame, err)
}

func (p *Poller) setLoading(epoch uint64) bool {
	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return false
	}
	p.state.Loading = true
	p.updates.Publish(p.state)
	p.mu.Unlock()
	return true
}

// apply commits a fetch result if its session is still current.
func (p *Poller) apply(sess *PreviewSession, frame *Frame, err error) {
	p.mu.Lock()
	if sess.epoch != p.epoch {
		p.mu.Unlock()
		logging.Debug("Dropping stale preview result", zap.Uint64("epoch", sess.epoch))
		return
	}

	p.state.Loading = false
	first := false
	if err != nil {
		// Keep the last image on screen.
		p.state.Err = err
	} else {
		p.state.Image = frame.Data
		p.state.Width = frame.Width
		p.state.Height = frame.Height
		p.state.Err = nil
		p.state.LastUpdated = p.nextTimestamp()
		first = sess.markFirst()
	}
	snapshot := p.state
	p.updates.Publish(snapshot)
	p.mu.Unlock()

	if first {
		logging.Info("First preview image received",
			zap.String("address", snapshot.Address),
			zap.Int("width", snapshot.Width),
			zap.Int("height", snapshot.Height),
		)
	}
}

// nextTimestamp returns now, nudged forward if the clock has not advanced
// since the last update so LastUpdated is strictly increasing.
func (p *Poller) nextTimestamp() time.Time {
	t := p.now()
	if !t.After(p.state.LastUpdated) {
		t = p.state.LastUpdated.Add(time.Nanosecond)
	}
	return t
}
