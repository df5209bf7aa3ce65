// Package session tracks whether the remote is connected to a receiver and
// gates commands on that.
//
// A Session owns the ConnectionState. Only probe outcomes change it, and
// only the outcome of the most recent Connect, Reconnect or Disconnect
// counts: each of those bumps a generation number and a probe result whose
// generation is no longer current is discarded.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/notify"
	"github.com/e2remote/e2remote/internal/openwebif"
)

// Prober checks reachability of a receiver.
type Prober interface {
	Probe(ctx context.Context, address string) error
	Reconnect(ctx context.Context, address string, attempts int, delay time.Duration) error
}

// Commander sends key presses and power-state changes.
type Commander interface {
	Send(ctx context.Context, address string, cmd openwebif.Command) error
	SendPowerState(ctx context.Context, address string, state openwebif.PowerState) error
}

// Recorder persists addresses that were connected to successfully.
type Recorder interface {
	RecordConnection(address string, at time.Time) error
}

// State is a snapshot of the connection. At most one of Connected and
// Connecting is true; neither means idle.
type State struct {
	Connected  bool
	Connecting bool
	Address    string
	LastError  error
}

// Status returns "connected", "connecting", "failed" or "idle".
func (s State) Status() string {
	switch {
	case s.Connected:
		return "connected"
	case s.Connecting:
		return "connecting"
	case s.LastError != nil:
		return "failed"
	default:
		return "idle"
	}
}

// Reason returns a human-readable description of LastError, or "".
func (s State) Reason() string {
	return openwebif.ShortMessage(s.LastError)
}

// Session composes a prober and a command client around one
// ConnectionState.
type Session struct {
	prober   Prober
	client   Commander
	recorder Recorder

	// mu also orders Publish calls, so observers see snapshots in the
	// order they were committed.
	mu    sync.Mutex
	state State
	gen   uint64

	now     func() time.Time
	updates *notify.Hub[State]
}

// New creates an idle session. recorder may be nil.
func New(prober Prober, client Commander, recorder Recorder) *Session {
	return &Session{
		prober:   prober,
		client:   client,
		recorder: recorder,
		now:      time.Now,
		updates:  notify.NewHub[State](),
	}
}

// Connect probes address and records the outcome. A Connect started later
// supersedes this one, in which case its result leaves the state alone.
func (s *Session) Connect(ctx context.Context, address string) error {
	address = strings.TrimSpace(address)
	gen := s.begin(address)
	err := s.prober.Probe(ctx, address)
	s.finish(gen, address, err)
	return err
}

// Reconnect probes the current address up to attempts times with delay
// between failures. It is only ever invoked explicitly.
func (s *Session) Reconnect(ctx context.Context, attempts int, delay time.Duration) error {
	address := s.State().Address
	if address == "" {
		return openwebif.NewInvalidAddressError("", nil)
	}
	gen := s.begin(address)
	err := s.prober.Reconnect(ctx, address, attempts, delay)
	s.finish(gen, address, err)
	return err
}

// Disconnect returns to idle and discards any probe still running.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.gen++
	s.state = State{Address: s.state.Address}
	snapshot := s.state
	s.updates.Publish(snapshot)
	s.mu.Unlock()

	logging.LogConnectionState(snapshot.Address, "idle", "disconnected")
}

func (s *Session) begin(address string) uint64 {
	s.mu.Lock()
	s.gen++
	gen := s.gen
	s.state = State{Connecting: true, Address: address}
	s.updates.Publish(s.state)
	s.mu.Unlock()

	logging.LogConnectionState(address, "connecting", "")
	return gen
}

func (s *Session) finish(gen uint64, address string, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		logging.Debug("Ignoring superseded probe result", zap.String("address", address), zap.Uint64("generation", gen))
		return
	}
	if err != nil {
		s.state = State{Address: address, LastError: err}
	} else {
		s.state = State{Connected: true, Address: address}
	}
	snapshot := s.state
	s.updates.Publish(snapshot)
	s.mu.Unlock()

	logging.LogConnectionState(address, snapshot.Status(), snapshot.Reason())

	if err == nil && s.recorder != nil {
		if rerr := s.recorder.RecordConnection(address, s.now()); rerr != nil {
			logging.Warn("Failed to remember address", zap.String("address", address), zap.Error(rerr))
		}
	}
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe returns a channel receiving a snapshot after every change.
func (s *Session) Subscribe(buffer int) (<-chan State, func()) {
	return s.updates.Subscribe(buffer)
}

// connectedAddress returns the address to send to, or NotConnected.
func (s *Session) connectedAddress() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.Connected {
		return "", openwebif.NewNotConnectedError(s.state.Address)
	}
	return s.state.Address, nil
}

// Send presses a key on the connected receiver. A failed send does not
// change the connection state.
func (s *Session) Send(ctx context.Context, cmd openwebif.Command) error {
	address, err := s.connectedAddress()
	if err != nil {
		return err
	}
	return s.client.Send(ctx, address, cmd)
}

// SendKey resolves a key name (see openwebif.LookupKey) and sends it.
func (s *Session) SendKey(ctx context.Context, name string) error {
	cmd, err := openwebif.LookupKey(name)
	if err != nil {
		return err
	}
	return s.Send(ctx, cmd)
}

// SendPowerState changes the power state of the connected receiver.
func (s *Session) SendPowerState(ctx context.Context, state openwebif.PowerState) error {
	address, err := s.connectedAddress()
	if err != nil {
		return err
	}
	return s.client.SendPowerState(ctx, address, state)
}
