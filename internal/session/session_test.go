package session

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/openwebif"
)

// fakeProber returns queued results. Probes of blockOn wait for release and
// then fail.
type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   []string
	blockOn string
	release chan struct{}

	reconnectErr error
}

func (f *fakeProber) Probe(ctx context.Context, address string) error {
	f.mu.Lock()
	f.calls = append(f.calls, address)
	block := f.blockOn != "" && address == f.blockOn
	var err error
	if !block && len(f.results) > 0 {
		err = f.results[0]
		f.results = f.results[1:]
	}
	f.mu.Unlock()

	if address == "" {
		return openwebif.NewInvalidAddressError("", nil)
	}
	if block {
		<-f.release
		return openwebif.NewTimeoutError(address)
	}
	return err
}

func (f *fakeProber) Reconnect(ctx context.Context, address string, attempts int, delay time.Duration) error {
	return f.reconnectErr
}

type sent struct {
	address string
	cmd     openwebif.Command
	power   openwebif.PowerState
	isPower bool
}

type fakeCommander struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeCommander) Send(ctx context.Context, address string, cmd openwebif.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{address: address, cmd: cmd})
	return f.err
}

func (f *fakeCommander) SendPowerState(ctx context.Context, address string, state openwebif.PowerState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sent{address: address, power: state, isPower: true})
	return f.err
}

type fakeRecorder struct {
	addresses []string
}

func (f *fakeRecorder) RecordConnection(address string, at time.Time) error {
	f.addresses = append(f.addresses, address)
	return nil
}

func TestConnectSuccess(t *testing.T) {
	rec := &fakeRecorder{}
	s := New(&fakeProber{}, &fakeCommander{}, rec)

	if err := s.Connect(context.Background(), " 192.168.1.20 "); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	state := s.State()
	if !state.Connected || state.Connecting || state.Address != "192.168.1.20" || state.LastError != nil {
		t.Errorf("state = %+v, want connected to 192.168.1.20", state)
	}
	if state.Status() != "connected" {
		t.Errorf("Status() = %q", state.Status())
	}
	if len(rec.addresses) != 1 || rec.addresses[0] != "192.168.1.20" {
		t.Errorf("recorded = %v, want the address once", rec.addresses)
	}
}

func TestConnectFailure(t *testing.T) {
	rec := &fakeRecorder{}
	probeErr := openwebif.NewServerError("192.168.1.20", 500)
	s := New(&fakeProber{results: []error{probeErr}}, &fakeCommander{}, rec)

	err := s.Connect(context.Background(), "192.168.1.20")
	if !openwebif.IsServerError(err) {
		t.Fatalf("Connect() error = %v, want server error", err)
	}

	state := s.State()
	if state.Connected || state.Connecting {
		t.Errorf("state = %+v, want not connected", state)
	}
	if state.Reason() != "Receiver error (HTTP 500)" {
		t.Errorf("Reason() = %q", state.Reason())
	}
	if state.Status() != "failed" {
		t.Errorf("Status() = %q, want failed", state.Status())
	}
	if len(rec.addresses) != 0 {
		t.Error("failed connection should not be recorded")
	}
}

func TestConnectEmptyAddress(t *testing.T) {
	s := New(&fakeProber{}, &fakeCommander{}, nil)

	err := s.Connect(context.Background(), "")
	if !openwebif.IsInvalidAddress(err) {
		t.Fatalf("Connect() error = %v, want invalid address", err)
	}
	if s.State().Connected {
		t.Error("should not be connected")
	}
}

func TestSupersededProbeIsIgnored(t *testing.T) {
	prober := &fakeProber{
		blockOn: "10.0.0.1",
		release: make(chan struct{}),
	}
	s := New(prober, &fakeCommander{}, nil)
	updates, cancel := s.Subscribe(16)
	defer cancel()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- s.Connect(context.Background(), "10.0.0.1")
	}()

	// Wait until the first probe is in flight.
	select {
	case st := <-updates:
		if !st.Connecting || st.Address != "10.0.0.1" {
			t.Fatalf("first update = %+v, want connecting to 10.0.0.1", st)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first Connect never started")
	}

	if err := s.Connect(context.Background(), "10.0.0.2"); err != nil {
		t.Fatalf("second Connect() error = %v", err)
	}

	close(prober.release)
	if err := <-firstDone; !openwebif.IsHostUnreachable(err) {
		t.Errorf("first Connect() error = %v, want its own failure returned", err)
	}

	state := s.State()
	if !state.Connected || state.Address != "10.0.0.2" {
		t.Errorf("state = %+v, want the later connection kept", state)
	}
}

func TestDisconnect(t *testing.T) {
	s := New(&fakeProber{}, &fakeCommander{}, nil)
	_ = s.Connect(context.Background(), "10.0.0.1")

	s.Disconnect()

	state := s.State()
	if state.Connected || state.Connecting {
		t.Errorf("state = %+v, want idle", state)
	}
	if state.Status() != "idle" {
		t.Errorf("Status() = %q, want idle", state.Status())
	}
	if state.Address != "10.0.0.1" {
		t.Errorf("Address = %q, want it kept for display", state.Address)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	cmd := &fakeCommander{}
	s := New(&fakeProber{}, cmd, nil)

	if err := s.Send(context.Background(), openwebif.KeyOK); !openwebif.IsNotConnected(err) {
		t.Errorf("Send() error = %v, want not connected", err)
	}
	if err := s.SendPowerState(context.Background(), openwebif.PowerStandby); !openwebif.IsNotConnected(err) {
		t.Errorf("SendPowerState() error = %v, want not connected", err)
	}
	if len(cmd.sent) != 0 {
		t.Errorf("commands reached the client: %+v", cmd.sent)
	}
}

func TestSendWhenConnected(t *testing.T) {
	cmd := &fakeCommander{}
	s := New(&fakeProber{}, cmd, nil)
	_ = s.Connect(context.Background(), "10.0.0.1")

	if err := s.SendKey(context.Background(), "volup"); err != nil {
		t.Fatalf("SendKey() error = %v", err)
	}
	if err := s.SendPowerState(context.Background(), openwebif.PowerStandby); err != nil {
		t.Fatalf("SendPowerState() error = %v", err)
	}
	if err := s.SendKey(context.Background(), "nonsense"); err == nil {
		t.Error("SendKey() with an unknown key should fail")
	}

	want := []sent{
		{address: "10.0.0.1", cmd: openwebif.KeyVolumeUp},
		{address: "10.0.0.1", power: openwebif.PowerStandby, isPower: true},
	}
	if len(cmd.sent) != len(want) {
		t.Fatalf("sent = %+v, want %+v", cmd.sent, want)
	}
	for i := range want {
		if cmd.sent[i] != want[i] {
			t.Errorf("sent[%d] = %+v, want %+v", i, cmd.sent[i], want[i])
		}
	}
}

func TestFailedSendKeepsConnection(t *testing.T) {
	cmd := &fakeCommander{err: openwebif.NewServerError("10.0.0.1", 500)}
	s := New(&fakeProber{}, cmd, nil)
	_ = s.Connect(context.Background(), "10.0.0.1")

	if err := s.Send(context.Background(), openwebif.KeyOK); !openwebif.IsServerError(err) {
		t.Errorf("Send() error = %v, want server error", err)
	}
	if !s.State().Connected {
		t.Error("a failed command should not change the connection state")
	}
}

func TestReconnect(t *testing.T) {
	t.Run("requires an address", func(t *testing.T) {
		s := New(&fakeProber{}, &fakeCommander{}, nil)
		if err := s.Reconnect(context.Background(), 3, time.Millisecond); !openwebif.IsInvalidAddress(err) {
			t.Errorf("Reconnect() error = %v, want invalid address", err)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		prober := &fakeProber{results: []error{openwebif.NewTimeoutError("10.0.0.1")}}
		s := New(prober, &fakeCommander{}, nil)
		_ = s.Connect(context.Background(), "10.0.0.1")

		prober.reconnectErr = openwebif.NewReconnectExhaustedError("10.0.0.1", 3, openwebif.NewTimeoutError("10.0.0.1"))
		err := s.Reconnect(context.Background(), 3, time.Millisecond)
		if !openwebif.IsReconnectExhausted(err) {
			t.Fatalf("Reconnect() error = %v, want exhausted", err)
		}
		if st := s.State(); st.Connected || !openwebif.IsReconnectExhausted(st.LastError) {
			t.Errorf("state = %+v", st)
		}
	})

	t.Run("recovers", func(t *testing.T) {
		prober := &fakeProber{results: []error{openwebif.NewTimeoutError("10.0.0.1")}}
		s := New(prober, &fakeCommander{}, nil)
		_ = s.Connect(context.Background(), "10.0.0.1")

		if err := s.Reconnect(context.Background(), 3, time.Millisecond); err != nil {
			t.Fatalf("Reconnect() error = %v", err)
		}
		if !s.State().Connected {
			t.Error("should be connected after a successful reconnect")
		}
	})
}

// useSlowLogger installs a debug logger whose writes take a while, which
// widens any gap between committing a state and announcing it.
func useSlowLogger(t *testing.T) {
	t.Helper()
	prev := logging.GetLogger()
	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
		zapcore.AddSync(io.Discard),
		zapcore.DebugLevel,
	)
	logging.SetLogger(zap.New(core, zap.Hooks(func(zapcore.Entry) error {
		time.Sleep(50 * time.Microsecond)
		return nil
	})))
	t.Cleanup(func() { logging.SetLogger(prev) })
}

func TestObserversEndOnCurrentState(t *testing.T) {
	useSlowLogger(t)

	for round := 0; round < 500; round++ {
		s := New(&fakeProber{}, &fakeCommander{}, nil)
		updates, cancel := s.Subscribe(16)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.Connect(context.Background(), "10.0.0.5")
		}()
		go func() {
			defer wg.Done()
			s.Disconnect()
		}()
		wg.Wait()
		cancel()

		var last State
		seen := 0
		for st := range updates {
			last = st
			seen++
		}
		want := s.State()
		if seen == 0 || last.Status() != want.Status() || last.Address != want.Address {
			t.Fatalf("round %d: last published %+v (%d updates), State() = %+v", round, last, seen, want)
		}
	}
}
