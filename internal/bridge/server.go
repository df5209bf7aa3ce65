package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/config"
	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/notify"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
)

const (
	// defaultRequestTimeout bounds every API call except the event stream
	// and reconnect.
	defaultRequestTimeout = 30 * time.Second

	// maxReconnectAttempts caps the attempts one reconnect call may ask for.
	maxReconnectAttempts = 20

	// reconnectSlack is added to a reconnect's worst-case duration.
	reconnectSlack = 5 * time.Second

	shutdownTimeout = 15 * time.Second
)

// Options wires the bridge to the rest of the process. Session and Poller
// are required; the others may be nil.
type Options struct {
	Session *session.Session
	Poller  *openwebif.Poller
	Log     *reqlog.Log
	Store   *config.Store

	// Metrics is mounted at /metrics when set.
	Metrics http.Handler

	// Preferences supplies preview defaults for /api/preview/start.
	Preferences *config.Preferences

	// ProbeTimeout is the session prober's per-attempt timeout. It sizes
	// the deadline of /api/reconnect. Defaults to
	// openwebif.DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// RequestTimeout bounds the other API calls. Defaults to 30s.
	RequestTimeout time.Duration
}

// API serves the bridge endpoints.
type API struct {
	session *session.Session
	poller  *openwebif.Poller
	log     *reqlog.Log
	store   *config.Store
	metrics http.Handler
	prefs   *config.Preferences

	probeTimeout   time.Duration
	requestTimeout time.Duration

	// firstImages carries the preview state when a session started through
	// the API shows its first grab.
	firstImages *notify.Hub[openwebif.PreviewState]

	closed    chan struct{}
	closeOnce sync.Once
}

// New creates an API from opts.
func New(opts Options) *API {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = openwebif.DefaultProbeTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &API{
		session:        opts.Session,
		poller:         opts.Poller,
		log:            opts.Log,
		store:          opts.Store,
		metrics:        opts.Metrics,
		prefs:          opts.Preferences,
		probeTimeout:   opts.ProbeTimeout,
		requestTimeout: opts.RequestTimeout,
		firstImages:    notify.NewHub[openwebif.PreviewState](),
		closed:         make(chan struct{}),
	}
}

// reconnectDeadline is how long a reconnect of attempts probes with delay
// between failures can take.
func (a *API) reconnectDeadline(attempts int, delay time.Duration) time.Duration {
	return time.Duration(attempts)*a.probeTimeout + time.Duration(attempts-1)*delay + reconnectSlack
}

// Handler builds the routing tree.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON)
	r.Use(RequestLogger)

	// The event stream is long-lived and must not inherit the API timeout.
	r.Get("/ws", a.events)
	if a.metrics != nil {
		r.Method(http.MethodGet, "/metrics", a.metrics)
	}

	r.With(middleware.Timeout(a.requestTimeout)).Get("/healthz", a.health)
	r.Route("/api", func(r chi.Router) {
		// Reconnect sets its own deadline from the attempts it runs.
		r.Post("/reconnect", a.reconnect)

		r.Group(func(api chi.Router) {
			api.Use(middleware.Timeout(a.requestTimeout))

			api.Get("/state", a.getState)
			api.Post("/connect", a.connect)
			api.Post("/disconnect", a.disconnect)

			api.Get("/keys", a.listKeys)
			api.Post("/command/{key}", a.sendKey)
			api.Post("/power/{state}", a.sendPower)

			api.Post("/preview/start", a.startPreview)
			api.Post("/preview/stop", a.stopPreview)
			api.Get("/preview/image", a.previewImage)

			api.Get("/log", a.listLog)
			api.Delete("/log", a.clearLog)

			api.Get("/devices", a.listDevices)
		})
	})
	return r
}

// RunServer serves until ctx is cancelled, then shuts down gracefully.
func RunServer(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("Bridge listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutting down bridge", zap.String("addr", server.Addr))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	case err := <-errCh:
		return err
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeDeviceError maps a remote error to an HTTP status and error code.
func writeDeviceError(w http.ResponseWriter, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	if openwebif.IsCancelled(err) {
		status, code = http.StatusServiceUnavailable, "cancelled"
	} else if t, ok := openwebif.TypeOf(err); ok {
		switch t {
		case openwebif.ErrTypeInvalidAddress:
			status, code = http.StatusBadRequest, "invalid_address"
		case openwebif.ErrTypeNotConnected:
			status, code = http.StatusConflict, "not_connected"
		case openwebif.ErrTypeHostUnreachable:
			status, code = http.StatusBadGateway, "host_unreachable"
		case openwebif.ErrTypeTransport:
			status, code = http.StatusBadGateway, "transport_error"
		case openwebif.ErrTypeServer:
			status, code = http.StatusBadGateway, "server_error"
		case openwebif.ErrTypeDecode:
			status, code = http.StatusBadGateway, "decode_error"
		case openwebif.ErrTypeReconnectExhausted:
			status, code = http.StatusBadGateway, "reconnect_exhausted"
		}
	}
	writeError(w, status, code, openwebif.ShortMessage(err))
}
