package openwebif

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/version"
)

const (
	// DefaultTimeout bounds a command or power-state request.
	DefaultTimeout = 10 * time.Second

	// summaryLimit caps the response text kept in the request log.
	summaryLimit = 120

	// maxGrabSize caps how much of a screen grab is read.
	maxGrabSize = 32 << 20
)

// response is the part of an HTTP exchange callers look at.
type response struct {
	StatusCode int
	Body       []byte
}

// rejected logs a request that was never issued because its address is
// unusable, and returns err.
func rejected(kind reqlog.Kind, address string, err error) error {
	logging.Debug("Request not sent",
		zap.String("kind", string(kind)),
		zap.String("address", address),
		zap.Error(err),
	)
	return err
}

// getRequest issues a single GET and records it in the request log before
// and after. Body bytes beyond maxBody are discarded.
//
// A transport failure is returned classified; a non-200 status is returned
// as a response, so callers decide how to treat it.
func getRequest(ctx context.Context, hc *http.Client, log *reqlog.Log, kind reqlog.Kind, address, rawURL string, maxBody int64) (*response, error) {
	var id uint64
	if log != nil {
		id = log.Begin(kind, rawURL)
	}
	logging.LogRequest(string(kind), rawURL)
	start := time.Now()

	resp, err := doGet(ctx, hc, rawURL, maxBody)
	elapsed := time.Since(start)

	if err != nil {
		devErr := classifyRequestError(ctx, err, address)
		if log != nil {
			log.Complete(id, reqlog.Outcome{Summary: devErr.Message})
		}
		logging.LogResponse(string(kind), rawURL, 0, elapsed, devErr)
		return nil, devErr
	}

	if log != nil {
		log.Complete(id, reqlog.Outcome{StatusCode: resp.StatusCode, Summary: summarize(kind, resp)})
	}
	logging.LogResponse(string(kind), rawURL, resp.StatusCode, elapsed, nil)
	return resp, nil
}

func doGet(ctx context.Context, hc *http.Client, rawURL string, maxBody int64) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return &response{StatusCode: resp.StatusCode, Body: body}, nil
}

func summarize(kind reqlog.Kind, resp *response) string {
	if kind == reqlog.KindPreview {
		return byteCount(len(resp.Body))
	}
	return logging.Summarize(resp.Body, summaryLimit)
}

func byteCount(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("image, %.1f MiB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("image, %.1f KiB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("image, %d B", n)
	}
}

// classifyRequestError prefers the context's cancellation cause over the
// transport error it produced, so a probe timeout is reported as such and a
// superseded request is not mistaken for a device failure.
func classifyRequestError(ctx context.Context, err error, address string) *DeviceError {
	if ctx.Err() != nil {
		var cause *DeviceError
		if errors.As(context.Cause(ctx), &cause) {
			return cause
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return &DeviceError{Type: ErrTypeTransport, Message: "request cancelled", Address: address, Err: context.Canceled}
		}
	}
	return ClassifyNetworkError(err, address)
}

// IsCancelled reports whether err is the result of a request being
// superseded or stopped by its owner rather than a device failure.
func IsCancelled(err error) bool {
	return IsTransportError(err) && errors.Is(err, context.Canceled)
}
