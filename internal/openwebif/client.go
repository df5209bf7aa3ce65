package openwebif

import (
	"context"
	"net/http"
	"time"

	"github.com/e2remote/e2remote/internal/reqlog"
)

// Client sends remote-control key presses and power-state changes.
//
// Client keeps no connection state: every call is a single GET against the
// address it is given, with no retry. Whether a session is established is
// the caller's concern (see the session package).
type Client struct {
	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Log receives one entry per request (optional)
	Log *reqlog.Log
}

// NewClient creates a command client that records its requests in log.
// log may be nil.
func NewClient(log *reqlog.Log) *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Log:        log,
	}
}

// SetTimeout sets the HTTP request timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.HTTPClient.Timeout = timeout
}

// Send presses a remote-control key on the device at address.
// The response body is ignored; any 200 response is success.
func (c *Client) Send(ctx context.Context, address string, cmd Command) error {
	rawURL, err := RemoteControlURL(address, cmd)
	if err != nil {
		return rejected(reqlog.KindCommand, address, err)
	}
	return c.fire(ctx, reqlog.KindCommand, address, rawURL)
}

// SendPowerState switches the device at address to the given power state.
func (c *Client) SendPowerState(ctx context.Context, address string, state PowerState) error {
	rawURL, err := PowerStateURL(address, state)
	if err != nil {
		return rejected(reqlog.KindPower, address, err)
	}
	return c.fire(ctx, reqlog.KindPower, address, rawURL)
}

func (c *Client) fire(ctx context.Context, kind reqlog.Kind, address, rawURL string) error {
	resp, err := getRequest(ctx, c.HTTPClient, c.Log, kind, address, rawURL, summaryLimit+1)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return NewServerError(address, resp.StatusCode)
	}
	return nil
}
