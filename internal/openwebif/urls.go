package openwebif

import (
	"fmt"
	"net/url"
	"strings"
)

// OpenWebif endpoint paths.
const (
	PathAbout         = "/web/about"
	PathRemoteControl = "/web/remotecontrol"
	PathPowerState    = "/web/powerstate"
	PathGrab          = "/grab"
)

// Screen-grab query strings.
const (
	grabQuerySD = "format=jpg&r=720"
	grabQueryHD = "format=jpg&mode=all"
)

// buildURL joins a bare device address with an endpoint path and query.
// The address is not validated beyond being non-empty and yielding a
// parseable URL with a host; anything else fails later at request time.
func buildURL(address, path, rawQuery string) (string, error) {
	if strings.TrimSpace(address) == "" {
		return "", NewInvalidAddressError("", nil)
	}

	raw := "http://" + address + path
	if rawQuery != "" {
		raw += "?" + rawQuery
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", NewInvalidAddressError(address, err)
	}
	if u.Host == "" {
		return "", NewInvalidAddressError(address, fmt.Errorf("no host in %q", raw))
	}
	return raw, nil
}

// AboutURL returns the connectivity probe URL.
func AboutURL(address string) (string, error) {
	return buildURL(address, PathAbout, "")
}

// RemoteControlURL returns the URL that presses the given key.
func RemoteControlURL(address string, cmd Command) (string, error) {
	return buildURL(address, PathRemoteControl, fmt.Sprintf("command=%d", int(cmd)))
}

// PowerStateURL returns the URL that switches to the given power state.
func PowerStateURL(address string, state PowerState) (string, error) {
	return buildURL(address, PathPowerState, fmt.Sprintf("newstate=%d", int(state)))
}

// GrabURL returns the screen-grab URL at 720 lines (SD) or full
// resolution with OSD (HD).
func GrabURL(address string, highRes bool) (string, error) {
	q := grabQuerySD
	if highRes {
		q = grabQueryHD
	}
	return buildURL(address, PathGrab, q)
}
