package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Device represents an HTTP service found on the local network that may be
// an Enigma2 receiver.
type Device struct {
	// Instance is the advertised service instance name (e.g., "vuultimo4k")
	Instance string

	// Hostname is the mDNS hostname (e.g., "vuultimo4k.local.")
	Hostname string

	// IP is the IPv4 address, or IPv6 when no IPv4 was advertised
	IP string

	// Port is the HTTP port (typically 80)
	Port int

	// Metadata contains the mDNS TXT record data
	Metadata map[string]string

	// LikelyReceiver is set when the name matches a known receiver brand
	// or image
	LikelyReceiver bool

	// Confirmed is set when /web/about answered with HTTP 200
	Confirmed bool

	// ConfirmError is the probe failure for unconfirmed candidates
	ConfirmError error

	// DiscoveredAt is when the device was discovered
	DiscoveredAt time.Time
}

// Address returns the device address as the rest of the program expects
// it: the bare IP on port 80, host:port otherwise.
func (d *Device) Address() string {
	if d.Port == 0 || d.Port == DefaultPort {
		return d.IP
	}
	return net.JoinHostPort(d.IP, strconv.Itoa(d.Port))
}

// Name returns the instance name, falling back to the hostname.
func (d *Device) Name() string {
	if d.Instance != "" {
		return d.Instance
	}
	return d.Hostname
}

// String returns a human-readable string representation of the device
func (d *Device) String() string {
	status := "unconfirmed"
	if d.Confirmed {
		status = "OpenWebif"
	}
	return fmt.Sprintf("%s (%s) at %s [%s]", d.Name(), d.Hostname, d.Address(), status)
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (d *Device) GetMetadata(key string) string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata[key]
}
