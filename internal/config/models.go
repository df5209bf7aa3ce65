package config

import (
	"strings"
	"time"
)

// CurrentVersion is the config file format version written by Save.
const CurrentVersion = 1

// Preference defaults.
const (
	DefaultPreviewIntervalSeconds = 5
	DefaultProbeTimeoutSeconds    = 15
	DefaultLogCapacity            = 200
)

// Registry represents the entire user configuration file.
type Registry struct {
	Version int `yaml:"version"`

	// Addresses lists every address a probe has succeeded against, oldest
	// first, without duplicates.
	Addresses []string `yaml:"addresses,omitempty"`

	Devices     map[string]*Device `yaml:"devices,omitempty"` // Keyed by address
	Preferences *Preferences       `yaml:"preferences,omitempty"`
}

// Device represents user-defined metadata for a single receiver.
type Device struct {
	Nickname      string    `yaml:"nickname,omitempty"`       // User-friendly name
	Model         string    `yaml:"model,omitempty"`          // As reported by discovery
	LastConnected time.Time `yaml:"last_connected,omitempty"` // Last successful probe
}

// Preferences represents application-wide user preferences.
type Preferences struct {
	HighResPreview         bool `yaml:"high_res_preview"`         // Grab full resolution with OSD
	FilterPreviewLogs      bool `yaml:"filter_preview_logs"`      // Hide grab requests in the request log
	PreviewIntervalSeconds int  `yaml:"preview_interval_seconds"` // Seconds between grabs
	ProbeTimeoutSeconds    int  `yaml:"probe_timeout_seconds"`    // Connectivity probe timeout
	LogCapacity            int  `yaml:"log_capacity"`             // Request log entries kept
}

// DefaultPreferences returns the preferences used for a new file.
func DefaultPreferences() *Preferences {
	return &Preferences{
		FilterPreviewLogs:      true,
		PreviewIntervalSeconds: DefaultPreviewIntervalSeconds,
		ProbeTimeoutSeconds:    DefaultProbeTimeoutSeconds,
		LogCapacity:            DefaultLogCapacity,
	}
}

// PreviewInterval returns the polling interval, falling back to the default
// for unset or invalid values.
func (p *Preferences) PreviewInterval() time.Duration {
	if p == nil || p.PreviewIntervalSeconds <= 0 {
		return DefaultPreviewIntervalSeconds * time.Second
	}
	return time.Duration(p.PreviewIntervalSeconds) * time.Second
}

// ProbeTimeout returns the probe timeout, falling back to the default.
func (p *Preferences) ProbeTimeout() time.Duration {
	if p == nil || p.ProbeTimeoutSeconds <= 0 {
		return DefaultProbeTimeoutSeconds * time.Second
	}
	return time.Duration(p.ProbeTimeoutSeconds) * time.Second
}

// RequestLogCapacity returns the log capacity, falling back to the default.
func (p *Preferences) RequestLogCapacity() int {
	if p == nil || p.LogCapacity <= 0 {
		return DefaultLogCapacity
	}
	return p.LogCapacity
}

// NewRegistry creates a new Registry with default values.
func NewRegistry() *Registry {
	return &Registry{
		Version:     CurrentVersion,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
	}
}

// RememberAddress appends address to the address list unless it is
// already there. It reports whether the list changed.
func (r *Registry) RememberAddress(address string) bool {
	address = strings.TrimSpace(address)
	if address == "" || r.HasAddress(address) {
		return false
	}
	r.Addresses = append(r.Addresses, address)
	return true
}

// HasAddress reports whether address is in the address list.
func (r *Registry) HasAddress(address string) bool {
	for _, a := range r.Addresses {
		if a == address {
			return true
		}
	}
	return false
}

// ForgetAddress removes address and its device metadata.
func (r *Registry) ForgetAddress(address string) bool {
	for i, a := range r.Addresses {
		if a == address {
			r.Addresses = append(r.Addresses[:i], r.Addresses[i+1:]...)
			delete(r.Devices, address)
			return true
		}
	}
	return false
}

// MostRecentAddress returns the address connected to most recently, or the
// newest list entry when no connection times are recorded.
func (r *Registry) MostRecentAddress() string {
	best := ""
	var bestAt time.Time
	for _, a := range r.Addresses {
		if d := r.Devices[a]; d != nil && d.LastConnected.After(bestAt) {
			best, bestAt = a, d.LastConnected
		}
	}
	if best != "" {
		return best
	}
	if n := len(r.Addresses); n > 0 {
		return r.Addresses[n-1]
	}
	return ""
}

// GetDevice retrieves device metadata by address.
// Returns nil if the device doesn't exist in the registry.
func (r *Registry) GetDevice(address string) *Device {
	return r.Devices[address]
}

// EnsureDevice returns the metadata entry for address, creating it if needed.
func (r *Registry) EnsureDevice(address string) *Device {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}

	if device, exists := r.Devices[address]; exists {
		return device
	}

	device := &Device{}
	r.Devices[address] = device
	return device
}

// MarkConnected records a successful probe: the address is remembered and
// its last-connected time set.
func (r *Registry) MarkConnected(address string, at time.Time) {
	r.RememberAddress(address)
	r.EnsureDevice(address).LastConnected = at
}

// SetDeviceNickname sets a user-friendly nickname for a device.
func (r *Registry) SetDeviceNickname(address, nickname string) {
	r.EnsureDevice(address).Nickname = nickname
}

// DisplayName returns the nickname for address, or the address itself.
func (r *Registry) DisplayName(address string) string {
	if d := r.Devices[address]; d != nil && d.Nickname != "" {
		return d.Nickname
	}
	return address
}

// normalize fills in anything a hand-edited or older file may lack and
// drops duplicate addresses.
func (r *Registry) normalize() {
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}

	seen := make(map[string]bool, len(r.Addresses))
	unique := r.Addresses[:0]
	for _, a := range r.Addresses {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		unique = append(unique, a)
	}
	r.Addresses = unique
}
