package discovery

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/logging"
)

const (
	// ServiceType is the mDNS service type OpenWebif advertises
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for device discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultConfirmTimeout bounds each /web/about check
	DefaultConfirmTimeout = 3 * time.Second

	// DefaultPort is the default OpenWebif HTTP port
	DefaultPort = 80

	// collectGrace is how long to wait for the resolver to drain after the
	// browse context ends
	collectGrace = 500 * time.Millisecond
)

// receiverPattern matches instance or host names used by common receiver
// brands and Enigma2 images.
var receiverPattern = regexp.MustCompile(`(?i)^(vu|dm\d|dreambox|gb|et\d|xtrend|formuler|zgemma|h\d|sf\d|osmini|mutant|enigma|openatv|openpli|openvix|egami|beyonwiz|maxytec|octagon|edision)`)

// ConfirmFunc checks that address serves OpenWebif. It must be safe to call
// concurrently.
type ConfirmFunc func(ctx context.Context, address string) error

// Scanner handles mDNS device discovery
type Scanner struct {
	// Timeout is the maximum time to wait for mDNS answers
	Timeout time.Duration

	// Confirm, when set, probes each candidate after browsing
	Confirm ConfirmFunc

	// ConfirmTimeout bounds each Confirm call
	ConfirmTimeout time.Duration

	now func() time.Time
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner(confirm ConfirmFunc) *Scanner {
	return &Scanner{
		Timeout:        DefaultScanTimeout,
		Confirm:        confirm,
		ConfirmTimeout: DefaultConfirmTimeout,
		now:            time.Now,
	}
}

// Scan browses for HTTP services until the timeout and returns the
// candidates, confirmed receivers first.
func (s *Scanner) Scan(ctx context.Context) ([]*Device, error) {
	browseCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	c := newCollector(s)
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for entry := range entries {
			c.add(entry)
		}
	}()

	if err := resolver.Browse(browseCtx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-browseCtx.Done()
	select {
	case <-collected:
	case <-time.After(collectGrace):
	}

	devices := c.devices()
	logging.Debug("mDNS browse finished", zap.Int("candidates", len(devices)))

	if s.Confirm != nil {
		s.confirmAll(ctx, devices)
	}
	sortDevices(devices)
	return devices, nil
}

// confirmAll probes every candidate concurrently.
func (s *Scanner) confirmAll(ctx context.Context, devices []*Device) {
	timeout := s.ConfirmTimeout
	if timeout <= 0 {
		timeout = DefaultConfirmTimeout
	}

	var wg sync.WaitGroup
	for _, d := range devices {
		wg.Add(1)
		go func(d *Device) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			err := s.Confirm(probeCtx, d.Address())
			d.Confirmed = err == nil
			d.ConfirmError = err
			logging.Debug("Confirmed discovery candidate",
				zap.String("address", d.Address()),
				zap.Bool("openwebif", d.Confirmed),
				zap.Error(err),
			)
		}(d)
	}
	wg.Wait()
}

// collector deduplicates entries by address as they arrive.
type collector struct {
	scanner *Scanner
	mu      sync.Mutex
	byAddr  map[string]*Device
	order   []string
}

func newCollector(s *Scanner) *collector {
	return &collector{scanner: s, byAddr: make(map[string]*Device)}
}

func (c *collector) add(entry *zeroconf.ServiceEntry) {
	device := c.scanner.parseServiceEntry(entry)
	if device == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	addr := device.Address()
	if _, seen := c.byAddr[addr]; seen {
		return
	}
	c.byAddr[addr] = device
	c.order = append(c.order, addr)
}

func (c *collector) devices() []*Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Device, 0, len(c.order))
	for _, addr := range c.order {
		out = append(out, c.byAddr[addr])
	}
	return out
}

// sortDevices orders confirmed receivers first, then likely ones, keeping
// discovery order otherwise.
func sortDevices(devices []*Device) {
	rank := func(d *Device) int {
		switch {
		case d.Confirmed:
			return 0
		case d.LikelyReceiver:
			return 1
		default:
			return 2
		}
	}
	sort.SliceStable(devices, func(i, j int) bool {
		return rank(devices[i]) < rank(devices[j])
	})
}

// parseServiceEntry converts a zeroconf service entry to a Device.
// Returns nil if the entry has no usable address.
func (s *Scanner) parseServiceEntry(entry *zeroconf.ServiceEntry) *Device {
	if entry == nil {
		return nil
	}

	// Get IP address (prefer IPv4)
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	// TXT records are in "key=value" format
	metadata := make(map[string]string)
	for _, txt := range entry.Text {
		parts := strings.SplitN(txt, "=", 2)
		if len(parts) == 2 {
			metadata[parts[0]] = parts[1]
		} else {
			metadata[parts[0]] = ""
		}
	}

	hostname := entry.HostName
	return &Device{
		Instance:       entry.Instance,
		Hostname:       hostname,
		IP:             ip,
		Port:           port,
		Metadata:       metadata,
		LikelyReceiver: receiverPattern.MatchString(entry.Instance) || receiverPattern.MatchString(hostname),
		DiscoveredAt:   s.now(),
	}
}

// Receivers filters devices down to those that answered the OpenWebif
// probe.
func Receivers(devices []*Device) []*Device {
	out := make([]*Device, 0, len(devices))
	for _, d := range devices {
		if d.Confirmed {
			out = append(out, d)
		}
	}
	return out
}
