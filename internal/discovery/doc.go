// Package discovery finds Enigma2 receivers on the local network.
//
// OpenWebif does not advertise a dedicated mDNS service; receivers show up
// as plain "_http._tcp" services next to printers and NAS boxes. The
// scanner therefore collects every HTTP service, flags names that look like
// a receiver brand or image, and (when given a ConfirmFunc) probes each
// candidate's /web/about so only real OpenWebif hosts are marked Confirmed.
//
// # Usage Example
//
//	confirm := func(ctx context.Context, address string) error {
//	    return openwebif.NewProber(nil).Probe(ctx, address)
//	}
//	devices, err := discovery.NewScanner(confirm).Scan(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, d := range discovery.Receivers(devices) {
//	    fmt.Println(d.Address())
//	}
//
// # Network Requirements
//
// - Requires multicast support on the network interface
// - Receivers must be on the same local network segment
// - Firewall must allow mDNS (UDP port 5353)
package discovery
