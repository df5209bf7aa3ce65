// Package openwebif is a client for the OpenWebif HTTP API served by
// Enigma2 set-top boxes.
//
// It covers the four endpoints a remote control needs and nothing more:
//
//   - /web/about: connectivity probe (Prober)
//   - /web/remotecontrol: key presses (Client.Send)
//   - /web/powerstate: standby, reboot and friends (Client.SendPowerState)
//   - /grab: screen grabs for a live preview (Poller)
//
// Addresses are bare hosts ("192.168.1.20", optionally with a port). The
// only validation is that the address is non-empty and forms a URL; a
// malformed host shows up as a request failure.
//
// # Usage Example
//
//	log := reqlog.New(200)
//	prober := openwebif.NewProber(log)
//	if err := prober.Probe(ctx, "192.168.1.20"); err != nil {
//	    fmt.Println(openwebif.ShortMessage(err))
//	    return
//	}
//
//	client := openwebif.NewClient(log)
//	_ = client.Send(ctx, "192.168.1.20", openwebif.KeyVolumeUp)
//
//	poller := openwebif.NewPoller(log)
//	session, _ := poller.Start("192.168.1.20", 5*time.Second, false)
//	<-session.FirstImage()
//	img := poller.State().Image
//
// # Errors
//
// Every failure is a *DeviceError whose Type tells the caller what went
// wrong (see ErrorType). Use the IsXxx helpers or TypeOf rather than
// comparing messages. ShortMessage gives a one-line reason suitable for a
// status bar; TroubleshootingHint gives longer advice.
//
// # Concurrency
//
// Client is safe for concurrent use. A Prober runs one probe at a time: a
// new Probe cancels the previous one. A Poller runs one polling session at
// a time, fetches one grab at a time within it, and drops results from
// sessions that have been stopped or replaced.
package openwebif
