package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/e2remote/e2remote/internal/bridge"
	"github.com/e2remote/e2remote/internal/config"
	"github.com/e2remote/e2remote/internal/discovery"
	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/metrics"
	"github.com/e2remote/e2remote/internal/mqtt"
	"github.com/e2remote/e2remote/internal/openwebif"
	"github.com/e2remote/e2remote/internal/reqlog"
	"github.com/e2remote/e2remote/internal/session"
	"github.com/e2remote/e2remote/internal/tui"
	"github.com/e2remote/e2remote/internal/ui"
)

// Command flags
var (
	deviceAddr   string
	logLevel     string
	configPath   string
	probeTimeout time.Duration
	showLog      bool

	sendDelay  time.Duration
	assumeYes  bool
	scanFor    time.Duration
	scanAll    bool
	noConfirm  bool
	listenAddr string
	noMetrics  bool
	mqttConfig mqtt.Config
)

func init() {
	// Common flags for all commands (persistent on root)
	rootCmd.PersistentFlags().StringVar(&deviceAddr, "device", "", "Receiver IP address or host[:port] (defaults to the last one used)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent if unset")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (defaults to the platform config directory)")
	rootCmd.PersistentFlags().DurationVar(&probeTimeout, "timeout", 0, "Probe timeout (e.g. 5s); defaults to the configured value")
	rootCmd.PersistentFlags().BoolVarP(&showLog, "verbose", "v", false, "Print the request log after each command")

	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(powerCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(remoteCmd)
	rootCmd.AddCommand(bridgeCmd)
}

// app holds the components shared by every command.
type app struct {
	store    *config.Store
	registry *config.Registry
	prefs    *config.Preferences

	log     *reqlog.Log
	prober  *openwebif.Prober
	client  *openwebif.Client
	poller  *openwebif.Poller
	session *session.Session
	printer *ui.Printer
}

// newApp loads the config file and wires the receiver components.
func newApp() (*app, error) {
	var store *config.Store
	if configPath != "" {
		store = config.NewStore(configPath)
	} else {
		s, err := config.DefaultStore()
		if err != nil {
			return nil, err
		}
		store = s
	}

	registry, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", store.Path(), err)
	}
	prefs := registry.Preferences
	if prefs == nil {
		prefs = config.DefaultPreferences()
	}

	timeout := probeTimeout
	if timeout <= 0 {
		timeout = prefs.ProbeTimeout()
	}

	log := reqlog.New(prefs.RequestLogCapacity())
	prober := openwebif.NewProber(log)
	prober.Timeout = timeout
	client := openwebif.NewClient(log)
	client.SetTimeout(timeout)

	logging.Debug("Loaded configuration",
		zap.String("path", store.Path()),
		zap.Int("addresses", len(registry.Addresses)),
		zap.Duration("timeout", timeout),
	)

	return &app{
		store:    store,
		registry: registry,
		prefs:    prefs,
		log:      log,
		prober:   prober,
		client:   client,
		poller:   openwebif.NewPoller(log),
		session:  session.New(prober, client, store),
		printer:  ui.NewPrinter(os.Stdout),
	}, nil
}

// address returns --device, falling back to the most recently used
// receiver.
func (a *app) address() (string, error) {
	if deviceAddr != "" {
		return deviceAddr, nil
	}
	if recent := a.registry.MostRecentAddress(); recent != "" {
		return recent, nil
	}
	return "", fmt.Errorf("no receiver address. Use --device or run 'e2remote scan'")
}

// connect probes the receiver and prints a failure box when it does not
// answer.
func (a *app) connect(ctx context.Context) (string, error) {
	address, err := a.address()
	if err != nil {
		return "", err
	}
	if err := a.session.Connect(ctx, address); err != nil {
		a.printFailure("Receiver not reachable", err)
		return address, err
	}
	return address, nil
}

func (a *app) printFailure(title string, err error) {
	a.printer.PrintError(title, err, ui.TipsFromHint(openwebif.TroubleshootingHint(err)))
	a.printLog()
}

// printLog prints the request log when --verbose is set.
func (a *app) printLog() {
	if !showLog {
		return
	}
	a.printer.Println(ui.TroubleshootingTitleStyle.Render("Requests"))
	a.printer.PrintLogEntries(a.log.Entries(reqlog.Filter{}))
	a.printer.Newline()
}

// signalContext is cancelled on Ctrl-C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// probeCmd checks that a receiver answers
var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that a receiver is reachable",
	Long: `Request /web/about once and report whether the receiver answered.

A successful probe remembers the address, so later commands can omit --device.`,
	Example: `  # Probe a receiver
  e2remote probe --device 192.168.1.20

  # Probe with a short timeout and show the request
  e2remote probe --device 192.168.1.20 --timeout 3s -v`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func runProbe(cmd *cobra.Command, args []string) error {
	// Suppress usage on execution errors (we're past argument parsing)
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	address, err := a.address()
	if err != nil {
		return err
	}

	a.printer.PrintHeader("Probing receiver", "e2remote probe",
		ui.Param{Key: "Address", Value: address},
		ui.Param{Key: "Timeout", Value: a.prober.Timeout.String()},
	)

	ctx, cancel := signalContext()
	defer cancel()

	start := time.Now()
	if _, err := a.connect(ctx); err != nil {
		return err
	}

	a.printer.PrintSuccess("Receiver reachable",
		ui.Param{Key: "Address", Value: address},
		ui.Param{Key: "Response time", Value: time.Since(start).Round(time.Millisecond).String()},
		ui.Param{Key: "Config", Value: a.store.Path()},
	)
	a.printLog()
	return nil
}

// sendCmd sends one or more remote-control keys
var sendCmd = &cobra.Command{
	Use:   "send <key>...",
	Short: "Send remote-control key presses",
	Long: `Probe the receiver, then send each key in order.

Keys are given by name (see 'e2remote keys') or by numeric code. Sending
stops at the first key the receiver rejects.`,
	Example: `  # Channel 1-0-1
  e2remote send 1 0 1 --device 192.168.1.20

  # Open the EPG after a short pause
  e2remote send exit epg --delay 500ms`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

func init() {
	sendCmd.Flags().DurationVar(&sendDelay, "delay", 0, "Pause between key presses")
}

func runSend(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	// Reject unknown names before anything goes on the wire
	for _, name := range args {
		if _, err := openwebif.LookupKey(name); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	address, err := a.connect(ctx)
	if err != nil {
		return err
	}

	for i, name := range args {
		if i > 0 && sendDelay > 0 {
			select {
			case <-time.After(sendDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := a.session.SendKey(ctx, name); err != nil {
			a.printFailure(fmt.Sprintf("Key %q failed", name), err)
			return err
		}
	}

	a.printer.PrintSuccess("Keys sent",
		ui.Param{Key: "Address", Value: address},
		ui.Param{Key: "Keys", Value: strings.Join(args, " ")},
	)
	a.printLog()
	return nil
}

// powerCmd changes the receiver power state
var powerCmd = &cobra.Command{
	Use:   "power <state>",
	Short: "Change the receiver power state",
	Long: `Send a power-state change to the receiver.

States: standby (toggle), deepstandby, reboot, restartgui, wakeup,
gostandby, or a numeric code. Deep standby, reboot and GUI restart ask for
confirmation unless --yes is given.`,
	Example: `  # Toggle standby
  e2remote power standby

  # Reboot without asking
  e2remote power reboot --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runPower,
}

func init() {
	powerCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Skip the confirmation prompt")
}

// disruptive reports whether state takes the receiver out of service.
func disruptive(state openwebif.PowerState) bool {
	switch state {
	case openwebif.PowerDeepStandby, openwebif.PowerReboot, openwebif.PowerRestartGUI:
		return true
	}
	return false
}

func runPower(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	state, err := openwebif.LookupPowerState(args[0])
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	address, err := a.address()
	if err != nil {
		return err
	}

	if disruptive(state) && !assumeYes {
		ok := a.printer.Confirm(os.Stdin, "Power state change", []string{
			fmt.Sprintf("The receiver at %s will %s.", address, state),
			"Recordings in progress will be interrupted.",
			"A receiver in deep standby does not answer the network until woken.",
		})
		if !ok {
			return nil
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	if _, err := a.connect(ctx); err != nil {
		return err
	}
	if err := a.session.SendPowerState(ctx, state); err != nil {
		a.printFailure("Power state change failed", err)
		return err
	}

	a.printer.PrintSuccess("Power state sent",
		ui.Param{Key: "Address", Value: address},
		ui.Param{Key: "State", Value: fmt.Sprintf("%s (%d)", state, int(state))},
	)
	a.printLog()
	return nil
}

// keysCmd lists the known key names
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List remote-control key names",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		rows := make([][]string, 0, len(openwebif.Keys))
		for _, k := range openwebif.Keys {
			rows = append(rows, []string{k.Name, k.Label, strconv.Itoa(int(k.Command))})
		}
		ui.NewPrinter(os.Stdout).PrintTable([]string{"Name", "Button", "Code"}, rows)
	},
}

// devicesCmd lists and edits remembered receivers
var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List remembered receivers",
	Long: `List every receiver a probe has succeeded against, most recent first.

Use the subcommands to give a receiver a nickname or forget it.`,
	Args: cobra.NoArgs,
	RunE: runDevices,
}

var devicesRenameCmd = &cobra.Command{
	Use:   "rename <address> <nickname>",
	Short: "Set a receiver's nickname",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.store.Update(func(r *config.Registry) error {
			if !r.HasAddress(args[0]) {
				return fmt.Errorf("%s is not a remembered receiver", args[0])
			}
			r.SetDeviceNickname(args[0], args[1])
			return nil
		})
	},
}

var devicesForgetCmd = &cobra.Command{
	Use:   "forget <address>",
	Short: "Forget a receiver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		a, err := newApp()
		if err != nil {
			return err
		}
		return a.store.Update(func(r *config.Registry) error {
			if !r.ForgetAddress(args[0]) {
				return fmt.Errorf("%s is not a remembered receiver", args[0])
			}
			return nil
		})
	},
}

func init() {
	devicesCmd.AddCommand(devicesRenameCmd)
	devicesCmd.AddCommand(devicesForgetCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	if len(a.registry.Addresses) == 0 {
		a.printer.PrintWarning("No receivers remembered yet",
			ui.Param{Key: "Next", Value: "e2remote probe --device <ip>"},
			ui.Param{Key: "Or", Value: "e2remote scan"},
		)
		return nil
	}

	recent := a.registry.MostRecentAddress()
	rows := make([][]string, 0, len(a.registry.Addresses))
	for i := len(a.registry.Addresses) - 1; i >= 0; i-- {
		address := a.registry.Addresses[i]
		last := "-"
		if d := a.registry.GetDevice(address); d != nil && !d.LastConnected.IsZero() {
			last = d.LastConnected.Local().Format("2006-01-02 15:04")
		}
		name := a.registry.DisplayName(address)
		if address == recent {
			name += " " + ui.SuccessMarker
		}
		rows = append(rows, []string{name, address, last})
	}
	a.printer.PrintTable([]string{"Name", "Address", "Last connected"}, rows)
	return nil
}

// scanCmd discovers receivers on the network
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for receivers on the network",
	Long: `Browse for HTTP services using mDNS/DNS-SD and check which of them
answer /web/about.

Only confirmed receivers and names that look like a receiver are listed
unless --all is given.`,
	Example: `  # Scan for 5 seconds (default)
  e2remote scan

  # Longer scan, listing every HTTP service
  e2remote scan --duration 15s --all`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVar(&scanFor, "duration", discovery.DefaultScanTimeout, "How long to listen for mDNS answers")
	scanCmd.Flags().BoolVar(&scanAll, "all", false, "List every HTTP service, not just likely receivers")
	scanCmd.Flags().BoolVar(&noConfirm, "no-confirm", false, "Skip the /web/about check on each candidate")
}

// newScanner returns a scanner that confirms candidates with their own
// prober, so concurrent checks do not cancel each other.
func (a *app) newScanner() *discovery.Scanner {
	confirm := func(ctx context.Context, address string) error {
		return openwebif.NewProber(a.log).Probe(ctx, address)
	}
	s := discovery.NewScanner(confirm)
	if noConfirm {
		s.Confirm = nil
	}
	if scanFor > 0 {
		s.Timeout = scanFor
	}
	return s
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}
	scanner := a.newScanner()

	a.printer.PrintHeader("Scanning for receivers", "e2remote scan",
		ui.Param{Key: "Service", Value: discovery.ServiceType},
		ui.Param{Key: "Duration", Value: scanner.Timeout.String()},
	)

	ctx, cancel := signalContext()
	defer cancel()

	devices, err := scanner.Scan(ctx)
	if err != nil {
		a.printer.PrintError("Scan failed", err, []string{
			"Check that multicast traffic is allowed on this network",
			"Use --device to enter the receiver's IP address instead",
		})
		return err
	}
	if !scanAll {
		devices = discovery.Receivers(devices)
	}

	if len(devices) == 0 {
		a.printer.PrintWarning("No receivers found",
			ui.Param{Key: "Try", Value: "--duration 15s or --all"},
			ui.Param{Key: "Or", Value: "e2remote probe --device <ip>"},
		)
		return nil
	}

	rows := make([][]string, 0, len(devices))
	for _, d := range devices {
		status := "unconfirmed"
		switch {
		case d.Confirmed:
			status = "OpenWebif"
		case d.ConfirmError != nil:
			status = openwebif.ShortMessage(d.ConfirmError)
		}
		rows = append(rows, []string{d.Name(), d.Address(), status})
	}
	a.printer.PrintTable([]string{"Name", "Address", "Status"}, rows)
	a.printer.Println(ui.TroubleshootingItemStyle.Render("Use 'e2remote probe --device <address>' to remember a receiver"))
	return nil
}

// remoteCmd launches the interactive remote
var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Launch the interactive remote",
	Long: `Launch a terminal remote control.

Pick a remembered receiver, scan the network or type an address. Once
connected, keys map to remote buttons, v toggles the screen preview and the
lower pane shows every request sent to the receiver.`,
	Example: `  # Choose a receiver interactively
  e2remote remote

  # Connect straight away
  e2remote remote --device 192.168.1.20`,
	Args: cobra.NoArgs,
	RunE: runRemote,
}

func runRemote(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}

	err = tui.Run(tui.Deps{
		Session:     a.session,
		Poller:      a.poller,
		Log:         a.log,
		Registry:    a.registry,
		Preferences: a.prefs,
		Scanner:     a.newScanner(),
		Address:     deviceAddr,
	})
	if err != nil {
		return fmt.Errorf("remote error: %w", err)
	}
	return nil
}

// bridgeCmd serves the HTTP, WebSocket and MQTT surfaces
var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "Serve the REST/WebSocket bridge",
	Long: `Serve a REST API and WebSocket event stream that drive the receiver,
for home automation and browser front ends.

With --mqtt-broker, commands are also accepted on <prefix>/command/key and
<prefix>/command/power, and the connection state is published retained on
<prefix>/status. Prometheus metrics are served on /metrics.`,
	Example: `  # Serve on port 8080 and connect to the last receiver used
  e2remote bridge

  # Bridge with MQTT
  e2remote bridge --listen :8080 --device 192.168.1.20 \
    --mqtt-broker mqtt.local --mqtt-user e2 --mqtt-password secret`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

func init() {
	bridgeCmd.Flags().StringVar(&listenAddr, "listen", ":8080", "HTTP listen address")
	bridgeCmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "Do not serve /metrics")
	bridgeCmd.Flags().StringVar(&mqttConfig.Broker, "mqtt-broker", "", "MQTT broker host (MQTT disabled if not specified)")
	bridgeCmd.Flags().IntVar(&mqttConfig.Port, "mqtt-port", 1883, "MQTT broker port")
	bridgeCmd.Flags().StringVar(&mqttConfig.Username, "mqtt-user", "", "MQTT username")
	bridgeCmd.Flags().StringVar(&mqttConfig.Password, "mqtt-password", "", "MQTT password")
	bridgeCmd.Flags().StringVar(&mqttConfig.ClientID, "mqtt-client-id", "", "MQTT client ID (defaults to e2remote-<hostname>)")
	bridgeCmd.Flags().StringVar(&mqttConfig.Prefix, "mqtt-prefix", mqtt.DefaultPrefix, "MQTT topic prefix")
}

func runBridge(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	a, err := newApp()
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var metricsHandler http.Handler
	if !noMetrics {
		collector := metrics.NewCollector()
		reg := prometheus.NewRegistry()
		reg.MustRegister(collector)
		go collector.Run(ctx, metrics.Sources{Log: a.log, Session: a.session, Poller: a.poller})
		metricsHandler = metrics.Handler(reg)
	}

	if mqttConfig.Broker != "" {
		if mqttConfig.ClientID == "" {
			host, _ := os.Hostname()
			mqttConfig.ClientID = "e2remote-" + host
		}
		client := mqtt.NewClient(mqttConfig, a.session)
		if err := client.Connect(); err != nil {
			return err
		}
		defer client.Disconnect()

		states, unsubscribe := a.session.Subscribe(16)
		defer unsubscribe()
		go func() {
			if err := client.Run(ctx, states); err != nil {
				logging.Error("MQTT bridge stopped", zap.Error(err))
			}
		}()
	}

	if address, err := a.address(); err == nil {
		go func() {
			if err := a.session.Connect(ctx, address); err != nil {
				logging.Warn("Initial probe failed", zap.String("address", address), zap.Error(err))
			}
		}()
	}

	api := bridge.New(bridge.Options{
		Session:      a.session,
		Poller:       a.poller,
		Log:          a.log,
		Store:        a.store,
		Metrics:      metricsHandler,
		Preferences:  a.prefs,
		ProbeTimeout: a.prober.Timeout,
	})
	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(api.Close)

	fmt.Printf("Bridge listening on %s (Ctrl-C to stop)\n", listenAddr)
	err = bridge.RunServer(ctx, srv)
	a.poller.Stop()
	return err
}
