// E2remote is a remote control for Enigma2 receivers running OpenWebif.
//
// It sends key presses and power-state changes over the receiver's HTTP
// API, checks reachability, finds receivers on the local network, and shows
// a live screen preview. The same operations are available as one-shot
// commands, an interactive terminal remote, and an HTTP/WebSocket/MQTT
// bridge for home automation.
//
// Usage:
//
//	e2remote [command] [flags]
//
// Running without arguments launches the interactive remote.
// See 'e2remote --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/e2remote/e2remote/internal/logging"
	"github.com/e2remote/e2remote/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "e2remote",
	Short: "Enigma2 OpenWebif Remote Control",
	Long: `A remote control for Enigma2 set-top boxes running OpenWebif.

Sends remote-control keys and power-state changes, checks that a receiver
is reachable, discovers receivers via mDNS and polls screen grabs for a
live preview.

If no command is specified, the interactive remote will launch automatically.`,
	Version: version.Version,
	Example: `  # Interactive remote, connecting to the last receiver used
  e2remote

  # Check a receiver answers
  e2remote probe --device 192.168.1.20

  # Turn the volume up twice, then open the menu
  e2remote send volup volup menu --device 192.168.1.20

  # Serve the REST/WebSocket bridge with MQTT commands
  e2remote bridge --listen :8080 --mqtt-broker localhost`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Silent unless --log-level or E2REMOTE_LOG_LEVEL is set
		return logging.Initialize(logLevel)
	},
	RunE: runRemote,
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("e2remote %s\n", version.Full())
	},
}
