// Package config provides user configuration management for e2remote.
//
// This package manages a YAML-based configuration file that stores the
// receivers a probe has succeeded against (in the order they were first
// reached, without duplicates), per-receiver nicknames, and application
// preferences such as the preview interval and resolution.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/e2remote/config.yaml or $HOME/.config/e2remote/config.yaml
//   - macOS: $HOME/.config/e2remote/config.yaml
//   - Windows: %LOCALAPPDATA%\e2remote\config.yaml
//
// The --config flag overrides the location.
//
// # Usage Example
//
//	store, err := config.DefaultStore()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Record a successful connection
//	err = store.Update(func(r *config.Registry) error {
//	    r.MarkConnected("192.168.1.20", time.Now())
//	    return nil
//	})
//
// # Thread Safety
//
// A Store serializes its own reads and writes; Update holds the lock across
// load, modify and save. Files are written to a temporary path and renamed
// into place. A Registry value itself is not synchronized.
package config
