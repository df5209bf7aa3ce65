package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}

	if !strings.Contains(configDir, "e2remote") {
		t.Errorf("GetConfigDir() = %v, should contain 'e2remote'", configDir)
	}

	if runtime.GOOS == "linux" && os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
		t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
	}
}

func TestGetConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME applies to Linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if configDir != "/tmp/xdg/e2remote" {
		t.Errorf("GetConfigDir() = %s, want /tmp/xdg/e2remote", configDir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}

	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != CurrentVersion {
		t.Errorf("Version = %v, want %d", reg.Version, CurrentVersion)
	}
	if reg.Devices == nil {
		t.Error("Devices should not be nil")
	}
	if reg.Preferences == nil {
		t.Fatal("Preferences should not be nil")
	}
	if reg.Preferences.HighResPreview {
		t.Error("HighResPreview should default to false")
	}
	if reg.Preferences.PreviewInterval() != 5*time.Second {
		t.Errorf("PreviewInterval() = %v, want 5s", reg.Preferences.PreviewInterval())
	}
	if reg.Preferences.ProbeTimeout() != 15*time.Second {
		t.Errorf("ProbeTimeout() = %v, want 15s", reg.Preferences.ProbeTimeout())
	}
	if reg.Preferences.RequestLogCapacity() != 200 {
		t.Errorf("RequestLogCapacity() = %d, want 200", reg.Preferences.RequestLogCapacity())
	}
}

func TestPreferencesFallbacks(t *testing.T) {
	var nilPrefs *Preferences
	if nilPrefs.PreviewInterval() != 5*time.Second {
		t.Error("nil preferences should use the default interval")
	}

	p := &Preferences{PreviewIntervalSeconds: -3, ProbeTimeoutSeconds: 2, LogCapacity: 0}
	if p.PreviewInterval() != 5*time.Second {
		t.Errorf("PreviewInterval() = %v, want default", p.PreviewInterval())
	}
	if p.ProbeTimeout() != 2*time.Second {
		t.Errorf("ProbeTimeout() = %v, want 2s", p.ProbeTimeout())
	}
	if p.RequestLogCapacity() != DefaultLogCapacity {
		t.Errorf("RequestLogCapacity() = %d, want default", p.RequestLogCapacity())
	}
}

func TestRememberAddress(t *testing.T) {
	reg := NewRegistry()

	steps := []struct {
		address string
		changed bool
	}{
		{"192.168.1.20", true},
		{"192.168.1.30", true},
		{"192.168.1.20", false},
		{"  192.168.1.30 ", false},
		{"", false},
		{"192.168.1.10", true},
	}
	for _, s := range steps {
		if got := reg.RememberAddress(s.address); got != s.changed {
			t.Errorf("RememberAddress(%q) = %v, want %v", s.address, got, s.changed)
		}
	}

	want := []string{"192.168.1.20", "192.168.1.30", "192.168.1.10"}
	if !reflect.DeepEqual(reg.Addresses, want) {
		t.Errorf("Addresses = %v, want %v", reg.Addresses, want)
	}
}

func TestForgetAddress(t *testing.T) {
	reg := NewRegistry()
	reg.MarkConnected("a", time.Now())
	reg.MarkConnected("b", time.Now())

	if !reg.ForgetAddress("a") {
		t.Fatal("ForgetAddress(a) = false")
	}
	if reg.ForgetAddress("a") {
		t.Error("second ForgetAddress(a) should report false")
	}
	if reg.GetDevice("a") != nil {
		t.Error("device metadata should be removed")
	}
	if !reflect.DeepEqual(reg.Addresses, []string{"b"}) {
		t.Errorf("Addresses = %v, want [b]", reg.Addresses)
	}
}

func TestMostRecentAddress(t *testing.T) {
	reg := NewRegistry()
	if reg.MostRecentAddress() != "" {
		t.Error("empty registry should have no recent address")
	}

	reg.RememberAddress("a")
	reg.RememberAddress("b")
	if got := reg.MostRecentAddress(); got != "b" {
		t.Errorf("MostRecentAddress() = %q, want newest entry b", got)
	}

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	reg.MarkConnected("b", base)
	reg.MarkConnected("a", base.Add(time.Hour))
	if got := reg.MostRecentAddress(); got != "a" {
		t.Errorf("MostRecentAddress() = %q, want a", got)
	}
}

func TestRegistryEnsureDevice(t *testing.T) {
	reg := NewRegistry()

	device1 := reg.EnsureDevice("192.168.1.20")
	if device1 == nil {
		t.Fatal("EnsureDevice() returned nil")
	}
	if device2 := reg.EnsureDevice("192.168.1.20"); device1 != device2 {
		t.Error("EnsureDevice() should return same instance for same address")
	}
	if device3 := reg.EnsureDevice("192.168.1.30"); device1 == device3 {
		t.Error("EnsureDevice() should create new instance for different address")
	}
}

func TestDisplayName(t *testing.T) {
	reg := NewRegistry()
	reg.SetDeviceNickname("192.168.1.20", "Living Room")

	if got := reg.DisplayName("192.168.1.20"); got != "Living Room" {
		t.Errorf("DisplayName() = %q, want Living Room", got)
	}
	if got := reg.DisplayName("192.168.1.99"); got != "192.168.1.99" {
		t.Errorf("DisplayName() = %q, want the address", got)
	}
}

func TestStoreLoadMissingFile(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope", "config.yaml"))

	reg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reg.Version != CurrentVersion || len(reg.Addresses) != 0 {
		t.Errorf("Load() = %+v, want a fresh registry", reg)
	}
}

func TestStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	store := NewStore(path)

	reg := NewRegistry()
	reg.MarkConnected("192.168.1.20", time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	reg.RememberAddress("192.168.1.30")
	reg.SetDeviceNickname("192.168.1.20", "Bedroom")
	reg.Preferences.HighResPreview = true
	reg.Preferences.PreviewIntervalSeconds = 2

	if err := store.Save(reg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Error("temporary file should not remain after save")
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(loaded.Addresses, reg.Addresses) {
		t.Errorf("Addresses = %v, want %v", loaded.Addresses, reg.Addresses)
	}
	if loaded.DisplayName("192.168.1.20") != "Bedroom" {
		t.Error("nickname lost")
	}
	if !loaded.Preferences.HighResPreview || loaded.Preferences.PreviewIntervalSeconds != 2 {
		t.Errorf("Preferences = %+v", loaded.Preferences)
	}
}

func TestStoreLoadNormalizes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `version: 1
addresses:
  - 10.0.0.1
  - 10.0.0.2
  - 10.0.0.1
  - ""
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	reg, err := NewStore(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(reg.Addresses, []string{"10.0.0.1", "10.0.0.2"}) {
		t.Errorf("Addresses = %v, want deduplicated list", reg.Addresses)
	}
	if reg.Preferences == nil || reg.Devices == nil {
		t.Error("missing sections should be filled in")
	}
}

func TestStoreLoadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bad version", "version: 7\n", "unsupported config version"},
		{"bad yaml", "version: [\n", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := NewStore(path).Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Load() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))

	var wg sync.WaitGroup
	for _, addr := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(addr string) {
			defer wg.Done()
			if err := store.Update(func(r *Registry) error {
				r.RememberAddress(addr)
				return nil
			}); err != nil {
				t.Errorf("Update() error = %v", err)
			}
		}(addr)
	}
	wg.Wait()

	reg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(reg.Addresses) != 4 {
		t.Errorf("Addresses = %v, want all four kept", reg.Addresses)
	}

	boom := errors.New("boom")
	err = store.Update(func(r *Registry) error {
		r.RememberAddress("e")
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() error = %v, want boom", err)
	}
	reg, _ = store.Load()
	if reg.HasAddress("e") {
		t.Error("failed update should not be saved")
	}
}

func TestStoreRecordConnection(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	at := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		if err := store.RecordConnection("192.168.1.20", at); err != nil {
			t.Fatalf("RecordConnection() error = %v", err)
		}
	}

	reg, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !reflect.DeepEqual(reg.Addresses, []string{"192.168.1.20"}) {
		t.Errorf("Addresses = %v, want one entry", reg.Addresses)
	}
	if !reg.GetDevice("192.168.1.20").LastConnected.Equal(at) {
		t.Errorf("LastConnected = %v, want %v", reg.GetDevice("192.168.1.20").LastConnected, at)
	}
}
