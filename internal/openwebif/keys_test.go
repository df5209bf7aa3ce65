package openwebif

import "testing"

func TestKeypadCodes(t *testing.T) {
	digits := []Command{Key0, Key1, Key2, Key3, Key4, Key5, Key6, Key7, Key8, Key9}
	for i, c := range digits {
		if int(c) != 100+i {
			t.Errorf("digit %d = %d, want %d", i, c, 100+i)
		}
	}
}

func TestKeysTableNamesUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range Keys {
		if k.Name == "" || k.Label == "" {
			t.Errorf("key %+v has empty name or label", k)
		}
		if seen[k.Name] {
			t.Errorf("duplicate key name %q", k.Name)
		}
		seen[k.Name] = true
	}
}

func TestLookupKey(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Command
		wantErr bool
	}{
		{"digit", "7", Key7, false},
		{"volume up", "volup", 115, false},
		{"volume down alias", "vol-", 114, false},
		{"channel up", "CHUP", 402, false},
		{"channel down", "chdown", 403, false},
		{"power", "power", 116, false},
		{"alias back", "back", KeyExit, false},
		{"padded", "  ok ", KeyOK, false},
		{"numeric code", "352", 352, false},
		{"unknown", "warp", 0, true},
		{"negative", "-1", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LookupKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupKey(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("LookupKey(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestLookupPowerState(t *testing.T) {
	tests := []struct {
		input   string
		want    PowerState
		wantErr bool
	}{
		{"standby", PowerStandby, false},
		{"toggle", PowerStandby, false},
		{"deep-standby", PowerDeepStandby, false},
		{"Deep Standby", PowerDeepStandby, false},
		{"reboot", PowerReboot, false},
		{"restart", PowerRestartGUI, false},
		{"wake_up", PowerWakeUp, false},
		{"go-standby", PowerGoStandby, false},
		{"0", PowerStandby, false},
		{"4", PowerWakeUp, false},
		{"hibernate", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := LookupPowerState(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LookupPowerState(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("LookupPowerState(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestPowerStateCodes(t *testing.T) {
	want := map[PowerState]int{
		PowerStandby:     0,
		PowerDeepStandby: 1,
		PowerReboot:      2,
		PowerRestartGUI:  3,
		PowerWakeUp:      4,
		PowerGoStandby:   5,
	}
	for state, code := range want {
		if int(state) != code {
			t.Errorf("%s = %d, want %d", state, int(state), code)
		}
	}
	if got := PowerState(9).String(); got != "PowerState(9)" {
		t.Errorf("String() = %q", got)
	}
}
