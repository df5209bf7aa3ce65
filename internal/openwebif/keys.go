package openwebif

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is an OpenWebif remote-control key code, sent as
// /web/remotecontrol?command={code}. Codes are defined by the receiver
// firmware and are never computed.
type Command int

// Keypad. Digit n is 100+n.
const (
	Key0 Command = 100
	Key1 Command = 101
	Key2 Command = 102
	Key3 Command = 103
	Key4 Command = 104
	Key5 Command = 105
	Key6 Command = 106
	Key7 Command = 107
	Key8 Command = 108
	Key9 Command = 109
)

// Volume, channel and power.
const (
	KeyMute        Command = 113
	KeyVolumeDown  Command = 114
	KeyVolumeUp    Command = 115
	KeyPowerDown   Command = 116
	KeyChannelUp   Command = 402
	KeyChannelDown Command = 403
)

// Navigation. The arrow codes are the kernel input codes and share values
// with the keypad range; always resolve keys by name.
const (
	KeyUp    Command = 103
	KeyLeft  Command = 105
	KeyRight Command = 106
	KeyDown  Command = 108
	KeyOK    Command = 352
	KeyMenu  Command = 139
	KeyExit  Command = 174
	KeyHelp  Command = 138
	KeyInfo  Command = 358
	KeyEPG   Command = 365
	KeyTV    Command = 377
	KeyRadio Command = 385
)

// Colour and function keys.
const (
	KeyRed      Command = 398
	KeyGreen    Command = 399
	KeyYellow   Command = 400
	KeyBlue     Command = 401
	KeyText     Command = 388
	KeySubtitle Command = 370
	KeyAudio    Command = 392
	KeyAV       Command = 390
)

// Media transport.
const (
	KeyRewind      Command = 168
	KeyFastForward Command = 208
	KeyPlay        Command = 207
	KeyPause       Command = 119
	KeyStop        Command = 128
	KeyRecord      Command = 167
)

// PowerState is an OpenWebif power-state code, sent as
// /web/powerstate?newstate={state}.
type PowerState int

const (
	// PowerStandby toggles standby.
	PowerStandby     PowerState = 0
	PowerDeepStandby PowerState = 1
	PowerReboot      PowerState = 2
	PowerRestartGUI  PowerState = 3
	PowerWakeUp      PowerState = 4
	PowerGoStandby   PowerState = 5
)

// Key names a remote-control button.
type Key struct {
	Name    string
	Label   string
	Command Command
}

// Keys is the button table in display order.
var Keys = []Key{
	{"0", "0", Key0},
	{"1", "1", Key1},
	{"2", "2", Key2},
	{"3", "3", Key3},
	{"4", "4", Key4},
	{"5", "5", Key5},
	{"6", "6", Key6},
	{"7", "7", Key7},
	{"8", "8", Key8},
	{"9", "9", Key9},
	{"volup", "Volume Up", KeyVolumeUp},
	{"voldown", "Volume Down", KeyVolumeDown},
	{"mute", "Mute", KeyMute},
	{"chup", "Channel Up", KeyChannelUp},
	{"chdown", "Channel Down", KeyChannelDown},
	{"up", "Up", KeyUp},
	{"down", "Down", KeyDown},
	{"left", "Left", KeyLeft},
	{"right", "Right", KeyRight},
	{"ok", "OK", KeyOK},
	{"menu", "Menu", KeyMenu},
	{"exit", "Exit", KeyExit},
	{"info", "Info", KeyInfo},
	{"epg", "EPG", KeyEPG},
	{"help", "Help", KeyHelp},
	{"tv", "TV", KeyTV},
	{"radio", "Radio", KeyRadio},
	{"red", "Red", KeyRed},
	{"green", "Green", KeyGreen},
	{"yellow", "Yellow", KeyYellow},
	{"blue", "Blue", KeyBlue},
	{"text", "Teletext", KeyText},
	{"subtitle", "Subtitle", KeySubtitle},
	{"audio", "Audio", KeyAudio},
	{"av", "AV", KeyAV},
	{"rewind", "Rewind", KeyRewind},
	{"forward", "Fast Forward", KeyFastForward},
	{"play", "Play", KeyPlay},
	{"pause", "Pause", KeyPause},
	{"stop", "Stop", KeyStop},
	{"record", "Record", KeyRecord},
	{"power", "Power Down", KeyPowerDown},
}

var keyAliases = map[string]string{
	"vol+":     "volup",
	"vol-":     "voldown",
	"ch+":      "chup",
	"ch-":      "chdown",
	"back":     "exit",
	"enter":    "ok",
	"teletext": "text",
	"ff":       "forward",
	"rew":      "rewind",
}

// LookupKey resolves a button name (case-insensitive, with a few aliases)
// or a bare integer code to a Command.
func LookupKey(name string) (Command, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := keyAliases[n]; ok {
		n = alias
	}
	for _, k := range Keys {
		if k.Name == n {
			return k.Command, nil
		}
	}
	if code, err := strconv.Atoi(n); err == nil && code >= 0 {
		return Command(code), nil
	}
	return 0, fmt.Errorf("unknown key %q", name)
}

var powerStateNames = map[string]PowerState{
	"standby":     PowerStandby,
	"toggle":      PowerStandby,
	"deepstandby": PowerDeepStandby,
	"reboot":      PowerReboot,
	"restart":     PowerRestartGUI,
	"wakeup":      PowerWakeUp,
	"gostandby":   PowerGoStandby,
}

// LookupPowerState resolves a power-state name or integer code.
func LookupPowerState(name string) (PowerState, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.NewReplacer("-", "", "_", "", " ", "").Replace(n)
	if s, ok := powerStateNames[n]; ok {
		return s, nil
	}
	if code, err := strconv.Atoi(n); err == nil && code >= 0 {
		return PowerState(code), nil
	}
	return 0, fmt.Errorf("unknown power state %q", name)
}

// String returns the OpenWebif name of the power state.
func (p PowerState) String() string {
	switch p {
	case PowerStandby:
		return "standby"
	case PowerDeepStandby:
		return "deep-standby"
	case PowerReboot:
		return "reboot"
	case PowerRestartGUI:
		return "restart"
	case PowerWakeUp:
		return "wakeup"
	case PowerGoStandby:
		return "go-standby"
	default:
		return fmt.Sprintf("PowerState(%d)", int(p))
	}
}
