package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// remoteButton binds keyboard keys to a receiver button, named as in
// openwebif.Keys.
type remoteButton struct {
	Binding key.Binding
	Name    string
}

func button(name, help string, keys ...string) remoteButton {
	return remoteButton{
		Binding: key.NewBinding(key.WithKeys(keys...), key.WithHelp(keys[0], help)),
		Name:    name,
	}
}

// remoteKeyMap defines key bindings for the remote screen
type remoteKeyMap struct {
	Navigation []remoteButton
	Volume     []remoteButton
	Function   []remoteButton
	Digits     key.Binding // help entry only; digits are matched directly

	Power      key.Binding
	Preview    key.Binding
	HighRes    key.Binding
	Filter     key.Binding
	ClearLog   key.Binding
	Reconnect  key.Binding
	Disconnect key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newRemoteKeyMap() remoteKeyMap {
	return remoteKeyMap{
		Navigation: []remoteButton{
			button("up", "up", "up"),
			button("down", "down", "down"),
			button("left", "left", "left"),
			button("right", "right", "right"),
			button("ok", "ok", "enter"),
			button("exit", "exit", "esc", "backspace"),
			button("menu", "menu", "m"),
			button("info", "info", "i"),
			button("epg", "epg", "e"),
		},
		Volume: []remoteButton{
			button("volup", "volume up", "+", "="),
			button("voldown", "volume down", "-"),
			button("mute", "mute", "x"),
			button("chup", "channel up", "]", "pgup"),
			button("chdown", "channel down", "[", "pgdown"),
		},
		Function: []remoteButton{
			button("red", "red", "f1"),
			button("green", "green", "f2"),
			button("yellow", "yellow", "f3"),
			button("blue", "blue", "f4"),
			button("text", "teletext", "t"),
			button("audio", "audio", "a"),
			button("subtitle", "subtitle", "s"),
			button("rewind", "rewind", ","),
			button("forward", "fast forward", "."),
			button("play", "play", " "),
		},
		Digits: key.NewBinding(
			key.WithKeys("0", "1", "2", "3", "4", "5", "6", "7", "8", "9"),
			key.WithHelp("0-9", "digits"),
		),
		Power: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "standby"),
		),
		Preview: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", "preview on/off"),
		),
		HighRes: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", "SD/HD"),
		),
		Filter: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "hide grabs in log"),
		),
		ClearLog: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "clear log"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("R"),
			key.WithHelp("R", "reconnect"),
		),
		Disconnect: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "disconnect"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// buttonFor returns the receiver button bound to keyStr, if any.
func (k remoteKeyMap) buttonFor(keyStr string) (string, bool) {
	if len(keyStr) == 1 && keyStr[0] >= '0' && keyStr[0] <= '9' {
		return keyStr, true
	}
	for _, group := range [][]remoteButton{k.Navigation, k.Volume, k.Function} {
		for _, b := range group {
			for _, bk := range b.Binding.Keys() {
				if bk == keyStr {
					return b.Name, true
				}
			}
		}
	}
	return "", false
}

func bindings(buttons []remoteButton) []key.Binding {
	out := make([]key.Binding, 0, len(buttons))
	for _, b := range buttons {
		out = append(out, b.Binding)
	}
	return out
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k remoteKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Digits, k.Preview, k.Power, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k remoteKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		append([]key.Binding{k.Digits}, bindings(k.Navigation)...),
		bindings(k.Volume),
		bindings(k.Function),
		{k.Power, k.Preview, k.HighRes, k.Filter, k.ClearLog, k.Reconnect, k.Disconnect, k.Help, k.Quit},
	}
}

// connectKeyMap defines key bindings for the connect screen
type connectKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Enter  key.Binding
	Scan   key.Binding
	Manual key.Binding
	Quit   key.Binding
}

func newConnectKeyMap() connectKeyMap {
	return connectKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "move down"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "connect"),
		),
		Scan: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "scan network"),
		),
		Manual: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "enter IP"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k connectKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Enter, k.Scan, k.Manual, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k connectKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
