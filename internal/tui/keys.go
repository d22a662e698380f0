package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Flash       key.Binding
	Strobe      key.Binding
	SOS         key.Binding
	CancelSOS   key.Binding
	Timer       key.Binding
	CancelTimer key.Binding
	Quit        key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Flash:       key.NewBinding(key.WithKeys(" ", "f"), key.WithHelp("space/f", "flash")),
		Strobe:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "strobe")),
		SOS:         key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "sos")),
		CancelSOS:   key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "stop sos")),
		Timer:       key.NewBinding(key.WithKeys("1", "2", "3"), key.WithHelp("1/2/3", "off in 5/10/30s")),
		CancelTimer: key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "cancel timer")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Flash, k.Strobe, k.SOS, k.CancelSOS, k.Timer, k.CancelTimer, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}
