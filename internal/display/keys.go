package display

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the display key bindings. They mirror the three buttons
// of the receiver's LCD.
type KeyMap struct {
	Prev  key.Binding
	Next  key.Binding
	Pause key.Binding
	Quit  key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Prev: key.NewBinding(
		key.WithKeys("left", "p", "up"),
		key.WithHelp("←/p", "newer"),
	),
	Next: key.NewBinding(
		key.WithKeys("right", "n", "down"),
		key.WithHelp("→/n", "older"),
	),
	Pause: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "pause"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
