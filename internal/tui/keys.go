package tui

import "github.com/charmbracelet/bubbles/key"

// PickerKeyMap defines the key bindings of the agent picker
type PickerKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

// DefaultPickerKeyMap returns the default picker bindings
func DefaultPickerKeyMap() PickerKeyMap {
	return PickerKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "cancel"),
		),
	}
}

// ShortHelp returns the short help text
func (k PickerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Quit}
}

// FullHelp returns the full help text
func (k PickerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// BrowserKeyMap defines the key bindings of the issue browser
type BrowserKeyMap struct {
	Help       key.Binding
	Quit       key.Binding
	Up         key.Binding
	Down       key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
	Top        key.Binding
	Bottom     key.Binding
	FilterHigh key.Binding
	FilterMed  key.Binding
	FilterLow  key.Binding
	FilterAll  key.Binding
}

// DefaultBrowserKeyMap returns the default browser bindings
func DefaultBrowserKeyMap() BrowserKeyMap {
	return BrowserKeyMap{
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", "half page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", " "),
			key.WithHelp("pgdn", "half page down"),
		),
		Top: key.NewBinding(
			key.WithKeys("home", "g"),
			key.WithHelp("g", "top"),
		),
		Bottom: key.NewBinding(
			key.WithKeys("end", "G"),
			key.WithHelp("G", "bottom"),
		),
		FilterHigh: key.NewBinding(
			key.WithKeys("1", "h"),
			key.WithHelp("1/h", "high only"),
		),
		FilterMed: key.NewBinding(
			key.WithKeys("2", "m"),
			key.WithHelp("2/m", "medium only"),
		),
		FilterLow: key.NewBinding(
			key.WithKeys("3", "l"),
			key.WithHelp("3/l", "low only"),
		),
		FilterAll: key.NewBinding(
			key.WithKeys("0", "a"),
			key.WithHelp("0/a", "all issues"),
		),
	}
}

// ShortHelp returns the short help text
func (k BrowserKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Help, k.Quit, k.FilterHigh, k.FilterMed, k.FilterLow, k.FilterAll}
}

// FullHelp returns the full help text
func (k BrowserKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Help, k.Quit},
		{k.Up, k.Down, k.PageUp, k.PageDown, k.Top, k.Bottom},
		{k.FilterHigh, k.FilterMed, k.FilterLow, k.FilterAll},
	}
}
