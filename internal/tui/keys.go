package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up      key.Binding
	Down    key.Binding
	Add     key.Binding
	Toggle  key.Binding
	Edit    key.Binding
	Delete  key.Binding
	Dismiss key.Binding
	Quit    key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
		Toggle:  key.NewBinding(key.WithKeys(" ", "enter"), key.WithHelp("space", "toggle")),
		Edit:    key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit")),
		Delete:  key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Dismiss: key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Quit:    key.NewBinding(key.WithKeys("q"), key.WithHelp("q", "log out")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Add, k.Toggle, k.Edit, k.Delete, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Add, k.Toggle, k.Edit, k.Delete},
		{k.Dismiss, k.Quit},
	}
}

var (
	confirmKey = key.NewBinding(key.WithKeys("y", "Y"), key.WithHelp("y", "delete"))
	cancelKey  = key.NewBinding(key.WithKeys("n", "N", "esc"), key.WithHelp("n/esc", "cancel"))
	submitKey  = key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "save"))
	abortKey   = key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel"))

	forceQuitKey = key.NewBinding(key.WithKeys("ctrl+c"))
)
