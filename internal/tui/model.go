// Package tui renders a todos.Engine in the terminal with bubbletea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"todo-sync-go/internal/domain/todos"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type mode int

const (
	modeBrowse mode = iota
	modeAdding
	modeEditing
)

// Engine is the part of todos.Engine the screen drives.
type Engine interface {
	View() todos.View
	Add(text string) error
	Toggle(id string) error
	BeginEdit(id string) (string, error)
	CommitEdit(id, text string) error
	CancelEdit(id string)
	RequestDelete(id string) error
	ConfirmDelete(id string) error
	CancelDelete()
	DismissNotice()
}

type viewChangedMsg struct{}

// Changes turns engine OnChange calls into bubbletea messages. Signals
// coalesce; the model always reads the latest view.
type Changes struct {
	ch chan struct{}
}

func NewChanges() *Changes {
	return &Changes{ch: make(chan struct{}, 1)}
}

// Notify is meant for todos.Options.OnChange. It never blocks.
func (c *Changes) Notify() {
	select {
	case c.ch <- struct{}{}:
	default:
	}
}

func (c *Changes) wait() tea.Cmd {
	return func() tea.Msg {
		<-c.ch
		return viewChangedMsg{}
	}
}

type Options struct {
	// User is shown in the header, e.g. the signed-in email.
	User     string
	Location *time.Location
}

type Model struct {
	engine  Engine
	changes *Changes
	keys    keyMap
	help    help.Model
	input   textinput.Model
	user    string
	loc     *time.Location

	view        todos.View
	cursor      int
	mode        mode
	editID      string
	width       int
	confirmQuit bool
}

func New(engine Engine, changes *Changes, opts Options) Model {
	input := textinput.New()
	input.Prompt = "> "
	input.CharLimit = 500

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	return Model{
		engine:  engine,
		changes: changes,
		keys:    defaultKeyMap(),
		help:    help.New(),
		input:   input,
		user:    opts.User,
		loc:     loc,
		view:    engine.View(),
	}
}

func (m Model) Init() tea.Cmd {
	return m.changes.wait()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case viewChangedMsg:
		m.refresh()
		return m, m.changes.wait()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil
	case tea.KeyMsg:
		if key.Matches(msg, forceQuitKey) {
			return m, tea.Quit
		}
		switch {
		case m.confirmQuit:
			return m.updateQuitConfirm(msg)
		case m.view.PendingDelete != "":
			m.updateConfirm(msg)
			return m, nil
		case m.mode == modeAdding || m.mode == modeEditing:
			return m.updateInput(msg)
		default:
			return m.updateBrowse(msg)
		}
	}
	return m, nil
}

func (m *Model) updateConfirm(msg tea.KeyMsg) {
	switch {
	case key.Matches(msg, confirmKey):
		_ = m.engine.ConfirmDelete(m.view.PendingDelete)
	case key.Matches(msg, cancelKey):
		m.engine.CancelDelete()
	}
	m.refresh()
}

func (m Model) updateQuitConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, confirmKey):
		return m, tea.Quit
	case key.Matches(msg, cancelKey):
		m.confirmQuit = false
	}
	return m, nil
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, submitKey):
		var err error
		if m.mode == modeAdding {
			err = m.engine.Add(m.input.Value())
		} else {
			err = m.engine.CommitEdit(m.editID, m.input.Value())
		}
		if err == nil {
			m.closeInput()
		}
		m.refresh()
		return m, nil
	case key.Matches(msg, abortKey):
		if m.mode == modeEditing {
			m.engine.CancelEdit(m.editID)
		}
		m.closeInput()
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	selected, hasSelection := m.selected()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.view.Items)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Add):
		m.openInput(modeAdding, "", "What needs to be done?")
		m.refresh()
		return m, textinput.Blink
	case key.Matches(msg, m.keys.Toggle):
		if hasSelection {
			_ = m.engine.Toggle(selected.ID)
		}
	case key.Matches(msg, m.keys.Edit):
		if hasSelection {
			text, err := m.engine.BeginEdit(selected.ID)
			if err == nil {
				m.editID = selected.ID
				m.openInput(modeEditing, text, "")
				m.refresh()
				return m, textinput.Blink
			}
		}
	case key.Matches(msg, m.keys.Delete):
		if hasSelection {
			_ = m.engine.RequestDelete(selected.ID)
		}
	case key.Matches(msg, m.keys.Dismiss):
		m.engine.DismissNotice()
	case key.Matches(msg, m.keys.Quit):
		m.confirmQuit = true
	}

	m.refresh()
	return m, nil
}

func (m *Model) openInput(next mode, value, placeholder string) {
	m.mode = next
	m.input.SetValue(value)
	m.input.Placeholder = placeholder
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.mode = modeBrowse
	m.editID = ""
	m.input.SetValue("")
	m.input.Blur()
}

// refresh pulls the latest view and keeps the cursor and edit mode valid.
func (m *Model) refresh() {
	m.view = m.engine.View()

	if m.cursor >= len(m.view.Items) {
		m.cursor = len(m.view.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if m.mode == modeEditing && !m.view.IsEditing(m.editID) {
		m.closeInput()
	}
}

func (m Model) selected() (todos.TodoItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.view.Items) {
		return todos.TodoItem{}, false
	}
	return m.view.Items[m.cursor], true
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.summary())
	b.WriteString("\n\n")
	b.WriteString(m.list())

	if m.mode != modeBrowse {
		title := "Add todo"
		if m.mode == modeEditing {
			title = "Edit todo"
		}
		b.WriteString("\n")
		b.WriteString(inputStyle.Render(title + "\n" + m.input.View()))
	}

	if m.view.PendingDelete != "" {
		item, _ := m.view.Item(m.view.PendingDelete)
		b.WriteString("\n")
		b.WriteString(promptStyle.Render(fmt.Sprintf("Delete %q? (y/n)", item.Text)))
	}

	if m.confirmQuit {
		b.WriteString("\n")
		b.WriteString(promptStyle.Render("Log out? (y/n)"))
	}

	if notice := m.view.Notice; notice != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render("✖ " + notice.Message))
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return panelStyle.Render(b.String())
}

func (m Model) header() string {
	title := titleStyle.Render("Todos")
	parts := []string{title}
	if m.user != "" {
		parts = append(parts, accentStyle.Render(m.user))
	}
	if m.view.Path != "" {
		parts = append(parts, mutedStyle.Render(m.view.Path))
	}
	return strings.Join(parts, "  ")
}

func (m Model) summary() string {
	counts := m.view.Counts
	return fmt.Sprintf("%s %d   %s %d   %s %d",
		accentStyle.Render("Total"), counts.Total,
		pendingStyle.Render("In progress"), counts.Incomplete,
		successStyle.Render("Done"), counts.Complete,
	)
}

func (m Model) list() string {
	switch m.view.Status {
	case todos.StatusUnavailable:
		return errorStyle.Render("Unable to load todos.")
	case todos.StatusIdle, todos.StatusLoading:
		return mutedStyle.Render("Loading…")
	}

	lines := make([]string, 0, len(m.view.Items)+1)
	if m.view.Status == todos.StatusDisconnected {
		lines = append(lines, errorStyle.Render("Offline: showing the last known todos."))
	}
	if len(m.view.Items) == 0 {
		lines = append(lines, mutedStyle.Render("No todos yet. Press a to add one."))
	}
	for i, item := range m.view.Items {
		lines = append(lines, m.renderItem(i, item))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderItem(index int, item todos.TodoItem) string {
	box := mutedStyle.Render(boxUnchecked)
	text := item.Text
	if item.Completed {
		box = successStyle.Render(boxChecked)
		text = doneStyle.Render(text)
	}
	if m.view.IsEditing(item.ID) {
		text += " " + accentStyle.Render("(editing)")
	}

	prefix := "  "
	if index == m.cursor {
		prefix = selectedStyle.Render(">") + " "
	}

	line := prefix + box + " " + text
	if date := todos.FormatDate(item.CreatedAt, m.loc); date != "" {
		line += "  " + mutedStyle.Render(date)
	}
	return line
}
