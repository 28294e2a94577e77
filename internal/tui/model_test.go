package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	collectiondomain "todo-sync-go/internal/domain/collection"
	"todo-sync-go/internal/domain/todos"
	"todo-sync-go/internal/repository/inmemory"
	"todo-sync-go/pkg/logger"

	tea "github.com/charmbracelet/bubbletea"
)

type harness struct {
	t       *testing.T
	engine  *todos.Engine
	service *collectiondomain.Service
	model   Model
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.NewDiscard()
	service := collectiondomain.NewService(inmemory.NewCollectionRepository(), collectiondomain.NewHub(), log)
	changes := NewChanges()
	engine := todos.NewEngine(service, log, todos.Options{Path: "todos", OnChange: changes.Notify})
	if err := engine.Activate(context.Background()); err != nil {
		t.Fatalf("activate failed: %v", err)
	}
	t.Cleanup(func() {
		engine.Deactivate()
		engine.Wait()
		service.Close()
	})

	h := &harness{
		t:       t,
		engine:  engine,
		service: service,
		model:   New(engine, changes, Options{User: "ada@example.com", Location: time.UTC}),
	}
	h.waitFor(func(view todos.View) bool { return view.Status == todos.StatusLive })
	return h
}

func (h *harness) send(msg tea.Msg) {
	h.t.Helper()
	next, _ := h.model.Update(msg)
	h.model = next.(Model)
}

func (h *harness) press(keys ...string) {
	h.t.Helper()
	for _, k := range keys {
		switch k {
		case "enter":
			h.send(tea.KeyMsg{Type: tea.KeyEnter})
		case "esc":
			h.send(tea.KeyMsg{Type: tea.KeyEsc})
		case " ":
			h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		default:
			h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

// pressCmd sends one key and returns the command the model produced.
func (h *harness) pressCmd(k string) tea.Cmd {
	h.t.Helper()
	msg := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	if k == "ctrl+c" {
		msg = tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func quits(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func (h *harness) typeText(text string) {
	h.t.Helper()
	for _, r := range text {
		if r == ' ' {
			h.send(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
			continue
		}
		h.send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

// waitFor lets pending remote calls and snapshots land, then refreshes the model.
func (h *harness) waitFor(ready func(todos.View) bool) {
	h.t.Helper()
	h.engine.Wait()

	deadline := time.Now().Add(5 * time.Second)
	for !ready(h.engine.View()) {
		if time.Now().After(deadline) {
			h.t.Fatalf("timed out, last view %+v", h.engine.View())
		}
		time.Sleep(10 * time.Millisecond)
	}
	h.send(viewChangedMsg{})
}

func TestAddToggleAndDeleteThroughKeys(t *testing.T) {
	h := newHarness(t)

	if out := h.model.View(); !strings.Contains(out, "No todos yet") || !strings.Contains(out, "ada@example.com") {
		t.Fatalf("unexpected empty screen:\n%s", out)
	}

	h.press("a")
	h.typeText("Buy milk")
	h.press("enter")
	if h.model.mode != modeBrowse {
		t.Fatalf("successful add must close the input")
	}
	h.waitFor(func(view todos.View) bool { return view.Counts.Total == 1 })

	out := h.model.View()
	if !strings.Contains(out, "Buy milk") || !strings.Contains(out, boxUnchecked) {
		t.Fatalf("expected new item on screen:\n%s", out)
	}

	h.press(" ")
	h.waitFor(func(view todos.View) bool { return view.Counts.Complete == 1 })
	if out := h.model.View(); !strings.Contains(out, boxChecked) {
		t.Fatalf("expected checked item:\n%s", out)
	}

	h.press("d")
	if out := h.model.View(); !strings.Contains(out, `Delete "Buy milk"? (y/n)`) {
		t.Fatalf("expected confirmation prompt:\n%s", out)
	}
	h.press("n")
	h.engine.Wait()
	if h.engine.View().Counts.Total != 1 || h.model.view.PendingDelete != "" {
		t.Fatalf("cancel must keep the item and close the prompt")
	}

	h.press("d", "y")
	h.waitFor(func(view todos.View) bool { return view.Counts.Total == 0 })
	if out := h.model.View(); !strings.Contains(out, "No todos yet") {
		t.Fatalf("expected empty list after delete:\n%s", out)
	}
}

func TestEmptyAddKeepsInputOpenWithNotice(t *testing.T) {
	h := newHarness(t)

	h.press("a")
	h.typeText("   ")
	h.press("enter")

	if h.model.mode != modeAdding {
		t.Fatalf("rejected add must keep the input open")
	}
	if out := h.model.View(); !strings.Contains(out, "Please enter a todo.") {
		t.Fatalf("expected validation notice:\n%s", out)
	}

	h.press("esc")
	if h.model.mode != modeBrowse {
		t.Fatalf("esc must close the input")
	}
	h.press("x")
	if h.model.view.Notice != nil {
		t.Fatalf("x must dismiss the notice")
	}
}

func TestEditThroughKeys(t *testing.T) {
	h := newHarness(t)
	if _, err := h.service.Create(context.Background(), "todos", collectiondomain.Fields{
		"text": "Buy milk", "completed": false, "createdAt": "2024-03-01T09:00:00Z", "completedAt": nil,
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h.waitFor(func(view todos.View) bool { return view.Counts.Total == 1 })

	if out := h.model.View(); !strings.Contains(out, "01/03/2024 09:00") {
		t.Fatalf("expected formatted creation date:\n%s", out)
	}

	h.press("e")
	if h.model.mode != modeEditing || h.model.input.Value() != "Buy milk" {
		t.Fatalf("expected edit input with current text, got mode %d value %q", h.model.mode, h.model.input.Value())
	}
	h.typeText(" now")
	h.press("enter")
	h.waitFor(func(view todos.View) bool {
		item, ok := view.Item(view.Items[0].ID)
		return ok && item.Text == "Buy milk now"
	})

	if h.model.mode != modeBrowse || h.model.view.IsEditing(h.model.view.Items[0].ID) {
		t.Fatalf("commit must close the edit session")
	}
}

func TestLogoutAsksForConfirmation(t *testing.T) {
	h := newHarness(t)

	h.press("a")
	if quits(h.pressCmd("q")) {
		t.Fatalf("q while typing must not quit")
	}
	h.press("esc")

	if quits(h.pressCmd("q")) {
		t.Fatalf("q must ask before logging out")
	}
	if out := h.model.View(); !strings.Contains(out, "Log out? (y/n)") {
		t.Fatalf("expected logout prompt:\n%s", out)
	}
	if quits(h.pressCmd("n")) || h.model.confirmQuit {
		t.Fatalf("n must close the logout prompt")
	}

	h.press("q")
	if !quits(h.pressCmd("y")) {
		t.Fatalf("y must log out")
	}
}

func TestQuitKeysDuringDeletePrompt(t *testing.T) {
	h := newHarness(t)
	if _, err := h.service.Create(context.Background(), "todos", collectiondomain.Fields{
		"text": "Buy milk", "completed": false, "createdAt": "2024-03-01T09:00:00Z", "completedAt": nil,
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h.waitFor(func(view todos.View) bool { return view.Counts.Total == 1 })

	h.press("d")
	if quits(h.pressCmd("q")) || h.model.confirmQuit {
		t.Fatalf("q must not quit or log out while the delete prompt is open")
	}
	if h.model.view.PendingDelete == "" {
		t.Fatalf("delete prompt must stay open")
	}

	if !quits(h.pressCmd("ctrl+c")) {
		t.Fatalf("ctrl+c must always quit")
	}
}

func TestLostSubscriptionShowsOfflineList(t *testing.T) {
	h := newHarness(t)
	if _, err := h.service.Create(context.Background(), "todos", collectiondomain.Fields{
		"text": "Buy milk", "completed": false, "createdAt": "2024-03-01T09:00:00Z", "completedAt": nil,
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	h.waitFor(func(view todos.View) bool { return view.Counts.Total == 1 })

	h.service.Close()
	h.waitFor(func(view todos.View) bool { return view.Status == todos.StatusDisconnected })

	out := h.model.View()
	if !strings.Contains(out, "Offline: showing the last known todos.") || !strings.Contains(out, "Buy milk") {
		t.Fatalf("expected stale list with offline marker:\n%s", out)
	}
	if !strings.Contains(out, "Connection lost.") {
		t.Fatalf("expected subscription notice:\n%s", out)
	}
}

func TestUnavailableState(t *testing.T) {
	log := logger.NewDiscard()
	service := collectiondomain.NewService(inmemory.NewCollectionRepository(), collectiondomain.NewHub(), log)
	service.Close()

	changes := NewChanges()
	engine := todos.NewEngine(service, log, todos.Options{Path: "todos", OnChange: changes.Notify})
	_ = engine.Activate(context.Background())
	defer engine.Deactivate()

	model := New(engine, changes, Options{})
	if out := model.View(); !strings.Contains(out, "Unable to load todos.") {
		t.Fatalf("expected unavailable message:\n%s", out)
	}
}
