package todos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"todo-sync-go/internal/domain/collection"
	"todo-sync-go/pkg/logger"
)

type Options struct {
	Path  string
	Order Order
	Now   func() time.Time
	// OnChange is called after every change to the view, from whichever
	// goroutine made it. It must not block.
	OnChange func()
}

// Engine mirrors one remote todo collection. The local list changes only when
// a snapshot arrives; intents only issue remote calls.
type Engine struct {
	store    Store
	log      logger.Logger
	path     string
	order    Order
	now      func() time.Time
	onChange func()

	mu            sync.Mutex
	items         []TodoItem
	editing       map[string]bool
	pendingDelete string
	status        Status
	notice        *Notice
	activated     bool
	released      bool
	unsubscribe   func()

	releaseOnce sync.Once
	inflight    sync.WaitGroup
}

func NewEngine(store Store, log logger.Logger, opts Options) *Engine {
	order := opts.Order
	if order == "" {
		order = OrderNewestFirst
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	onChange := opts.OnChange
	if onChange == nil {
		onChange = func() {}
	}

	return &Engine{
		store:    store,
		log:      log.With("path", opts.Path),
		path:     opts.Path,
		order:    order,
		now:      now,
		onChange: onChange,
		items:    []TodoItem{},
		editing:  make(map[string]bool),
		status:   StatusIdle,
	}
}

// Activate opens the single live subscription. When it fails the engine stays
// empty with StatusUnavailable; the error is returned for logging only.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	if e.activated {
		e.mu.Unlock()
		return ErrAlreadyActive
	}
	e.activated = true
	if e.released {
		e.mu.Unlock()
		return nil
	}
	e.status = StatusLoading
	e.mu.Unlock()
	e.onChange()

	unsubscribe, err := e.store.Subscribe(ctx, e.path, e.applySnapshot, e.applyStreamError)
	if err != nil {
		e.log.InternalError("engine.activate: subscribe failed", err)
		e.mu.Lock()
		if !e.released {
			e.status = StatusUnavailable
		}
		e.items = []TodoItem{}
		e.notice = e.newNotice(NoticeSubscription, "activate", "Unable to load todos.", err)
		e.mu.Unlock()
		e.onChange()
		return fmt.Errorf("subscribe %s: %w", e.path, err)
	}

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		unsubscribe()
		return nil
	}
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	e.log.Debug("engine.activate: subscribed")
	return nil
}

// Deactivate releases the subscription. Calling it again does nothing.
// In-flight remote calls are left to finish.
func (e *Engine) Deactivate() {
	e.releaseOnce.Do(func() {
		e.mu.Lock()
		e.released = true
		e.status = StatusStopped
		unsubscribe := e.unsubscribe
		e.unsubscribe = nil
		e.mu.Unlock()

		if unsubscribe != nil {
			unsubscribe()
		}
		e.log.Debug("engine.deactivate: released")
	})
}

// Wait blocks until every issued remote call has returned.
func (e *Engine) Wait() {
	e.inflight.Wait()
}

func (e *Engine) applySnapshot(snapshot collection.Snapshot) {
	items := make([]TodoItem, 0, len(snapshot.Entries))
	for _, entry := range snapshot.Entries {
		item, err := decodeItem(entry)
		if err != nil {
			e.log.Warn("engine.snapshot: skipping undecodable record", "key", entry.Key, "err", err)
			continue
		}
		items = append(items, item)
	}
	sortItems(items, e.order)

	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.items = items
	if e.status == StatusDisconnected && e.notice != nil && e.notice.Kind == NoticeSubscription {
		e.notice = nil
	}
	e.status = StatusLive

	present := make(map[string]struct{}, len(items))
	for _, item := range items {
		present[item.ID] = struct{}{}
	}
	for id := range e.editing {
		if _, ok := present[id]; !ok {
			delete(e.editing, id)
		}
	}
	if _, ok := present[e.pendingDelete]; !ok {
		e.pendingDelete = ""
	}
	e.mu.Unlock()

	e.onChange()
}

// applyStreamError keeps the last list on screen but marks it stale. The next
// snapshot brings the engine back to live.
func (e *Engine) applyStreamError(err error) {
	e.mu.Lock()
	if e.released {
		e.mu.Unlock()
		return
	}
	e.status = StatusDisconnected
	e.notice = e.newNotice(NoticeSubscription, "subscribe", "Connection lost. Showing the last known todos.", err)
	e.mu.Unlock()

	e.log.InternalError("engine.subscribe: subscription broken", err)
	e.onChange()
}

// Add creates a todo from text. A nil error means the presentation may clear
// its input; the item itself appears with the next snapshot.
func (e *Engine) Add(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return e.reject("add", ErrEmptyText, "Please enter a todo.")
	}

	fields := collection.Fields{
		"text":        trimmed,
		"completed":   false,
		"createdAt":   formatTimestamp(e.now()),
		"completedAt": nil,
	}
	e.dispatch("add", "Could not add the todo.", func(ctx context.Context) error {
		_, err := e.store.Create(ctx, e.path, fields)
		return err
	})
	return nil
}

func (e *Engine) Toggle(id string) error {
	item, ok := e.find(id)
	if !ok {
		return e.reject("toggle", ErrTodoNotFound, "This todo no longer exists.")
	}

	completed := !item.Completed
	var completedAt any
	if completed {
		completedAt = formatTimestamp(e.now())
	}

	fields := collection.Fields{
		"completed":   completed,
		"completedAt": completedAt,
	}
	e.dispatch("toggle", "Could not update the todo.", func(ctx context.Context) error {
		return e.store.Update(ctx, e.recordPath(id), fields)
	}, "id", id)
	return nil
}

// BeginEdit opens the edit session for id and returns the text to edit.
func (e *Engine) BeginEdit(id string) (string, error) {
	e.mu.Lock()
	item, ok := findItem(e.items, id)
	if ok {
		e.editing[id] = true
	}
	e.mu.Unlock()

	if !ok {
		return "", e.reject("edit", ErrTodoNotFound, "This todo no longer exists.")
	}
	e.onChange()
	return item.Text, nil
}

// CommitEdit saves text for an open edit session and closes it. Empty text
// keeps the session open.
func (e *Engine) CommitEdit(id, text string) error {
	trimmed := strings.TrimSpace(text)

	e.mu.Lock()
	if !e.editing[id] {
		e.mu.Unlock()
		return e.reject("edit", ErrNoEditSession, "This todo is not being edited.")
	}
	if trimmed == "" {
		e.mu.Unlock()
		return e.reject("edit", ErrEmptyText, "Todo text cannot be empty.")
	}
	delete(e.editing, id)
	e.mu.Unlock()
	e.onChange()

	fields := collection.Fields{
		"text":      trimmed,
		"updatedAt": formatTimestamp(e.now()),
	}
	e.dispatch("edit", "Could not save the todo.", func(ctx context.Context) error {
		return e.store.Update(ctx, e.recordPath(id), fields)
	}, "id", id)
	return nil
}

func (e *Engine) CancelEdit(id string) {
	e.mu.Lock()
	_, open := e.editing[id]
	delete(e.editing, id)
	e.mu.Unlock()

	if open {
		e.onChange()
	}
}

// RequestDelete opens the confirmation prompt for id. Nothing is deleted
// until ConfirmDelete.
func (e *Engine) RequestDelete(id string) error {
	e.mu.Lock()
	_, ok := findItem(e.items, id)
	if ok {
		e.pendingDelete = id
	}
	e.mu.Unlock()

	if !ok {
		return e.reject("delete", ErrTodoNotFound, "This todo no longer exists.")
	}
	e.onChange()
	return nil
}

func (e *Engine) ConfirmDelete(id string) error {
	e.mu.Lock()
	if id == "" || e.pendingDelete != id {
		e.mu.Unlock()
		return e.reject("delete", ErrNoPendingDelete, "Nothing to delete.")
	}
	e.pendingDelete = ""
	e.mu.Unlock()
	e.onChange()

	e.dispatch("delete", "Could not delete the todo.", func(ctx context.Context) error {
		return e.store.Delete(ctx, e.recordPath(id))
	}, "id", id)
	return nil
}

func (e *Engine) CancelDelete() {
	e.mu.Lock()
	pending := e.pendingDelete != ""
	e.pendingDelete = ""
	e.mu.Unlock()

	if pending {
		e.onChange()
	}
}

func (e *Engine) DismissNotice() {
	e.mu.Lock()
	had := e.notice != nil
	e.notice = nil
	e.mu.Unlock()

	if had {
		e.onChange()
	}
}

func (e *Engine) View() View {
	e.mu.Lock()
	defer e.mu.Unlock()

	items := make([]TodoItem, len(e.items))
	copy(items, e.items)

	editing := make(map[string]bool, len(e.editing))
	for id := range e.editing {
		editing[id] = true
	}

	var notice *Notice
	if e.notice != nil {
		copied := *e.notice
		notice = &copied
	}

	return View{
		Path:          e.path,
		Items:         items,
		Counts:        CountItems(items),
		Editing:       editing,
		PendingDelete: e.pendingDelete,
		Status:        e.status,
		Notice:        notice,
	}
}

func (e *Engine) dispatch(op, message string, call func(ctx context.Context) error, args ...any) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		err := call(context.Background())
		if err == nil {
			return
		}

		if errors.Is(err, collection.ErrRecordNotFound) {
			e.log.BusinessError("engine."+op+": record gone", err, args...)
		} else {
			e.log.InternalError("engine."+op+": remote call failed", err, args...)
		}

		e.mu.Lock()
		e.notice = e.newNotice(NoticeRemote, op, message, err)
		e.mu.Unlock()
		e.onChange()
	}()
}

func (e *Engine) reject(op string, err error, message string) error {
	e.log.BusinessError("engine."+op+": rejected", err)

	e.mu.Lock()
	e.notice = e.newNotice(NoticeValidation, op, message, err)
	e.mu.Unlock()
	e.onChange()

	return err
}

func (e *Engine) newNotice(kind NoticeKind, op, message string, err error) *Notice {
	return &Notice{
		Kind:    kind,
		Op:      op,
		Message: message,
		Err:     err,
		At:      e.now(),
	}
}

func (e *Engine) find(id string) (TodoItem, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return findItem(e.items, id)
}

func (e *Engine) recordPath(id string) string {
	return collection.JoinPath(e.path, id)
}

func findItem(items []TodoItem, id string) (TodoItem, bool) {
	for _, item := range items {
		if item.ID == id {
			return item, true
		}
	}
	return TodoItem{}, false
}
