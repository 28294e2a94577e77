package todos

import "errors"

var (
	ErrAlreadyActive   = errors.New("engine already activated")
	ErrEmptyText       = errors.New("text is required")
	ErrTodoNotFound    = errors.New("todo not found")
	ErrNoEditSession   = errors.New("no edit session for todo")
	ErrNoPendingDelete = errors.New("no pending delete for todo")
)
