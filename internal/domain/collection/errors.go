package collection

import "errors"

var (
	ErrInvalidPath    = errors.New("invalid path")
	ErrRecordNotFound = errors.New("record not found")
	ErrKeyExists      = errors.New("record key already exists")
	ErrNoFields       = errors.New("no fields")
	ErrClosed         = errors.New("collection store closed")
)
