package httpclient

import (
	"fmt"
	"net/http"

	collectiondomain "todo-sync-go/internal/domain/collection"
)

// APIError is a non-2xx answer from the server, decoded from its error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets callers match the domain sentinels with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusNotFound && e.Code == "record_not_found":
		return collectiondomain.ErrRecordNotFound
	case e.Code == "invalid_path":
		return collectiondomain.ErrInvalidPath
	case e.Status == http.StatusServiceUnavailable:
		return collectiondomain.ErrClosed
	default:
		return nil
	}
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
