package collections

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	collectiondomain "todo-sync-go/internal/domain/collection"
	commonhandler "todo-sync-go/internal/transport/httpserver/handler/common"
	"todo-sync-go/internal/transport/httpserver/middleware"

	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

func writeError(w http.ResponseWriter, status int, code, message string) {
	commonhandler.WriteError(w, status, code, message)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	commonhandler.WriteJSON(w, status, payload)
}

// resolvePath returns the requested path as the client sees it and the storage
// path it maps to. It writes the error response itself when it fails.
func (h *Handlers) resolvePath(w http.ResponseWriter, r *http.Request, op string) (string, string, bool) {
	requested, err := collectiondomain.NormalizePath(chi.URLParam(r, "*"))
	if err != nil {
		h.log.BusinessError(op+": invalid path", err, "path", chi.URLParam(r, "*"))
		writeError(w, http.StatusBadRequest, "invalid_path", "invalid path")
		return "", "", false
	}

	if !h.scopeByUser {
		return requested, requested, true
	}

	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "invalid token")
		return "", "", false
	}
	stored, err := collectiondomain.NormalizePath(collectiondomain.JoinPath("users", userID, requested))
	if err != nil {
		h.log.BusinessError(op+": invalid scoped path", err, "user_id", userID)
		writeError(w, http.StatusBadRequest, "invalid_path", "invalid path")
		return "", "", false
	}
	return requested, stored, true
}

// decodeFields reads a JSON object body. Numbers keep their literal form.
func decodeFields(r *http.Request) (collectiondomain.Fields, error) {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.UseNumber()

	var fields collectiondomain.Fields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return nil, errors.New("decode body: trailing data")
	}
	return fields, nil
}

// writeDomainError maps collection errors onto the error envelope.
func (h *Handlers) writeDomainError(w http.ResponseWriter, op string, err error, args ...any) {
	switch {
	case errors.Is(err, collectiondomain.ErrInvalidPath):
		h.log.BusinessError(op+": invalid path", err, args...)
		writeError(w, http.StatusBadRequest, "invalid_path", "invalid path")
	case errors.Is(err, collectiondomain.ErrNoFields):
		h.log.BusinessError(op+": no fields", err, args...)
		writeError(w, http.StatusBadRequest, "invalid_request", "at least one field is required")
	case errors.Is(err, collectiondomain.ErrRecordNotFound):
		h.log.BusinessError(op+": record not found", err, args...)
		writeError(w, http.StatusNotFound, "record_not_found", "record not found")
	case errors.Is(err, collectiondomain.ErrClosed):
		h.log.BusinessError(op+": store closed", err, args...)
		writeError(w, http.StatusServiceUnavailable, "unavailable", "store is shutting down")
	default:
		h.log.InternalError(op+": failed", err, args...)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
