package collections

import (
	"net/http"

	collectiondomain "todo-sync-go/internal/domain/collection"
	commonhandler "todo-sync-go/internal/transport/httpserver/handler/common"
)

type snapshotResponse struct {
	Path    string                   `json:"path"`
	Entries []collectiondomain.Entry `json:"entries"`
}

type createRecordResponse struct {
	Key string `json:"key"`
}

func newSnapshotResponse(requested string, snapshot collectiondomain.Snapshot) snapshotResponse {
	entries := snapshot.Entries
	if entries == nil {
		entries = []collectiondomain.Entry{}
	}
	return snapshotResponse{Path: requested, Entries: entries}
}

func (h *Handlers) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	requested, stored, ok := h.resolvePath(w, r, "collections.get_snapshot")
	if !ok {
		return
	}

	snapshot, err := h.Collections.Snapshot(r.Context(), stored)
	if err != nil {
		h.writeDomainError(w, "collections.get_snapshot", err, "path", stored)
		return
	}

	writeJSON(w, http.StatusOK, newSnapshotResponse(requested, snapshot))
}

func (h *Handlers) CreateRecord(w http.ResponseWriter, r *http.Request) {
	_, stored, ok := h.resolvePath(w, r, "collections.create_record")
	if !ok {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		h.log.BusinessError("collections.create_record: invalid body", err, "path", stored)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	key, err := h.Collections.Create(r.Context(), stored, fields)
	if err != nil {
		h.writeDomainError(w, "collections.create_record", err, "path", stored)
		return
	}

	writeJSON(w, http.StatusCreated, createRecordResponse{Key: key})
}

func (h *Handlers) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	_, stored, ok := h.resolvePath(w, r, "collections.update_record")
	if !ok {
		return
	}

	fields, err := decodeFields(r)
	if err != nil {
		h.log.BusinessError("collections.update_record: invalid body", err, "path", stored)
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
		return
	}

	if err := h.Collections.Update(r.Context(), stored, fields); err != nil {
		h.writeDomainError(w, "collections.update_record", err, "path", stored)
		return
	}

	commonhandler.WriteNoContent(w)
}

func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	_, stored, ok := h.resolvePath(w, r, "collections.delete_record")
	if !ok {
		return
	}

	if err := h.Collections.Delete(r.Context(), stored); err != nil {
		h.writeDomainError(w, "collections.delete_record", err, "path", stored)
		return
	}

	commonhandler.WriteNoContent(w)
}
