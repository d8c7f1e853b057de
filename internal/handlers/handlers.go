package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"medmarket/db"
	"medmarket/internal/notify"
	"medmarket/models"
)

// Handler wires the storage, the notification dispatcher and the logger
// into the HTTP surface.
type Handler struct {
	Store    StorageInterface
	Notifier *notify.Notifier
	Log      *zap.Logger
}

func NewHandler(store StorageInterface, notifier *notify.Notifier, log *zap.Logger) *Handler {
	return &Handler{Store: store, Notifier: notifier, Log: log}
}

// PingHandler answers "ok" for liveness probes.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams reads limit and offset from the query, with
// defaults and caps.
func parsePaginationParams(r *http.Request) PaginationParams {
	params := PaginationParams{Limit: 20, Offset: 0}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			params.Limit = l
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// pathID reads a UUID path parameter. Malformed ids stop here with a 400
// instead of reaching the UUID columns as a driver error.
func pathID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	id := chi.URLParam(r, name)
	if _, err := uuid.Parse(id); err != nil {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// storageError maps the storage error taxonomy onto HTTP statuses. The
// fallback message covers unexpected failures.
func (h *Handler) storageError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, db.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, db.ErrConflict):
		http.Error(w, "Conflict", http.StatusConflict)
	default:
		h.Log.Error(fallback, zap.Error(err))
		http.Error(w, fallback, http.StatusInternalServerError)
	}
}

// audit records one entry per state-changing call. Failures are logged and
// swallowed; auditing never fails the operation.
func (h *Handler) audit(ctx context.Context, actorOrgID, action, detail string) {
	entry := &models.AuditEntry{ActorOrgID: actorOrgID, Action: action, Detail: detail}
	if err := h.Store.CreateAuditEntry(ctx, entry); err != nil {
		h.Log.Error("audit write failed", zap.Error(err), zap.String("action", action))
	}
}
