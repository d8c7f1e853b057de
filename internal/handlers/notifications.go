package handlers

import (
	"net/http"

	"medmarket/internal/auth"
)

// GetNotificationsHandler handles GET /api/notifications: the calling org's
// notifications plus broadcasts, most recent first.
func (h *Handler) GetNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	params := parsePaginationParams(r)

	notifications, err := h.Store.GetOrgNotifications(r.Context(), auth.OrgID(r.Context()), params.Limit, params.Offset)
	if err != nil {
		h.storageError(w, err, "Failed to get notifications")
		return
	}

	writeJSON(w, http.StatusOK, notifications)
}

// MarkNotificationReadHandler handles PUT /api/notifications/{notificationId}/read.
func (h *Handler) MarkNotificationReadHandler(w http.ResponseWriter, r *http.Request) {
	notificationID, ok := pathID(w, r, "notificationId")
	if !ok {
		return
	}

	n, err := h.Store.MarkNotificationRead(r.Context(), notificationID, auth.OrgID(r.Context()))
	if err != nil {
		h.storageError(w, err, "Failed to mark notification read")
		return
	}

	writeJSON(w, http.StatusOK, n)
}
