package api

import (
	"net/http"
	"strconv"
	"strings"
)

func (h *Handler) listAchievements(w http.ResponseWriter, r *http.Request, userID string) {
	items, err := h.svc.Achievements.ListAchievements(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items, nil))
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request, userID string) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	unreadOnly := false
	if raw := strings.TrimSpace(r.URL.Query().Get("unread")); raw != "" {
		if unreadOnly, err = strconv.ParseBool(raw); err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "unread must be a boolean")
			return
		}
	}
	items, err := h.svc.Notifications.ListNotifications(r.Context(), userID, unreadOnly, limit)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list(items, nil))
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request, userID string) {
	if err := h.svc.Notifications.MarkRead(r.Context(), userID, r.PathValue("id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
