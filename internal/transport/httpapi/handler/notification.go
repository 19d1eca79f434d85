package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/loworbit/txtrack/internal/platform/notifier"
)

// NotificationStore defines the notifier operations needed by NotificationHandler
type NotificationStore interface {
	Snapshot() []notifier.Indicator
	Dismiss(key string)
}

// NotificationHandler serves the current indicators
type NotificationHandler struct {
	store NotificationStore
}

func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// GetNotifications handles GET /notifications, most recent first
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	items := h.store.Snapshot()
	if items == nil {
		items = []notifier.Indicator{}
	}
	respondJSON(w, map[string]any{"notifications": items}, http.StatusOK)
}

// DismissNotification handles DELETE /notifications/{key}
func (h *NotificationHandler) DismissNotification(w http.ResponseWriter, r *http.Request) {
	h.store.Dismiss(chi.URLParam(r, "key"))
	w.WriteHeader(http.StatusNoContent)
}
