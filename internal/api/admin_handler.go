package api

import (
	"net/http"

	"consultbooking/internal/service"
)

type AdminHandler struct {
	Notifications *service.NotificationService
}

func NewAdminHandler(notifications *service.NotificationService) *AdminHandler {
	return &AdminHandler{Notifications: notifications}
}

// RunNotificationSweep triggers one sweep on demand, outside the cron
// schedule, and returns the run metrics.
func (h *AdminHandler) RunNotificationSweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.Notifications.RunSweep(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, result)
}
