package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/notify"
)

// NotificationHandler: задачи-уведомления участника через общий поллер пользователя.
type NotificationHandler struct {
	pollers *notify.Registry
	state   *appstate.Store
}

func NewNotificationHandler(pollers *notify.Registry, state *appstate.Store) *NotificationHandler {
	return &NotificationHandler{pollers: pollers, state: state}
}

func (h *NotificationHandler) poller(w http.ResponseWriter, r *http.Request) (*notify.Poller, func()) {
	user := currentUser(w, r)
	if user == nil {
		return nil, nil
	}
	auth := authState(r.Context(), h.state, user)
	p, release, err := h.pollers.Acquire(user.ID, auth.ParticipantID)
	if err != nil {
		logger.Errorf("notifications acquire user=%s: %v", user.ID, err)
		writeError(w, http.StatusServiceUnavailable, "notifications unavailable")
		return nil, nil
	}
	return p, release
}

// List возвращает задачи и число непрочитанных. Пока поллер только создан,
// снимок перечитывается синхронно.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p, release := h.poller(w, r)
	if p == nil {
		return
	}
	defer release()
	snap := p.Snapshot()
	if !snap.Loaded && p.ParticipantID() != "" {
		p.Refresh(r.Context())
		snap = p.Snapshot()
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p, release := h.poller(w, r)
	if p == nil {
		return
	}
	defer release()
	if err := p.MarkAsRead(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, notify.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusBadGateway, "failed to mark as read")
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	p, release := h.poller(w, r)
	if p == nil {
		return
	}
	defer release()
	if err := p.MarkAllAsRead(r.Context()); err != nil {
		writeError(w, http.StatusBadGateway, "failed to mark all as read")
		return
	}
	writeJSON(w, http.StatusOK, p.Snapshot())
}
