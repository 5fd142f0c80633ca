package handler

import (
	"net/http"

	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/model"
)

// StateHandler: состояние рабочего пространства между визитами.
type StateHandler struct {
	store *appstate.Store
}

func NewStateHandler(store *appstate.Store) *StateHandler {
	return &StateHandler{store: store}
}

// Get загружает состояние и перекрывает навигацию параметрами URL
// (project, deliverable, node, view); перекрытое состояние сохраняется.
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	st, err := h.store.Load(r.Context(), user)
	if err != nil {
		logger.Errorf("state load user=%s: %v", user.ID, err)
	}
	next := appstate.ApplyQuery(st, r.URL.Query())
	if next.Workspace != st.Workspace {
		if next, err = h.store.SaveWorkspace(r.Context(), user, next.Workspace); err != nil {
			logger.Errorf("state save user=%s: %v", user.ID, err)
		}
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *StateHandler) Put(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var ws model.WorkspaceState
	if !decodeJSON(w, r, &ws) {
		return
	}
	st, err := h.store.SaveWorkspace(r.Context(), user, ws)
	if err != nil {
		logger.Errorf("state save user=%s: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "failed to save state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
