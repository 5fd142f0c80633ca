package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/chat"
	"github.com/workspace/internal/model"
)

// ChatHandler: HTTP-обёртка над контроллером чата пользователя.
type ChatHandler struct {
	chats *chat.Registry
	state *appstate.Store
}

func NewChatHandler(chats *chat.Registry, state *appstate.Store) *ChatHandler {
	return &ChatHandler{chats: chats, state: state}
}

func (h *ChatHandler) controller(w http.ResponseWriter, r *http.Request) *chat.Controller {
	user := currentUser(w, r)
	if user == nil {
		return nil
	}
	return h.chats.For(authState(r.Context(), h.state, user))
}

type titleRequest struct {
	Title string `json:"title"`
}

// ListSessions переключает область (project_id, mode) и возвращает вид контроллера.
// Без mode: project_chat при заданном project_id, иначе global_chat.
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	projectID := r.URL.Query().Get("project_id")
	mode := model.ChatMode(r.URL.Query().Get("mode"))
	switch {
	case mode == "" && projectID != "":
		mode = model.ModeProjectChat
	case mode == "":
		mode = model.ModeGlobalChat
	case !mode.Valid():
		writeError(w, http.StatusBadRequest, "unknown chat mode")
		return
	}
	c.SetScope(r.Context(), projectID, mode)
	writeJSON(w, http.StatusOK, c.View())
}

func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	var req titleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	s := c.CreateSession(r.Context(), req.Title)
	if s == nil {
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (h *ChatHandler) NewChat(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	c.NewChat()
	writeJSON(w, http.StatusOK, c.View())
}

func (h *ChatHandler) RenameSession(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	var req titleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	if !c.RenameSession(r.Context(), chi.URLParam(r, "id"), req.Title) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	if !c.DeleteSession(r.Context(), chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (h *ChatHandler) SelectSession(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	if !c.SelectSession(r.Context(), chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

func (h *ChatHandler) View(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

type sendRequest struct {
	Text string `json:"text"`
}

type sendResponse struct {
	Result chat.SendResult `json:"result"`
	View   chat.View       `json:"view"`
}

// SendMessage отправляет сообщение. Ошибка сервиса ответов: не ошибка HTTP:
// она в result.error и в view.error, ответ ассистента не сохраняется.
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	c := h.controller(w, r)
	if c == nil {
		return
	}
	var req sendRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// уход клиента не отменяет отправку: сообщения только добавляются
	res, err := c.Send(context.WithoutCancel(r.Context()), req.Text)
	switch {
	case errors.Is(err, chat.ErrBlankMessage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chat.ErrSendInProgress):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sendResponse{Result: res, View: c.View()})
}
