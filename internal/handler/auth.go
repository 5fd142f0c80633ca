package handler

import (
	"errors"
	"net/http"

	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/auth"
	"github.com/workspace/internal/chat"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/middleware"
	"github.com/workspace/internal/model"
)

type AuthHandler struct {
	auth  *auth.Service
	users middleware.UserLookup
	state *appstate.Store
	chats *chat.Registry
}

func NewAuthHandler(svc *auth.Service, users middleware.UserLookup, state *appstate.Store, chats *chat.Registry) *AuthHandler {
	return &AuthHandler{auth: svc, users: users, state: state, chats: chats}
}

type loginResponse struct {
	Token string         `json:"token"`
	State model.AppState `json:"state"`
}

// Login проверяет email и пароль, выдаёт токен и сохраняет auth-состояние.
// Неверный email и неверный пароль неразличимы для клиента.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail):
			writeError(w, http.StatusBadRequest, "Неверный формат email")
		case errors.Is(err, auth.ErrRateLimitExceeded):
			writeError(w, http.StatusTooManyRequests, "Слишком много попыток входа. Попробуйте позже.")
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "Неверный email или пароль")
		default:
			logger.Errorf("login email=%s: %v", req.Email, err)
			writeError(w, http.StatusInternalServerError, "Ошибка входа")
		}
		return
	}

	state := model.AppState{Auth: res.Auth}
	if user, err := h.users.GetByID(r.Context(), res.Auth.UserID); err == nil {
		if err := h.state.SaveAuth(r.Context(), user, res.Auth); err != nil {
			logger.Errorf("login save state user=%s: %v", user.ID, err)
		}
		if st, err := h.state.Load(r.Context(), user); err == nil {
			state = st
		}
	} else {
		logger.Errorf("login load user=%s: %v", res.Auth.UserID, err)
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: res.Token, State: state})
}

// Logout удаляет токен и забывает контроллер чата пользователя.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.Logout(r.Context(), middleware.GetSessionID(r.Context())); err != nil {
		logger.Errorf("logout: %v", err)
		writeError(w, http.StatusInternalServerError, "Ошибка выхода")
		return
	}
	if userID := middleware.GetUserID(r.Context()); userID != "" {
		h.chats.Drop(userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me возвращает текущего пользователя.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	writeJSON(w, http.StatusOK, authState(r.Context(), h.state, user))
}
