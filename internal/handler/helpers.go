package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/workspace/internal/admin"
	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/logger"
	"github.com/workspace/internal/middleware"
	"github.com/workspace/internal/model"
)

const maxJSONBody = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeAdminError: ошибка поля: 400 {error, field}, ошибка сервиса проектов: 502.
func writeAdminError(w http.ResponseWriter, err error) {
	var ve *admin.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: ve.Message, Field: ve.Field})
	case errors.Is(err, admin.ErrGateway):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Errorf("admin: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid body")
		return false
	}
	return true
}

// authState строит AuthState текущего пользователя с participant_id из сохранённого состояния.
func authState(ctx context.Context, store *appstate.Store, user *model.User) model.AuthState {
	st, err := store.Load(ctx, user)
	if err != nil {
		logger.Errorf("handler authState user=%s: %v", user.ID, err)
	}
	return st.Auth
}

func currentUser(w http.ResponseWriter, r *http.Request) *model.User {
	u := middleware.GetUser(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return u
}
