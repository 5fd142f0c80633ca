package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/workspace/internal/admin"
	"github.com/workspace/internal/logger"
)

// AdminHandler: проекты, документы и состав команды (только для администраторов).
type AdminHandler struct {
	svc           *admin.Service
	maxUploadSize int64
}

func NewAdminHandler(svc *admin.Service, maxUploadSize int64) *AdminHandler {
	return &AdminHandler{svc: svc, maxUploadSize: maxUploadSize}
}

func (h *AdminHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListParticipants(r.Context(), r.URL.Query().Get("department"))
	if err != nil {
		logger.Errorf("admin list participants: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to list participants")
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *AdminHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	user := currentUser(w, r)
	if user == nil {
		return
	}
	var in admin.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	created, err := h.svc.CreateProject(r.Context(), in, user.ID)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *AdminHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	var in admin.ProjectInput
	if !decodeJSON(w, r, &in) {
		return
	}
	p, err := h.svc.UpdateProject(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *AdminHandler) ListTeam(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListTeam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

type assignRequest struct {
	ParticipantIDs []string `json:"participant_ids"`
}

func (h *AdminHandler) AssignTeam(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AssignTeam(r.Context(), chi.URLParam(r, "id"), req.ParticipantIDs)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *AdminHandler) AssignHODs(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.AssignHODs(r.Context(), chi.URLParam(r, "id"), req.ParticipantIDs)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// UploadDocument принимает multipart (file, project_id) и передаёт файл потоком.
// Размер проверяется по заголовку части до обращения к сервису проектов.
func (h *AdminHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	if h.maxUploadSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			writeAdminError(w, &admin.ValidationError{Field: "file", Message: "file exceeds upload limit"})
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	u := admin.Upload{ProjectID: r.FormValue("project_id")}
	file, hdr, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		u.Filename = hdr.Filename
		u.Size = hdr.Size
		u.ContentType = hdr.Header.Get("Content-Type")
		u.Body = file
	}
	doc, err := h.svc.UploadDocument(r.Context(), u)
	if err != nil {
		writeAdminError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}
