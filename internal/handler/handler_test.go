package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/admin"
	"github.com/workspace/internal/appstate"
	"github.com/workspace/internal/auth"
	"github.com/workspace/internal/chat"
	"github.com/workspace/internal/completion"
	"github.com/workspace/internal/events"
	"github.com/workspace/internal/middleware"
	"github.com/workspace/internal/model"
	"github.com/workspace/internal/notify"
	"github.com/workspace/internal/storage/memory"
)

type testEnv struct {
	router  http.Handler
	tasks   *memory.Tasks
	team    *memory.Team
	pollers *notify.Registry
	chats   *chat.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	completionSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message":"3 RFIs are pending"}`))
	}))
	t.Cleanup(completionSrv.Close)

	kv := memory.New()
	users := memory.NewUsers()
	participants := memory.NewParticipants(model.Participant{ID: "p-1", Name: "Ann", Email: "ann@example.com", Department: "civil"})
	broker := events.NewMemoryBroker()
	tasks := memory.NewTasks(broker)
	team := memory.NewTeam(participants)
	messages := memory.NewMessages()

	authSvc := auth.NewService(users, kv, participants)
	require.NoError(t, authSvc.EnsureUser(ctx, model.User{ID: "u-1", Email: "ann@example.com", Name: "Ann", Role: "admin"}, "secret-pass"))
	require.NoError(t, authSvc.EnsureUser(ctx, model.User{ID: "u-2", Email: "bob@example.com", Name: "Bob", Role: "engineer"}, "secret-pass"))

	state := appstate.NewStore(kv)
	chats := chat.NewRegistry(chat.Deps{
		Sessions:     memory.NewChatSessions(messages),
		Messages:     messages,
		Completer:    completion.NewClient(completionSrv.URL, time.Second, false),
		Participants: participants,
	})
	pollers := notify.NewRegistry(ctx, notify.Options{Tasks: tasks, Events: broker, Debounce: 10 * time.Millisecond})
	adminSvc := admin.NewService(admin.Options{
		Gateway:       admin.NewClient("http://127.0.0.1:1", time.Second),
		Team:          team,
		Participants:  participants,
		AssignDelay:   40 * time.Second,
		MaxUploadSize: 1 << 10,
	})

	authH := NewAuthHandler(authSvc, users, state, chats)
	stateH := NewStateHandler(state)
	chatH := NewChatHandler(chats, state)
	notifH := NewNotificationHandler(pollers, state)
	adminH := NewAdminHandler(adminSvc, 1<<10)

	r := chi.NewRouter()
	r.Post("/api/auth/login", authH.Login)
	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionAuth(kv, users))
		r.Post("/api/auth/logout", authH.Logout)
		r.Get("/api/state", stateH.Get)
		r.Put("/api/state", stateH.Put)
		r.Get("/api/chat/sessions", chatH.ListSessions)
		r.Post("/api/chat/sessions", chatH.CreateSession)
		r.Post("/api/chat/new", chatH.NewChat)
		r.Get("/api/chat/view", chatH.View)
		r.Delete("/api/chat/sessions/{id}", chatH.DeleteSession)
		r.Post("/api/chat/messages", chatH.SendMessage)
		r.Get("/api/notifications", notifH.List)
		r.Post("/api/notifications/{id}/read", notifH.MarkRead)
		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminOnly)
			r.Post("/api/projects", adminH.CreateProject)
			r.Put("/api/projects/{id}/team", adminH.AssignTeam)
			r.Post("/api/documents", adminH.UploadDocument)
		})
	})
	return &testEnv{router: r, tasks: tasks, team: team, pollers: pollers, chats: chats}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{Email: email, Password: "secret-pass"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestLoginRejectsWrongPasswordAndResolvesParticipant(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{Email: "ann@example.com", Password: "nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", auth.LoginRequest{Email: "Ann@Example.com", Password: "secret-pass"})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "p-1", resp.State.Auth.ParticipantID)
	assert.Equal(t, model.AuthSchemaVersion, resp.State.Auth.SchemaVersion)
}

func TestStateQueryOverridesAndPersists(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com")

	rec := env.do(t, http.MethodPut, "/api/state", token, model.WorkspaceState{ProjectID: "proj-1", DeliverableID: "d-1"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/state?project=proj-2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st model.AppState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "proj-2", st.Workspace.ProjectID)
	assert.Empty(t, st.Workspace.DeliverableID)

	rec = env.do(t, http.MethodGet, "/api/state", token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "proj-2", st.Workspace.ProjectID)
}

func TestChatSendCreatesSessionAndReply(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com")

	rec := env.do(t, http.MethodGet, "/api/chat/sessions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat/messages", token, sendRequest{Text: "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/chat/messages", token, sendRequest{Text: "Show me pending RFIs"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp sendResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Result.Error)
	require.Len(t, resp.View.Sessions, 1)
	assert.Equal(t, "Show me pending RFIs", resp.View.Sessions[0].Title)
	require.Len(t, resp.View.Messages, 2)
	assert.Equal(t, model.RoleUser, resp.View.Messages[0].Role)
	assert.Equal(t, "3 RFIs are pending", resp.View.Messages[1].Content)

	rec = env.do(t, http.MethodDelete, "/api/chat/sessions/"+resp.View.ActiveSessionID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view chat.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Empty(t, view.ActiveSessionID)
	assert.Empty(t, view.Messages)
}

func TestChatRejectsUnknownMode(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com")
	rec := env.do(t, http.MethodGet, "/api/chat/sessions?mode=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutDropsTokenAndController(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com")
	env.do(t, http.MethodPost, "/api/chat/new", token, nil)
	require.Equal(t, 1, env.chats.Len())

	rec := env.do(t, http.MethodPost, "/api/auth/logout", token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.chats.Len())

	rec = env.do(t, http.MethodGet, "/api/chat/view", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.tasks.Add(ctx, model.Task{ID: "t1", AssignedTo: "p-1", Title: "Review RFI", CreatedAt: time.Now()})
	token := env.login(t, "ann@example.com")

	rec := env.do(t, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap notify.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 1, snap.Unread)
	assert.Equal(t, 0, env.pollers.Len())

	rec = env.do(t, http.MethodPost, "/api/notifications/t1/read", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, 0, snap.Unread)

	rec = env.do(t, http.MethodPost, "/api/notifications/missing/read", token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireAdminAndValidate(t *testing.T) {
	env := newTestEnv(t)
	engineer := env.login(t, "bob@example.com")
	rec := env.do(t, http.MethodPost, "/api/projects", engineer, admin.ProjectInput{Name: "Tower", Code: "P-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	token := env.login(t, "ann@example.com")
	rec = env.do(t, http.MethodPost, "/api/projects", token, admin.ProjectInput{Code: "P-1"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "name", e.Field)

	rec = env.do(t, http.MethodPost, "/api/projects", token, admin.ProjectInput{Name: "Tower", Code: "P-1"})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/projects/proj-1/team", token, assignRequest{ParticipantIDs: []string{"p-1"}})
	require.Equal(t, http.StatusOK, rec.Code)
	members, err := env.team.ListByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "civil", members[0].Department)
}

func TestUploadTooLargeFailsValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "ann@example.com")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("project_id", "proj-1"))
	part, err := mw.CreateFormFile("file", "big.pdf")
	require.NoError(t, err)
	_, err = part.Write(bytes.Repeat([]byte("x"), 2<<10))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var e errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &e))
	assert.Equal(t, "file", e.Field)
}
