package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workspace/internal/model"
	"github.com/workspace/internal/storage/memory"
)

func TestSessionTokenSources(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", SessionToken(r))

	r.Header.Set("X-Session-Id", "from-header")
	assert.Equal(t, "from-header", SessionToken(r))

	r.Header.Set("Authorization", "Bearer from-bearer")
	assert.Equal(t, "from-bearer", SessionToken(r))
}

func TestSessionAuth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	users := memory.NewUsers()
	require.NoError(t, users.Create(ctx, &model.User{ID: "u-1", Email: "a@example.com", Role: "member"}))
	require.NoError(t, store.SetSession(ctx, "tok-1", "u-1"))
	require.NoError(t, store.SetSession(ctx, "tok-ghost", "u-missing"))

	var seen *model.User
	h := SessionAuth(store, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUser(r.Context())
		assert.Equal(t, "u-1", GetUserID(r.Context()))
		assert.Equal(t, "tok-1", GetSessionID(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	for _, tc := range []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"unknown", "nope", http.StatusUnauthorized},
		{"deleted user", "tok-ghost", http.StatusUnauthorized},
		{"valid", "tok-1", http.StatusNoContent},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
	require.NotNil(t, seen)
	assert.Equal(t, "a@example.com", seen.Email)
}

func TestAdminOnly(t *testing.T) {
	h := AdminOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	member := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	member = member.WithContext(WithUser(member.Context(), &model.User{ID: "u", Role: "member"}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, member)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := httptest.NewRequest(http.MethodPost, "/api/projects", nil)
	admin = admin.WithContext(WithUser(admin.Context(), &model.User{ID: "a", Role: "admin"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { panic("boom") }))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestSecureHeaders(t *testing.T) {
	h := SecureHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestInternalOnly(t *testing.T) {
	t.Setenv("METRICS_TOKEN", "scrape-secret")
	h := InternalOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, tc := range []struct {
		name   string
		remote string
		header map[string]string
		status int
	}{
		{"private network", "10.0.0.5:4000", nil, http.StatusOK},
		{"loopback", "127.0.0.1:4000", nil, http.StatusOK},
		{"public", "8.8.8.8:4000", nil, http.StatusForbidden},
		{"public behind proxy", "10.0.0.1:4000", map[string]string{"X-Forwarded-For": "8.8.8.8, 10.0.0.1"}, http.StatusForbidden},
		{"scrape token", "8.8.8.8:4000", map[string]string{"X-Metrics-Token": "scrape-secret"}, http.StatusOK},
		{"wrong token", "8.8.8.8:4000", map[string]string{"X-Metrics-Token": "guess"}, http.StatusForbidden},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
			req.RemoteAddr = tc.remote
			for k, v := range tc.header {
				req.Header.Set(k, v)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "[token]", MaskToken("short"))
	assert.Equal(t, "5f0c2a9e…", MaskToken("5f0c2a9e-1b7d-4c3e-9f00-0123456789ab"))
}

func TestRateLimitUserAfterSessionAuth(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	users := memory.NewUsers()
	require.NoError(t, users.Create(ctx, &model.User{ID: "u-limited", Email: "busy@example.com", Role: "member"}))
	require.NoError(t, users.Create(ctx, &model.User{ID: "u-calm", Email: "calm@example.com", Role: "member"}))
	require.NoError(t, store.SetSession(ctx, "tok-limited", "u-limited"))
	require.NoError(t, store.SetSession(ctx, "tok-calm", "u-calm"))

	h := SessionAuth(store, users)(RateLimitUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))
	call := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/chat/view", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < rateLimitMaxUser; i++ {
		require.Equal(t, http.StatusNoContent, call("tok-limited"), "request %d", i)
	}
	assert.Equal(t, http.StatusTooManyRequests, call("tok-limited"))
	assert.Equal(t, http.StatusNoContent, call("tok-calm"))
}

func TestRateLimitUserPassesAnonymous(t *testing.T) {
	h := RateLimitUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < rateLimitMaxUser+5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/auth/login", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}
