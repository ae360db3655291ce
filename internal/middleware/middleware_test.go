package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/config"
	"accountdesk/portal/internal/ids"
	"accountdesk/portal/internal/middleware"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/security"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/storage"
)

const secret = "0123456789abcdef0123456789abcdef"

var sessionConfig = config.SessionConfig{
	CookieName: "accountdesk_sid",
	Secret:     secret,
	TTL:        time.Hour,
	KeyPrefix:  "test",
}

type view struct {
	loading bool
	user    *models.User
}

func (v view) Loading() bool         { return v.loading }
func (v view) IsAuthenticated() bool { return v.user != nil }
func (v view) User() (models.User, bool) {
	if v.user == nil {
		return models.User{}, false
	}
	return *v.user, true
}

func TestDecide(t *testing.T) {
	admin := &models.User{ID: "a", Role: models.UserRoleAdmin}
	user := &models.User{ID: "u", Role: models.UserRoleUser}

	tests := []struct {
		name    string
		view    view
		allowed []models.UserRole
		want    middleware.Decision
	}{
		{"loading never redirects", view{loading: true}, []models.UserRole{models.UserRoleAdmin}, middleware.DecisionLoading},
		{"unauthenticated goes to login", view{}, nil, middleware.DecisionLogin},
		{"any role when allow-list empty", view{user: user}, nil, middleware.DecisionAllow},
		{"user on admin view goes to profile", view{user: user}, []models.UserRole{models.UserRoleAdmin}, middleware.DecisionProfile},
		{"admin on admin view", view{user: admin}, []models.UserRole{models.UserRoleAdmin}, middleware.DecisionAllow},
		{"admin on multi-role view", view{user: admin}, []models.UserRole{models.UserRoleUser, models.UserRoleAdmin}, middleware.DecisionAllow},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, middleware.Decide(tc.view, tc.allowed...))
		})
	}
}

func newEngine(t *testing.T, kv storage.Store) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client, err := apiclient.New(config.UpstreamConfig{BaseURL: "http://127.0.0.1:1/api", Timeout: time.Second}, zerolog.Nop())
	require.NoError(t, err)

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Session(middleware.SessionDeps{
		Config: sessionConfig,
		KV:     kv,
		Client: client,
		Log:    zerolog.Nop(),
	}))

	ok := func(c *gin.Context) { c.String(http.StatusOK, "ok") }
	r.GET("/profile", middleware.RequireSession(), ok)
	r.GET("/dashboard", middleware.RequireSession(models.UserRoleAdmin), ok)
	r.GET("/login", middleware.GuestOnly(), ok)
	r.POST("/dashboard/confirm", middleware.RequireSession(models.UserRoleAdmin),
		middleware.InFlight(kv, time.Minute, "/dashboard", zerolog.Nop()), ok)
	r.GET("/expire", func(c *gin.Context) {
		_ = middleware.SessionFrom(c).Unauthorized(c.Request.Context())
	})
	return r
}

func loggedIn(t *testing.T, kv storage.KV, role models.UserRole) (string, *http.Cookie) {
	t.Helper()
	sid := ids.New()
	raw := `{"id":"u1","email":"ada@example.com","full_name":"Ada","role":"` + string(role) + `","is_active":true}`
	require.NoError(t, kv.SetAll(context.Background(), map[string]string{
		session.Key("test", sid, session.KeyAccessToken):  "acc",
		session.Key("test", sid, session.KeyRefreshToken): "ref",
		session.Key("test", sid, session.KeyUser):         raw,
	}, time.Hour))
	return sid, &http.Cookie{Name: "accountdesk_sid", Value: security.SignSessionID(secret, sid)}
}

func do(r *gin.Engine, method, path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequireSession(t *testing.T) {
	kv := storage.NewMemoryStore()
	r := newEngine(t, kv)

	t.Run("anonymous is sent to login with a fresh cookie", func(t *testing.T) {
		w := do(r, http.MethodGet, "/profile", nil)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		require.NotEmpty(t, w.Result().Cookies())
		sid, ok := security.VerifySessionID(secret, w.Result().Cookies()[0].Value)
		assert.True(t, ok)
		assert.True(t, ids.Valid(sid))
	})

	t.Run("user role cannot reach dashboard", func(t *testing.T) {
		_, cookie := loggedIn(t, kv, models.UserRoleUser)
		w := do(r, http.MethodGet, "/dashboard", cookie)
		assert.Equal(t, http.StatusSeeOther, w.Code)
		assert.Equal(t, "/profile", w.Header().Get("Location"))

		w = do(r, http.MethodGet, "/profile", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Result().Cookies())
	})

	t.Run("admin reaches dashboard", func(t *testing.T) {
		_, cookie := loggedIn(t, kv, models.UserRoleAdmin)
		w := do(r, http.MethodGet, "/dashboard", cookie)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tampered cookie is replaced", func(t *testing.T) {
		_, cookie := loggedIn(t, kv, models.UserRoleAdmin)
		cookie.Value += "x"
		w := do(r, http.MethodGet, "/dashboard", cookie)
		assert.Equal(t, "/login", w.Header().Get("Location"))
		assert.NotEmpty(t, w.Result().Cookies())
	})
}

func TestGuestOnly(t *testing.T) {
	kv := storage.NewMemoryStore()
	r := newEngine(t, kv)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/login", nil).Code)

	_, cookie := loggedIn(t, kv, models.UserRoleUser)
	w := do(r, http.MethodGet, "/login", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/profile", w.Header().Get("Location"))
}

func TestExpiredSessionSafetyNet(t *testing.T) {
	kv := storage.NewMemoryStore()
	r := newEngine(t, kv)
	sid, cookie := loggedIn(t, kv, models.UserRoleAdmin)

	w := do(r, http.MethodGet, "/expire", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	_, err := kv.Get(context.Background(), session.Key("test", sid, session.KeyAccessToken))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestInFlight(t *testing.T) {
	kv := storage.NewMemoryStore()
	r := newEngine(t, kv)
	sid, cookie := loggedIn(t, kv, models.UserRoleAdmin)
	ctx := context.Background()

	w := do(r, http.MethodPost, "/dashboard/confirm", cookie)
	assert.Equal(t, http.StatusOK, w.Code)

	lockKey := session.Key("test", sid, "inflight:/dashboard/confirm")
	acquired, err := kv.Acquire(ctx, lockKey, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired, "lock is released after the handler")

	w = do(r, http.MethodPost, "/dashboard/confirm", cookie)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	raw, err := kv.Get(ctx, session.Key("test", sid, session.KeyFlash))
	require.NoError(t, err)
	assert.Contains(t, raw, "already in progress")
}
