package apiclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/config"
	"accountdesk/portal/internal/models"
)

type fakeCredentials struct {
	token        string
	unauthorized int
}

func (f *fakeCredentials) PersistedAccessToken(context.Context) (string, error) {
	return f.token, nil
}

func (f *fakeCredentials) Unauthorized(context.Context) error {
	f.unauthorized++
	f.token = ""
	return nil
}

func newClient(t *testing.T, handler http.HandlerFunc) *apiclient.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := apiclient.New(config.UpstreamConfig{
		BaseURL:    srv.URL + "/api/",
		Timeout:    2 * time.Second,
		HealthPath: "/auth/login/",
	}, zerolog.Nop())
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func TestNew(t *testing.T) {
	_, err := apiclient.New(config.UpstreamConfig{BaseURL: "ftp://example.com"}, zerolog.Nop())
	assert.Error(t, err)
}

func TestLogin(t *testing.T) {
	t.Run("flat envelope", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/api/auth/login/", r.URL.Path)
			assert.Empty(t, r.Header.Get("Authorization"))

			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "ada@example.com", body["email"])
			assert.Equal(t, "secret123", body["password"])

			writeJSON(w, http.StatusOK, map[string]any{
				"access":  "acc",
				"refresh": "ref",
				"user":    map[string]any{"id": "u1", "email": "ada@example.com", "full_name": "Ada", "role": "admin"},
			})
		})

		result, err := client.Login(context.Background(), "ada@example.com", "secret123")
		require.NoError(t, err)
		assert.Equal(t, "acc", result.AccessToken)
		assert.Equal(t, "ref", result.RefreshToken)
		assert.Equal(t, models.UserRoleAdmin, result.User.Role)
	})

	t.Run("bad credentials are a plain error", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "No active account found with the given credentials"})
		})

		_, err := client.Login(context.Background(), "ada@example.com", "wrong")
		require.Error(t, err)
		assert.NotErrorIs(t, err, apiclient.ErrSessionExpired)
		assert.Equal(t, http.StatusUnauthorized, apiclient.StatusOf(err))
		assert.Equal(t, "No active account found with the given credentials", apiclient.Message(err, "fallback"))
	})

	t.Run("missing token is malformed", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, map[string]any{"user": map[string]any{"id": "u1"}})
		})

		_, err := client.Login(context.Background(), "a@b.c", "x")
		assert.ErrorIs(t, err, apiclient.ErrMalformedResponse)
	})
}

func TestRegisterNestedTokens(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/auth/register/", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Grace Hopper", body["full_name"])

		writeJSON(w, http.StatusCreated, map[string]any{
			"tokens": map[string]string{"access": "a", "refresh": "r"},
			"user":   map[string]any{"id": "u2", "email": "grace@example.com", "full_name": "Grace Hopper", "role": "user", "is_active": true},
		})
	})

	result, err := client.Register(context.Background(), "grace@example.com", "secret123", "Grace Hopper")
	require.NoError(t, err)
	assert.Equal(t, "a", result.AccessToken)
	assert.Equal(t, "r", result.RefreshToken)
	assert.Equal(t, "u2", result.User.ID)
	assert.True(t, result.User.IsActive)
}

func TestBoundSession(t *testing.T) {
	t.Run("attaches persisted bearer token", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			assert.Equal(t, "req-1", r.Header.Get("X-Request-Id"))
			writeJSON(w, http.StatusOK, map[string]any{"id": "u1", "email": "ada@example.com"})
		})

		ctx := apiclient.WithRequestID(context.Background(), "req-1")
		user, err := client.Bind(&fakeCredentials{token: "tok"}).Profile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "u1", user.ID)
	})

	t.Run("sends unauthenticated without a token", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, map[string]any{"results": []any{}, "count": 0})
		})

		_, err := client.Bind(&fakeCredentials{}).ListUsers(context.Background(), 1)
		require.NoError(t, err)
	})

	t.Run("401 resets the session", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Token is invalid or expired"})
		})

		creds := &fakeCredentials{token: "tok"}
		_, err := client.Bind(creds).ListUsers(context.Background(), 2)
		assert.ErrorIs(t, err, apiclient.ErrSessionExpired)
		assert.Equal(t, 1, creds.unauthorized)
		assert.Empty(t, creds.token)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "Cannot modify your own status."})
		})

		creds := &fakeCredentials{token: "tok"}
		_, err := client.Bind(creds).SetUserStatus(context.Background(), "u1", false)
		require.Error(t, err)
		assert.Equal(t, 0, creds.unauthorized)
		assert.Equal(t, "Cannot modify your own status.", apiclient.Message(err, "Action failed"))
	})

	t.Run("list users sends page", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/auth/admin/users/", r.URL.Path)
			assert.Equal(t, "3", r.URL.Query().Get("page"))
			writeJSON(w, http.StatusOK, map[string]any{
				"count":   25,
				"results": []map[string]any{{"id": "u21", "full_name": "Z", "is_active": true}},
			})
		})

		page, err := client.Bind(&fakeCredentials{token: "tok"}).ListUsers(context.Background(), 3)
		require.NoError(t, err)
		assert.Equal(t, 25, page.Count)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "u21", page.Results[0].ID)
	})

	t.Run("status toggle", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPatch, r.Method)
			assert.Equal(t, "/api/auth/admin/users/u1/status/", r.URL.Path)

			var body map[string]bool
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.False(t, body["is_active"])
			writeJSON(w, http.StatusOK, map[string]any{"is_active": false})
		})

		active, err := client.Bind(&fakeCredentials{token: "tok"}).SetUserStatus(context.Background(), "u1", false)
		require.NoError(t, err)
		assert.False(t, active)
	})

	t.Run("change password accepts empty body", func(t *testing.T) {
		client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/auth/profile/change-password/", r.URL.Path)
			w.WriteHeader(http.StatusNoContent)
		})

		err := client.Bind(&fakeCredentials{token: "tok"}).ChangePassword(context.Background(), apiclient.PasswordChange{
			OldPassword: "old12345",
			NewPassword: "new12345",
		})
		assert.NoError(t, err)
	})
}

func TestUnavailable(t *testing.T) {
	client, err := apiclient.New(config.UpstreamConfig{
		BaseURL: "http://127.0.0.1:1",
		Timeout: time.Second,
	}, zerolog.Nop())
	require.NoError(t, err)

	_, err = client.Login(context.Background(), "a@b.c", "x")
	assert.ErrorIs(t, err, apiclient.ErrUnavailable)
	assert.Equal(t, "Login failed", apiclient.Message(err, "Login failed"))
}

func TestPing(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
	assert.NoError(t, client.Ping(context.Background()))

	broken := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	assert.ErrorIs(t, broken.Ping(context.Background()), apiclient.ErrUnavailable)
}
