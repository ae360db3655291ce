package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/config"
	"accountdesk/portal/internal/ids"
	"accountdesk/portal/internal/security"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/storage"
)

const (
	sessionContextKey  = "session"
	upstreamContextKey = "upstream"
)

type SessionDeps struct {
	Config config.SessionConfig
	Secure bool
	KV     storage.KV
	Client *apiclient.Client
	Log    zerolog.Logger
}

// Session resolves the browser-session cookie, hydrates the session mirror and
// binds the upstream client to it. A cookie with a bad signature is replaced.
//
// Handlers are expected to redirect to /login themselves when a bound call
// reports ErrSessionExpired; if one did not write a response, the redirect
// happens here.
func Session(deps SessionDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := resolveSessionID(c, deps)
		opts := session.Options{
			KeyPrefix: deps.Config.KeyPrefix,
			MaxTTL:    deps.Config.TTL,
			OnRotate:  func(next string) { setSessionCookie(c, deps, next) },
		}

		store := session.New(deps.KV, deps.Client, sid, opts, deps.Log)
		if err := store.Hydrate(c.Request.Context()); err != nil {
			deps.Log.Error().Err(err).Str("sid", sid).Msg("session hydrate failed")
			c.AbortWithStatus(http.StatusServiceUnavailable)
			_, _ = c.Writer.WriteString("Session storage is unavailable. Please try again shortly.")
			return
		}

		c.Set(sessionContextKey, store)
		c.Set(upstreamContextKey, deps.Client.Bind(store))

		c.Next()

		if store.Expired() && !c.Writer.Written() {
			c.Redirect(http.StatusSeeOther, "/login")
		}
	}
}

func resolveSessionID(c *gin.Context, deps SessionDeps) string {
	if raw, err := c.Cookie(deps.Config.CookieName); err == nil {
		if sid, ok := security.VerifySessionID(deps.Config.Secret, raw); ok && ids.Valid(sid) {
			return sid
		}
	}

	sid := ids.New()
	setSessionCookie(c, deps, sid)
	return sid
}

func setSessionCookie(c *gin.Context, deps SessionDeps, sid string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(
		deps.Config.CookieName,
		security.SignSessionID(deps.Config.Secret, sid),
		0,
		"/",
		"",
		deps.Secure,
		true,
	)
}

func lookupSession(c *gin.Context) (session.Store, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	store, ok := v.(session.Store)
	return store, ok
}

// SessionFrom returns the store installed by Session. It panics when the
// middleware is missing from the chain.
func SessionFrom(c *gin.Context) session.Store {
	return c.MustGet(sessionContextKey).(session.Store)
}

// UpstreamFrom returns the upstream client bound to this request's session.
func UpstreamFrom(c *gin.Context) *apiclient.Session {
	return c.MustGet(upstreamContextKey).(*apiclient.Session)
}
