// Package session is the per-browser source of truth for authentication.
//
// Each request builds its own Mirror for the browser-session id carried in the
// cookie and hydrates it from persisted storage. The three persisted keys
// (accessToken, refreshToken, user) are always written together and cleared
// together.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/ids"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/security"
	"accountdesk/portal/internal/storage"
)

const (
	KeyAccessToken  = "accessToken"
	KeyRefreshToken = "refreshToken"
	KeyUser         = "user"
	KeyModal        = "modal"
	KeyFlash        = "flash"
)

var ErrNotAuthenticated = errors.New("session: not authenticated")

// Authenticator performs the public login and registration calls.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (apiclient.AuthResult, error)
	Register(ctx context.Context, email, password, fullName string) (apiclient.AuthResult, error)
}

type Store interface {
	Hydrate(ctx context.Context) error
	Loading() bool
	IsAuthenticated() bool
	User() (models.User, bool)
	Login(ctx context.Context, email, password string) (models.User, error)
	Register(ctx context.Context, email, password, fullName string) (models.User, error)
	Logout(ctx context.Context) error
	ResyncUser(ctx context.Context, user models.User) error
	// ExpiresAt is when the refresh token, and with it the session, runs out.
	// It is false for an anonymous session or an opaque token.
	ExpiresAt() (time.Time, bool)

	// PersistedAccessToken and Unauthorized make a Store usable as
	// apiclient.Credentials.
	PersistedAccessToken(ctx context.Context) (string, error)
	Unauthorized(ctx context.Context) error
	Expired() bool

	AddFlash(ctx context.Context, kind FlashKind, message string) error
	TakeFlash(ctx context.Context) (*Flash, error)

	ID() string
	Key(name string) string
}

type Options struct {
	KeyPrefix string
	// MaxTTL caps how long persisted keys live; the refresh token's own
	// expiry shortens it further.
	MaxTTL time.Duration
	// OnRotate is called with the new browser-session id after a login or
	// registration moves the session to it.
	OnRotate func(sid string)
}

// Mirror is the Store backed by a storage.KV.
type Mirror struct {
	kv   storage.KV
	auth Authenticator
	sid  string
	opts Options
	log  zerolog.Logger
	now  func() time.Time

	loading bool
	expired bool
	state   models.Session
}

var _ Store = (*Mirror)(nil)

func New(kv storage.KV, auth Authenticator, sid string, opts Options, log zerolog.Logger) *Mirror {
	return &Mirror{
		kv:      kv,
		auth:    auth,
		sid:     sid,
		opts:    opts,
		log:     log.With().Str("component", "session").Logger(),
		now:     time.Now,
		loading: true,
	}
}

// Key namespaces name under this browser session.
func Key(prefix, sid, name string) string {
	return fmt.Sprintf("%s:session:%s:%s", prefix, sid, name)
}

func (m *Mirror) Key(name string) string {
	return Key(m.opts.KeyPrefix, m.sid, name)
}

func (m *Mirror) ID() string {
	return m.sid
}

func (m *Mirror) authKeys() []string {
	return []string{m.Key(KeyAccessToken), m.Key(KeyRefreshToken), m.Key(KeyUser)}
}

// Hydrate loads the persisted session into memory. A user record that does
// not parse clears every persisted key and leaves the session empty.
func (m *Mirror) Hydrate(ctx context.Context) error {
	defer func() { m.loading = false }()
	m.state = models.Session{}

	access, err := m.get(ctx, KeyAccessToken)
	if err != nil {
		return err
	}
	rawUser, err := m.get(ctx, KeyUser)
	if err != nil {
		return err
	}
	if access == "" || rawUser == "" {
		return nil
	}

	var user models.User
	if err := json.Unmarshal([]byte(rawUser), &user); err != nil || user.ID == "" {
		m.log.Warn().Err(err).Str("sid", m.sid).Msg("discarding malformed persisted user")
		if err := m.kv.Delete(ctx, m.authKeys()...); err != nil {
			return fmt.Errorf("clear malformed session: %w", err)
		}
		return nil
	}

	refresh, err := m.get(ctx, KeyRefreshToken)
	if err != nil {
		return err
	}

	m.state = models.Session{AccessToken: access, RefreshToken: refresh, User: &user}
	return nil
}

func (m *Mirror) get(ctx context.Context, name string) (string, error) {
	value, err := m.kv.Get(ctx, m.Key(name))
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return value, nil
}

func (m *Mirror) Loading() bool {
	return m.loading
}

func (m *Mirror) IsAuthenticated() bool {
	return m.state.IsAuthenticated()
}

func (m *Mirror) User() (models.User, bool) {
	if m.state.User == nil {
		return models.User{}, false
	}
	return *m.state.User, true
}

func (m *Mirror) ExpiresAt() (time.Time, bool) {
	if !m.IsAuthenticated() {
		return time.Time{}, false
	}
	exp, err := security.TokenExpiry(m.state.RefreshToken)
	if err != nil {
		return time.Time{}, false
	}
	return exp, true
}

func (m *Mirror) Expired() bool {
	return m.expired
}

func (m *Mirror) Login(ctx context.Context, email, password string) (models.User, error) {
	result, err := m.auth.Login(ctx, email, password)
	if err != nil {
		return models.User{}, err
	}
	if err := m.establish(ctx, result); err != nil {
		return models.User{}, err
	}
	return result.User, nil
}

func (m *Mirror) Register(ctx context.Context, email, password, fullName string) (models.User, error) {
	result, err := m.auth.Register(ctx, email, password, fullName)
	if err != nil {
		return models.User{}, err
	}
	if err := m.establish(ctx, result); err != nil {
		return models.User{}, err
	}
	return result.User, nil
}

func (m *Mirror) establish(ctx context.Context, result apiclient.AuthResult) error {
	user := result.User
	next := models.Session{
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		User:         &user,
	}
	if err := m.rotate(ctx, next); err != nil {
		return err
	}
	m.state = next
	m.expired = false
	m.loading = false
	return nil
}

// rotate persists s under a fresh browser-session id and drops everything kept
// under the old one, so an id handed out before login never authenticates.
func (m *Mirror) rotate(ctx context.Context, s models.Session) error {
	prev := m.sid
	m.sid = ids.New()
	if err := m.persist(ctx, s); err != nil {
		m.sid = prev
		return err
	}

	stale := make([]string, 0, 5)
	for _, name := range []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyModal, KeyFlash} {
		stale = append(stale, Key(m.opts.KeyPrefix, prev, name))
	}
	if err := m.kv.Delete(ctx, stale...); err != nil {
		m.log.Warn().Err(err).Str("sid", prev).Msg("clear pre-login session failed")
	}

	if m.opts.OnRotate != nil {
		m.opts.OnRotate(m.sid)
	}
	return nil
}

func (m *Mirror) persist(ctx context.Context, s models.Session) error {
	rawUser, err := json.Marshal(s.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	ttl := security.PersistTTL(s.RefreshToken, m.opts.MaxTTL, m.now())
	values := map[string]string{
		m.Key(KeyAccessToken):  s.AccessToken,
		m.Key(KeyRefreshToken): s.RefreshToken,
		m.Key(KeyUser):         string(rawUser),
	}
	if err := m.kv.SetAll(ctx, values, ttl); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// Logout clears the session without contacting the upstream. Calling it on
// an empty session is a no-op.
func (m *Mirror) Logout(ctx context.Context) error {
	return m.clear(ctx)
}

// Unauthorized is the global 401 handler: the session is cleared and marked
// expired so the request ends at the login page.
func (m *Mirror) Unauthorized(ctx context.Context) error {
	m.expired = true
	m.log.Info().Str("sid", m.sid).Msg("upstream rejected session token")
	return m.clear(ctx)
}

func (m *Mirror) clear(ctx context.Context) error {
	m.state = models.Session{}
	m.loading = false
	keys := append(m.authKeys(), m.Key(KeyModal))
	if err := m.kv.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

// ResyncUser replaces the cached user record with the upstream's copy after a
// profile update. Tokens are rewritten alongside so all keys share one TTL.
func (m *Mirror) ResyncUser(ctx context.Context, user models.User) error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	next := m.state
	next.User = &user
	if err := m.persist(ctx, next); err != nil {
		return err
	}
	m.state = next
	return nil
}

// PersistedAccessToken reads the token from storage rather than memory, so a
// session cleared by a concurrent request stops authorising immediately.
func (m *Mirror) PersistedAccessToken(ctx context.Context) (string, error) {
	return m.get(ctx, KeyAccessToken)
}
