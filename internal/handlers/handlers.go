package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/audit"
	"accountdesk/portal/internal/config"
	"accountdesk/portal/internal/middleware"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/storage"
	"accountdesk/portal/internal/views"
)

// modalTTL bounds how long an abandoned confirmation dialog stays open.
const modalTTL = 15 * time.Minute

// UpstreamStatus reports the outcome of the last background upstream check.
type UpstreamStatus interface {
	UpstreamHealthy() bool
}

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	store          storage.Store
	client         *apiclient.Client
	audit          *audit.Publisher
	upstreamStatus UpstreamStatus
	validate       *validator.Validate
}

func NewHandlerSet(log zerolog.Logger, cfg *config.AppConfig, store storage.Store, client *apiclient.Client, publisher *audit.Publisher) HandlerSet {
	return HandlerSet{
		log:      log,
		cfg:      cfg,
		store:    store,
		client:   client,
		audit:    publisher,
		validate: newValidator(),
	}
}

// WithUpstreamStatus makes /healthz report the last scheduled check instead of
// calling the upstream on every request.
func (h HandlerSet) WithUpstreamStatus(status UpstreamStatus) HandlerSet {
	h.upstreamStatus = status
	return h
}

func (h HandlerSet) Register(router *gin.Engine) {
	router.StaticFS("/static", http.FS(views.Static()))
	router.GET("/healthz", h.Health)

	app := router.Group("")
	app.Use(middleware.Session(middleware.SessionDeps{
		Config: h.cfg.Session,
		Secure: h.cfg.IsProduction(),
		KV:     h.store,
		Client: h.client,
		Log:    h.log,
	}))

	app.GET("/", func(c *gin.Context) { c.Redirect(http.StatusSeeOther, "/profile") })
	app.POST("/logout", h.Logout)

	guest := app.Group("", middleware.GuestOnly())
	{
		guest.GET("/login", h.LoginPage)
		guest.POST("/login", h.Login)
		guest.GET("/signup", h.SignupPage)
		guest.POST("/signup", h.Signup)
	}

	member := app.Group("", middleware.RequireSession())
	{
		member.GET("/profile", h.Profile)
		member.POST("/profile", h.UpdateProfile)
		member.POST("/profile/password", h.ChangePassword)
	}

	admin := app.Group("/dashboard", middleware.RequireSession(models.UserRoleAdmin))
	{
		busy := middleware.InFlight(h.store, h.cfg.Session.LockTTL, "/dashboard", h.log)
		admin.GET("", h.Dashboard)
		admin.POST("/users/:id/status", busy, h.OpenStatusDialog)
		admin.POST("/confirm", busy, h.ConfirmStatus)
		admin.POST("/cancel", h.CancelStatus)
	}
}

// layout builds the chrome for a page and consumes the pending toast.
func (h HandlerSet) layout(c *gin.Context, title, active string) views.Layout {
	store := middleware.SessionFrom(c)
	l := views.Layout{Title: title, Active: active}
	if user, ok := store.User(); ok {
		l.User = &user
	}
	flash, err := store.TakeFlash(c.Request.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("read flash failed")
	}
	l.Flash = flash
	return l
}

func (h HandlerSet) flash(c *gin.Context, kind session.FlashKind, message string) {
	if err := middleware.SessionFrom(c).AddFlash(c.Request.Context(), kind, message); err != nil {
		h.log.Warn().Err(err).Str("message", message).Msg("store flash failed")
	}
}

// sessionEnded redirects to the login page when a bound call found the
// session expired. The session has already been cleared by then.
func sessionEnded(c *gin.Context, err error) bool {
	if !errors.Is(err, apiclient.ErrSessionExpired) {
		return false
	}
	c.Redirect(http.StatusSeeOther, "/login")
	return true
}

// failureStatus maps an upstream failure onto the status of the re-rendered form.
func failureStatus(err error) int {
	if errors.Is(err, apiclient.ErrUnavailable) {
		return http.StatusBadGateway
	}
	if status := apiclient.StatusOf(err); status >= 400 && status < 500 {
		return status
	}
	return http.StatusBadRequest
}
