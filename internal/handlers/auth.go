package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/middleware"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/views"
)

const (
	loginFallback    = "Invalid email or password"
	signupFallback   = "Registration failed. Please try again."
	signupSuccess    = "Account created successfully!"
	credentialsError = "Please enter a valid email and password."
)

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type signupForm struct {
	FullName string `form:"full_name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

var signupMessages = map[string]string{
	"full_name": "Full name is required.",
	"email":     "Enter a valid email address.",
	"password":  "Password is required.",
}

type loginPage struct {
	views.Layout
	Email string
	Error string
}

type signupPage struct {
	views.Layout
	FullName string
	Email    string
	Error    string
}

func (h HandlerSet) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", loginPage{Layout: h.layout(c, "Login", "login")})
}

// Login is a public call: a rejected password is shown on the form and has
// no effect on any session.
func (h HandlerSet) Login(c *gin.Context) {
	var form loginForm
	_ = c.ShouldBind(&form)
	form.Email = strings.TrimSpace(form.Email)

	page := loginPage{Layout: h.layout(c, "Login", "login"), Email: form.Email}
	if err := h.validate.Struct(form); err != nil {
		page.Error = credentialsError
		c.HTML(http.StatusBadRequest, "login.html", page)
		return
	}

	user, err := middleware.SessionFrom(c).Login(c.Request.Context(), form.Email, form.Password)
	if err != nil {
		h.log.Info().Err(err).Str("email", form.Email).Msg("login failed")
		page.Error = apiclient.Message(err, loginFallback)
		c.HTML(failureStatus(err), "login.html", page)
		return
	}

	h.log.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("user logged in")
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h HandlerSet) SignupPage(c *gin.Context) {
	c.HTML(http.StatusOK, "signup.html", signupPage{Layout: h.layout(c, "Sign Up", "signup")})
}

func (h HandlerSet) Signup(c *gin.Context) {
	var form signupForm
	_ = c.ShouldBind(&form)
	form.Email = strings.TrimSpace(form.Email)
	form.FullName = strings.TrimSpace(form.FullName)

	page := signupPage{Layout: h.layout(c, "Sign Up", "signup"), FullName: form.FullName, Email: form.Email}
	if err := h.validate.Struct(form); err != nil {
		page.Error = violation(err, signupMessages, signupFallback)
		c.HTML(http.StatusBadRequest, "signup.html", page)
		return
	}

	store := middleware.SessionFrom(c)
	user, err := store.Register(c.Request.Context(), form.Email, form.Password, form.FullName)
	if err != nil {
		h.log.Info().Err(err).Str("email", form.Email).Msg("registration failed")
		page.Error = apiclient.Message(err, signupFallback, "email", "password", "full_name")
		c.HTML(failureStatus(err), "signup.html", page)
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("user registered")
	h.flash(c, session.FlashSuccess, signupSuccess)
	c.Redirect(http.StatusSeeOther, "/profile")
}

// Logout only clears local state; tokens are not revoked upstream.
func (h HandlerSet) Logout(c *gin.Context) {
	store := middleware.SessionFrom(c)
	if err := store.Logout(c.Request.Context()); err != nil {
		h.log.Error().Err(err).Str("sid", store.ID()).Msg("logout failed")
	}
	c.Redirect(http.StatusSeeOther, "/login")
}
