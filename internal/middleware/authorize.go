package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"accountdesk/portal/internal/models"
)

type Decision int

const (
	DecisionAllow Decision = iota
	// DecisionLoading renders a neutral placeholder; nothing is redirected
	// while the session is still being restored.
	DecisionLoading
	DecisionLogin
	// DecisionProfile sends an authenticated user without the required role
	// to their profile. There is no forbidden page.
	DecisionProfile
)

func (d Decision) String() string {
	switch d {
	case DecisionAllow:
		return "allow"
	case DecisionLoading:
		return "loading"
	case DecisionLogin:
		return "login"
	case DecisionProfile:
		return "profile"
	}
	return "unknown"
}

type SessionView interface {
	Loading() bool
	IsAuthenticated() bool
	User() (models.User, bool)
}

// Decide gates a view. An empty allow-list admits any authenticated role.
func Decide(view SessionView, allowed ...models.UserRole) Decision {
	if view.Loading() {
		return DecisionLoading
	}
	if !view.IsAuthenticated() {
		return DecisionLogin
	}
	if len(allowed) == 0 {
		return DecisionAllow
	}
	user, _ := view.User()
	for _, role := range allowed {
		if user.Role == role {
			return DecisionAllow
		}
	}
	return DecisionProfile
}

func RequireSession(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch Decide(SessionFrom(c), roles...) {
		case DecisionAllow:
			c.Next()
		case DecisionLoading:
			c.HTML(http.StatusOK, "loading.html", nil)
			c.Abort()
		case DecisionLogin:
			c.Redirect(http.StatusSeeOther, "/login")
			c.Abort()
		case DecisionProfile:
			c.Redirect(http.StatusSeeOther, "/profile")
			c.Abort()
		}
	}
}

// GuestOnly keeps authenticated users off the login and signup pages.
func GuestOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SessionFrom(c).IsAuthenticated() {
			c.Redirect(http.StatusSeeOther, "/profile")
			c.Abort()
			return
		}
		c.Next()
	}
}
