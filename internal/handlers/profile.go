package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/middleware"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/views"
)

type profileForm struct {
	FullName string `form:"full_name" validate:"required"`
	Email    string `form:"email" validate:"required,email"`
}

type passwordForm struct {
	OldPassword     string `form:"old_password" validate:"required"`
	NewPassword     string `form:"new_password" validate:"required,min=8,letter,digit"`
	ConfirmPassword string `form:"confirm_password" validate:"eqfield=NewPassword"`
}

var profileMessages = map[string]string{
	"full_name": "Full name is required.",
	"email":     "Enter a valid email address.",
}

var passwordMessages = map[string]string{
	"old_password":          "Current password is required.",
	"new_password.required": "New password is required.",
	"new_password.min":      "Password must be at least 8 characters",
	"new_password.letter":   "Password must contain at least one letter",
	"new_password.digit":    "Password must contain at least one number",
	"confirm_password":      "Passwords do not match",
}

type profilePage struct {
	views.Layout
	Form          profileForm
	ProfileError  string
	PasswordError string
	// SessionExpires is empty when the refresh token carries no expiry.
	SessionExpires string
}

// Profile refreshes the cached user from the upstream before rendering. A
// failed refresh falls back to the cached copy.
func (h HandlerSet) Profile(c *gin.Context) {
	ctx := c.Request.Context()
	store := middleware.SessionFrom(c)

	fresh, err := middleware.UpstreamFrom(c).Profile(ctx)
	if sessionEnded(c, err) {
		return
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("profile refresh failed")
	} else if cached, _ := store.User(); !sameUser(cached, fresh) {
		if err := store.ResyncUser(ctx, fresh); err != nil {
			h.log.Warn().Err(err).Msg("resync user failed")
		}
	}

	h.renderProfile(c, http.StatusOK, nil, "", "")
}

func (h HandlerSet) renderProfile(c *gin.Context, status int, form *profileForm, profileErr, passwordErr string) {
	page := profilePage{
		Layout:        h.layout(c, "Profile", "profile"),
		ProfileError:  profileErr,
		PasswordError: passwordErr,
	}
	if exp, ok := middleware.SessionFrom(c).ExpiresAt(); ok {
		page.SessionExpires = exp.Local().Format("Jan 2, 2006 3:04 PM")
	}
	if form != nil {
		page.Form = *form
	} else if page.User != nil {
		page.Form = profileForm{FullName: page.User.FullName, Email: page.User.Email}
	}
	c.HTML(status, "profile.html", page)
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	var form profileForm
	_ = c.ShouldBind(&form)
	form.FullName = strings.TrimSpace(form.FullName)
	form.Email = strings.TrimSpace(form.Email)

	if err := h.validate.Struct(form); err != nil {
		h.renderProfile(c, http.StatusBadRequest, &form, violation(err, profileMessages, "Failed to update profile"), "")
		return
	}

	ctx := c.Request.Context()
	user, err := middleware.UpstreamFrom(c).UpdateProfile(ctx, apiclient.ProfileUpdate{
		FullName: form.FullName,
		Email:    form.Email,
	})
	if sessionEnded(c, err) {
		return
	}
	if err != nil {
		h.renderProfile(c, failureStatus(err), &form, apiclient.Message(err, "Failed to update profile", "email", "full_name"), "")
		return
	}

	// The upstream's copy carries computed fields the form does not.
	if err := middleware.SessionFrom(c).ResyncUser(ctx, user); err != nil {
		h.log.Error().Err(err).Msg("resync user after update failed")
	}
	h.flash(c, session.FlashSuccess, "Profile updated successfully")
	c.Redirect(http.StatusSeeOther, "/profile")
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	var form passwordForm
	_ = c.ShouldBind(&form)

	if err := h.validate.Struct(form); err != nil {
		h.renderProfile(c, http.StatusBadRequest, nil, "", violation(err, passwordMessages, "Failed to change password"))
		return
	}

	err := middleware.UpstreamFrom(c).ChangePassword(c.Request.Context(), apiclient.PasswordChange{
		OldPassword: form.OldPassword,
		NewPassword: form.NewPassword,
	})
	if sessionEnded(c, err) {
		return
	}
	if err != nil {
		h.renderProfile(c, failureStatus(err), nil, "", apiclient.Message(err, "Failed to change password", "old_password", "new_password"))
		return
	}

	h.flash(c, session.FlashSuccess, "Password changed successfully")
	c.Redirect(http.StatusSeeOther, "/profile")
}

func sameUser(a, b models.User) bool {
	if a.ID != b.ID || a.Email != b.Email || a.FullName != b.FullName || a.Role != b.Role || a.IsActive != b.IsActive {
		return false
	}
	return sameTime(a.LastLogin, b.LastLogin) && sameTime(a.DateJoined, b.DateJoined)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
