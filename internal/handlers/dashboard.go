package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/confirm"
	"accountdesk/portal/internal/directory"
	"accountdesk/portal/internal/middleware"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/views"
)

const (
	fetchUsersFailed = "Failed to fetch users"
	actionFailed     = "Action failed"
	dialogClosed     = "That confirmation is no longer open."
	selfStatusDenied = "Cannot modify your own status."
)

type dashboardPage struct {
	views.Layout
	Page    directory.Page
	Self    string
	Pending *models.PendingAction
	Dialog  *confirm.Dialog
}

func (h HandlerSet) modal(c *gin.Context) *confirm.Modal {
	return confirm.New(h.store, middleware.SessionFrom(c).Key(session.KeyModal), modalTTL)
}

func pageParam(raw string) int {
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func dashboardURL(page int) string {
	return fmt.Sprintf("/dashboard?page=%d", page)
}

func (h HandlerSet) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	page := pageParam(c.Query("page"))

	l := h.layout(c, "Dashboard", "dashboard")
	data := dashboardPage{Page: directory.Page{Number: page}}
	if l.User != nil {
		data.Self = l.User.ID
	}

	fetched, err := directory.Fetch(ctx, middleware.UpstreamFrom(c), page)
	if sessionEnded(c, err) {
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("page", page).Msg("fetch users failed")
		l.Flash = &session.Flash{Kind: session.FlashError, Message: fetchUsersFailed}
	} else {
		data.Page = fetched
	}

	pending, err := h.modal(c).Current(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("read pending action failed")
	}
	if pending != nil {
		dialog := confirm.ForAction(pending.Action, pending.Target)
		data.Pending = pending
		data.Dialog = &dialog
		l.ModalOpen = true
	}

	data.Layout = l
	c.HTML(http.StatusOK, "dashboard.html", data)
}

// OpenStatusDialog opens the confirmation step for a row's ban or activate
// button. The target is looked up on the page it was shown on, so the dialog
// reflects the upstream's current state.
func (h HandlerSet) OpenStatusDialog(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	page := pageParam(c.PostForm("page"))

	if self, ok := middleware.SessionFrom(c).User(); ok && self.ID == id {
		h.flash(c, session.FlashError, selfStatusDenied)
		c.Redirect(http.StatusSeeOther, dashboardURL(page))
		return
	}

	fetched, err := directory.Fetch(ctx, middleware.UpstreamFrom(c), page)
	if sessionEnded(c, err) {
		return
	}
	if err != nil {
		h.log.Error().Err(err).Int("page", page).Msg("fetch users failed")
		h.flash(c, session.FlashError, fetchUsersFailed)
		c.Redirect(http.StatusSeeOther, dashboardURL(page))
		return
	}

	var target *models.User
	for i := range fetched.Users {
		if fetched.Users[i].ID == id {
			target = &fetched.Users[i]
			break
		}
	}
	if target == nil {
		h.flash(c, session.FlashError, "User not found")
		c.Redirect(http.StatusSeeOther, dashboardURL(page))
		return
	}

	if _, err := h.modal(c).Open(ctx, models.ActionFor(*target), *target, page); err != nil {
		h.log.Error().Err(err).Str("target_id", id).Msg("open confirmation failed")
		h.flash(c, session.FlashError, actionFailed)
	}
	c.Redirect(http.StatusSeeOther, dashboardURL(page))
}

// ConfirmStatus commits the open dialog. The dialog is closed whatever the
// outcome and the page is refetched by the redirect.
func (h HandlerSet) ConfirmStatus(c *gin.Context) {
	ctx := c.Request.Context()
	upstream := middleware.UpstreamFrom(c)
	actor, _ := middleware.SessionFrom(c).User()
	page := 1

	err := h.modal(c).Confirm(ctx, c.PostForm("token"), func(ctx context.Context, pending models.PendingAction) error {
		page = pending.Page
		action, err := directory.Toggle(ctx, upstream, pending.Target)
		h.recordAudit(c, actor, pending, action, err)
		if err != nil {
			return err
		}
		h.flash(c, session.FlashSuccess, directory.SuccessMessage(action, pending.Target))
		return nil
	})
	if sessionEnded(c, err) {
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, confirm.ErrNoPending), errors.Is(err, confirm.ErrTokenMismatch):
		h.flash(c, session.FlashInfo, dialogClosed)
	default:
		h.log.Warn().Err(err).Msg("status change failed")
		h.flash(c, session.FlashError, apiclient.DetailOr(err, actionFailed))
	}
	c.Redirect(http.StatusSeeOther, dashboardURL(page))
}

// CancelStatus closes the dialog from its cancel button, a backdrop click or
// the Escape key. Nothing is sent upstream.
func (h HandlerSet) CancelStatus(c *gin.Context) {
	reason := confirm.CancelReason(c.PostForm("reason"))
	if !reason.Valid() {
		reason = confirm.CancelButton
	}
	if err := h.modal(c).Cancel(c.Request.Context(), c.PostForm("token"), reason); err != nil {
		h.log.Warn().Err(err).Msg("cancel confirmation failed")
	}
	c.Redirect(http.StatusSeeOther, dashboardURL(pageParam(c.PostForm("page"))))
}

// recordAudit takes the actor captured before the upstream call, since a 401
// clears the session mid-request.
func (h HandlerSet) recordAudit(c *gin.Context, actor models.User, pending models.PendingAction, action models.AdminAction, err error) {
	event := models.AuditEvent{
		ActorID:     actor.ID,
		ActorEmail:  actor.Email,
		TargetID:    pending.Target.ID,
		TargetEmail: pending.Target.Email,
		Action:      action,
		Outcome:     models.AuditOutcomeSucceeded,
		RequestID:   middleware.RequestIDFrom(c),
	}
	if err != nil {
		event.Outcome = models.AuditOutcomeFailed
		event.Detail = apiclient.Message(err, err.Error())
	}

	if err := h.audit.Publish(context.WithoutCancel(c.Request.Context()), event); err != nil {
		h.log.Error().Err(err).Str("target_id", event.TargetID).Msg("publish audit event failed")
	}
}
