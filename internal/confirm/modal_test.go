package confirm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"accountdesk/portal/internal/confirm"
	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/storage"
)

var grace = models.User{ID: "u2", FullName: "Grace Hopper", IsActive: true}

func newModal() *confirm.Modal {
	return confirm.New(storage.NewMemoryStore(), "test:session:sid:modal", time.Minute)
}

func TestForAction(t *testing.T) {
	ban := confirm.ForAction(models.AdminActionBan, grace)
	assert.Equal(t, "Ban User", ban.Title)
	assert.Equal(t, "Ban User", ban.ConfirmLabel)
	assert.Equal(t, confirm.StyleDanger, ban.Style)
	assert.Equal(t, "Are you sure you want to ban Grace Hopper? They will no longer be able to access the system.", ban.Message)

	activate := confirm.ForAction(models.AdminActionActivate, grace)
	assert.Equal(t, "Activate User", activate.Title)
	assert.Equal(t, confirm.StyleSuccess, activate.Style)
	assert.Equal(t, "Are you sure you want to activate Grace Hopper? They will regain access to the system.", activate.Message)
}

func TestConfirmInvokesOnceThenCloses(t *testing.T) {
	ctx := context.Background()
	modal := newModal()

	pending, err := modal.Open(ctx, models.AdminActionBan, grace, 2)
	require.NoError(t, err)

	calls := 0
	fn := func(_ context.Context, p models.PendingAction) error {
		calls++
		assert.Equal(t, models.AdminActionBan, p.Action)
		assert.Equal(t, "u2", p.Target.ID)
		assert.Equal(t, 2, p.Page)
		return nil
	}

	require.NoError(t, modal.Confirm(ctx, pending.Token, fn))
	assert.Equal(t, 1, calls)

	current, err := modal.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	assert.ErrorIs(t, modal.Confirm(ctx, pending.Token, fn), confirm.ErrNoPending)
	assert.Equal(t, 1, calls)
}

func TestConfirmClosesWhenCallbackFails(t *testing.T) {
	ctx := context.Background()
	modal := newModal()

	pending, err := modal.Open(ctx, models.AdminActionActivate, grace, 1)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = modal.Confirm(ctx, pending.Token, func(context.Context, models.PendingAction) error { return boom })
	assert.ErrorIs(t, err, boom)

	current, err := modal.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
}

func TestCancelInvokesNothing(t *testing.T) {
	for _, reason := range []confirm.CancelReason{confirm.CancelButton, confirm.CancelBackdrop, confirm.CancelEscape} {
		t.Run(string(reason), func(t *testing.T) {
			ctx := context.Background()
			modal := newModal()

			pending, err := modal.Open(ctx, models.AdminActionBan, grace, 1)
			require.NoError(t, err)
			require.NoError(t, modal.Cancel(ctx, pending.Token, reason))

			calls := 0
			err = modal.Confirm(ctx, pending.Token, func(context.Context, models.PendingAction) error {
				calls++
				return nil
			})
			assert.ErrorIs(t, err, confirm.ErrNoPending)
			assert.Zero(t, calls)
		})
	}
}

func TestStaleToken(t *testing.T) {
	ctx := context.Background()
	modal := newModal()

	first, err := modal.Open(ctx, models.AdminActionBan, grace, 1)
	require.NoError(t, err)
	second, err := modal.Open(ctx, models.AdminActionActivate, grace, 1)
	require.NoError(t, err)

	require.NoError(t, modal.Cancel(ctx, first.Token, confirm.CancelEscape))
	current, err := modal.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, second.Token, current.Token)

	calls := 0
	err = modal.Confirm(ctx, first.Token, func(context.Context, models.PendingAction) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, confirm.ErrTokenMismatch)
	assert.Zero(t, calls)

	current, err = modal.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current, "a stale confirm keeps the newer dialog open")
	assert.Equal(t, second.Token, current.Token)

	err = modal.Confirm(ctx, second.Token, func(_ context.Context, p models.PendingAction) error {
		calls++
		assert.Equal(t, models.AdminActionActivate, p.Action)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestOpenRejectsUnknownAction(t *testing.T) {
	_, err := newModal().Open(context.Background(), models.AdminAction("delete"), grace, 1)
	assert.ErrorIs(t, err, confirm.ErrInvalidAction)
}

func TestCancelRejectsUnknownReason(t *testing.T) {
	assert.Error(t, newModal().Cancel(context.Background(), "x", confirm.CancelReason("swipe")))
}
