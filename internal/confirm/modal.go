// Package confirm holds the two-step commit used before an admin changes a
// user's status. One dialog can be open per browser session.
package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"accountdesk/portal/internal/models"
	"accountdesk/portal/internal/storage"
)

var (
	ErrNoPending     = errors.New("confirm: no pending action")
	ErrTokenMismatch = errors.New("confirm: stale dialog token")
	ErrInvalidAction = errors.New("confirm: invalid action")
)

type Style string

const (
	StyleDanger  Style = "danger"
	StyleSuccess Style = "success"
)

type CancelReason string

const (
	CancelButton   CancelReason = "button"
	CancelBackdrop CancelReason = "backdrop"
	CancelEscape   CancelReason = "escape"
)

func (r CancelReason) Valid() bool {
	switch r {
	case CancelButton, CancelBackdrop, CancelEscape:
		return true
	}
	return false
}

// Dialog is what the page renders for a pending action.
type Dialog struct {
	Title        string
	Message      string
	ConfirmLabel string
	Style        Style
}

func ForAction(action models.AdminAction, target models.User) Dialog {
	if action == models.AdminActionBan {
		return Dialog{
			Title:        "Ban User",
			Message:      fmt.Sprintf("Are you sure you want to ban %s? They will no longer be able to access the system.", target.FullName),
			ConfirmLabel: "Ban User",
			Style:        StyleDanger,
		}
	}
	return Dialog{
		Title:        "Activate User",
		Message:      fmt.Sprintf("Are you sure you want to activate %s? They will regain access to the system.", target.FullName),
		ConfirmLabel: "Activate User",
		Style:        StyleSuccess,
	}
}

type Modal struct {
	kv  storage.KV
	key string
	ttl time.Duration
	now func() time.Time
}

// New stores the pending action under key; an abandoned dialog expires after ttl.
func New(kv storage.KV, key string, ttl time.Duration) *Modal {
	return &Modal{kv: kv, key: key, ttl: ttl, now: time.Now}
}

// Open replaces any dialog already open for the session.
func (m *Modal) Open(ctx context.Context, action models.AdminAction, target models.User, page int) (models.PendingAction, error) {
	if !action.Valid() {
		return models.PendingAction{}, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	pending := models.PendingAction{
		Token:     uuid.NewString(),
		Action:    action,
		Target:    target,
		Page:      page,
		CreatedAt: m.now().UTC(),
	}
	raw, err := json.Marshal(pending)
	if err != nil {
		return models.PendingAction{}, fmt.Errorf("encode pending action: %w", err)
	}
	if err := m.kv.SetAll(ctx, map[string]string{m.key: string(raw)}, m.ttl); err != nil {
		return models.PendingAction{}, fmt.Errorf("store pending action: %w", err)
	}
	return pending, nil
}

// Current returns the open dialog's action, or nil when none is open.
func (m *Modal) Current(ctx context.Context) (*models.PendingAction, error) {
	raw, err := m.kv.Get(ctx, m.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read pending action: %w", err)
	}
	pending, err := decode(raw)
	if err != nil {
		_ = m.kv.Delete(ctx, m.key)
		return nil, nil
	}
	return &pending, nil
}

// Confirm runs fn with the open dialog's action when token matches it. The
// dialog is closed before fn runs, so a second Confirm finds nothing to run.
// A stale token leaves the open dialog untouched.
func (m *Modal) Confirm(ctx context.Context, token string, fn func(context.Context, models.PendingAction) error) error {
	raw, err := m.kv.Get(ctx, m.key)
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNoPending
	}
	if err != nil {
		return fmt.Errorf("read pending action: %w", err)
	}

	pending, err := decode(raw)
	if err != nil {
		_ = m.kv.Delete(ctx, m.key)
		return err
	}
	if pending.Token != token {
		return ErrTokenMismatch
	}

	taken, err := m.kv.DeleteIfEqual(ctx, m.key, raw)
	if err != nil {
		return fmt.Errorf("take pending action: %w", err)
	}
	if !taken {
		return ErrNoPending
	}
	return fn(ctx, pending)
}

// Cancel closes the dialog without running anything. Cancelling a dialog that
// is no longer open is not an error.
func (m *Modal) Cancel(ctx context.Context, token string, reason CancelReason) error {
	if !reason.Valid() {
		return fmt.Errorf("confirm: unknown cancel reason %q", reason)
	}
	raw, err := m.kv.Get(ctx, m.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read pending action: %w", err)
	}
	pending, err := decode(raw)
	if err != nil {
		_ = m.kv.Delete(ctx, m.key)
		return nil
	}
	if pending.Token != token {
		return nil
	}
	if _, err := m.kv.DeleteIfEqual(ctx, m.key, raw); err != nil {
		return fmt.Errorf("close dialog: %w", err)
	}
	return nil
}

func decode(raw string) (models.PendingAction, error) {
	var pending models.PendingAction
	if err := json.Unmarshal([]byte(raw), &pending); err != nil {
		return models.PendingAction{}, fmt.Errorf("decode pending action: %w", err)
	}
	if !pending.Action.Valid() || pending.Token == "" {
		return models.PendingAction{}, ErrInvalidAction
	}
	return pending, nil
}
