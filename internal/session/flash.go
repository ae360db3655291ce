package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"accountdesk/portal/internal/storage"
)

type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
	FlashInfo    FlashKind = "info"
)

// Flash is a one-shot toast shown on the next rendered page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// AddFlash replaces any pending toast.
func (m *Mirror) AddFlash(ctx context.Context, kind FlashKind, message string) error {
	raw, err := json.Marshal(Flash{Kind: kind, Message: message})
	if err != nil {
		return fmt.Errorf("encode flash: %w", err)
	}
	if err := m.kv.SetAll(ctx, map[string]string{m.Key(KeyFlash): string(raw)}, m.opts.MaxTTL); err != nil {
		return fmt.Errorf("store flash: %w", err)
	}
	return nil
}

// TakeFlash returns and discards the pending toast, or nil.
func (m *Mirror) TakeFlash(ctx context.Context) (*Flash, error) {
	raw, err := m.kv.Take(ctx, m.Key(KeyFlash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take flash: %w", err)
	}

	var f Flash
	if err := json.Unmarshal([]byte(raw), &f); err != nil {
		m.log.Warn().Err(err).Msg("discarding malformed flash")
		return nil, nil
	}
	return &f, nil
}
