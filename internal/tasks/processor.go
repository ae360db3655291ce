package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"accountdesk/portal/internal/audit"
	"accountdesk/portal/internal/models"
)

type AuditStore interface {
	Insert(ctx context.Context, event models.AuditEvent) (bool, error)
}

// Processor turns audit stream messages into stored rows.
type Processor struct {
	store  AuditStore
	logger zerolog.Logger
}

func NewProcessor(store AuditStore, logger zerolog.Logger) *Processor {
	return &Processor{
		store:  store,
		logger: logger,
	}
}

// Handle returns an error only when the message should be retried. Messages
// that can never decode are logged and acknowledged.
func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	event, err := audit.Decode(msg.Values)
	if errors.Is(err, audit.ErrInvalidEvent) {
		p.logger.Warn().Err(err).Str("message_id", msg.ID).Msg("dropping malformed audit event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode audit event: %w", err)
	}

	written, err := p.store.Insert(ctx, event)
	if err != nil {
		return err
	}

	p.logger.Info().
		Str("event_id", event.ID).
		Str("actor_id", event.ActorID).
		Str("target_id", event.TargetID).
		Str("action", string(event.Action)).
		Str("outcome", string(event.Outcome)).
		Bool("duplicate", !written).
		Msg("audit event recorded")
	return nil
}
